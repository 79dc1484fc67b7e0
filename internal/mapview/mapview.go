// ABOUTME: Map surface abstraction with camera control and marker layers
// ABOUTME: Terminal implementation renders an ASCII viewport with colored markers

package mapview

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/models"
)

// Zoom bounds match the usual web-map tile range.
const (
	MinZoom = 1
	MaxZoom = 18
)

// Marker is one pin on the map.
type Marker struct {
	ID     uuid.UUID
	Label  string
	Lat    float64
	Lng    float64
	Status models.Status
	IsSelf bool
}

// Surface is a map display. Implementations own their camera state; marker
// layers are replaced wholesale on each SetMarkers call.
type Surface interface {
	SetCenter(lat, lng float64)
	// FlyTo recenters and zooms in one motion, used when locating a friend.
	FlyTo(lat, lng float64, zoom int)
	ZoomIn()
	ZoomOut()
	SetMarkers(markers []Marker)
}

// Terminal renders the map as an ASCII viewport. It is the only surface the
// CLI ships; the Surface interface keeps richer frontends pluggable.
type Terminal struct {
	w    io.Writer
	cols int
	rows int

	mu      sync.Mutex
	lat     float64
	lng     float64
	zoom    int
	markers []Marker
}

// Compile-time check that Terminal implements Surface.
var _ Surface = (*Terminal)(nil)

// NewTerminal creates a terminal surface writing to w with the given
// character dimensions.
func NewTerminal(w io.Writer, cols, rows int) *Terminal {
	if cols < 20 {
		cols = 20
	}
	if rows < 8 {
		rows = 8
	}
	return &Terminal{w: w, cols: cols, rows: rows, zoom: 12}
}

// SetCenter moves the camera without changing zoom.
func (t *Terminal) SetCenter(lat, lng float64) {
	t.mu.Lock()
	t.lat, t.lng = lat, lng
	t.mu.Unlock()
}

// FlyTo recenters and zooms in one motion.
func (t *Terminal) FlyTo(lat, lng float64, zoom int) {
	t.mu.Lock()
	t.lat, t.lng = lat, lng
	t.zoom = clampZoom(zoom)
	t.mu.Unlock()
}

// ZoomIn narrows the viewport one level.
func (t *Terminal) ZoomIn() {
	t.mu.Lock()
	t.zoom = clampZoom(t.zoom + 1)
	t.mu.Unlock()
}

// ZoomOut widens the viewport one level.
func (t *Terminal) ZoomOut() {
	t.mu.Lock()
	t.zoom = clampZoom(t.zoom - 1)
	t.mu.Unlock()
}

// SetMarkers replaces the marker layer.
func (t *Terminal) SetMarkers(markers []Marker) {
	t.mu.Lock()
	t.markers = append(t.markers[:0], markers...)
	t.mu.Unlock()
}

// Zoom returns the current zoom level.
func (t *Terminal) Zoom() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.zoom
}

// Center returns the current camera center.
func (t *Terminal) Center() (lat, lng float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lat, t.lng
}

func clampZoom(z int) int {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// span returns the degrees of longitude the viewport covers at the current
// zoom. Each zoom level halves the span, anchored at 360 degrees for zoom 1.
func (t *Terminal) span() float64 {
	return 360 / math.Pow(2, float64(t.zoom-1))
}

// Render draws the viewport. Markers outside the view are listed below the
// frame instead of silently dropped.
func (t *Terminal) Render() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	grid := make([][]rune, t.rows)
	for i := range grid {
		grid[i] = make([]rune, t.cols)
		for j := range grid[i] {
			grid[i][j] = '.'
		}
	}

	lngSpan := t.span()
	latSpan := lngSpan * float64(t.rows) / float64(t.cols)
	var offscreen []Marker
	for _, m := range t.markers {
		col := int((m.Lng-t.lng)/lngSpan*float64(t.cols)) + t.cols/2
		row := t.rows/2 - int((m.Lat-t.lat)/latSpan*float64(t.rows))
		if col < 0 || col >= t.cols || row < 0 || row >= t.rows {
			offscreen = append(offscreen, m)
			continue
		}
		grid[row][col] = markerRune(m)
	}

	fmt.Fprintf(t.w, "center %.4f,%.4f  zoom %d\n", t.lat, t.lng, t.zoom)
	for _, line := range grid {
		fmt.Fprintln(t.w, string(line))
	}
	for _, m := range offscreen {
		fmt.Fprintf(t.w, "  %s %s (off view: %.4f,%.4f)\n", statusColor(m.Status).Sprint(string(markerRune(m))), m.Label, m.Lat, m.Lng)
	}
	return nil
}

func markerRune(m Marker) rune {
	if m.IsSelf {
		return '@'
	}
	if len(m.Label) > 0 {
		return rune(m.Label[0])
	}
	return '*'
}

func statusColor(s models.Status) *color.Color {
	switch s {
	case models.StatusOnline:
		return color.New(color.FgGreen)
	case models.StatusMoving:
		return color.New(color.FgCyan)
	case models.StatusGhost:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgHiBlack)
	}
}
