// ABOUTME: Tests for the terminal map surface camera and rendering
// ABOUTME: Checks zoom clamping, marker placement, and off-view listing

package mapview

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/models"
)

func TestZoomClamping(t *testing.T) {
	term := NewTerminal(&bytes.Buffer{}, 40, 10)

	for i := 0; i < 30; i++ {
		term.ZoomIn()
	}
	if got := term.Zoom(); got != MaxZoom {
		t.Errorf("expected zoom clamped at %d, got %d", MaxZoom, got)
	}
	for i := 0; i < 50; i++ {
		term.ZoomOut()
	}
	if got := term.Zoom(); got != MinZoom {
		t.Errorf("expected zoom clamped at %d, got %d", MinZoom, got)
	}

	term.FlyTo(10, 20, 99)
	if got := term.Zoom(); got != MaxZoom {
		t.Errorf("FlyTo should clamp zoom, got %d", got)
	}
	lat, lng := term.Center()
	if lat != 10 || lng != 20 {
		t.Errorf("FlyTo should move the camera, got %f,%f", lat, lng)
	}
}

func TestRenderPlacesMarkers(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, 40, 10)
	term.SetCenter(52.52, 13.405)
	term.SetMarkers([]Marker{
		{ID: uuid.New(), Label: "Me", Lat: 52.52, Lng: 13.405, Status: models.StatusOnline, IsSelf: true},
	})

	if err := term.Render(); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "@") {
		t.Error("expected self marker glyph in viewport")
	}
	if !strings.Contains(out, "zoom") {
		t.Error("expected header line with zoom level")
	}
}

func TestRenderListsOffViewMarkers(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, 40, 10)
	term.SetCenter(52.52, 13.405)
	term.FlyTo(52.52, 13.405, MaxZoom)
	term.SetMarkers([]Marker{
		{ID: uuid.New(), Label: "Far", Lat: -33.87, Lng: 151.21, Status: models.StatusOffline},
	})

	if err := term.Render(); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "off view") {
		t.Error("expected off-view marker listed below the frame")
	}
	if !strings.Contains(out, "Far") {
		t.Error("expected off-view marker label")
	}
}

func TestSetMarkersReplacesLayer(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, 40, 10)
	term.SetCenter(0, 0)
	term.SetMarkers([]Marker{{ID: uuid.New(), Label: "A", Lat: 0, Lng: 0}})
	term.SetMarkers([]Marker{{ID: uuid.New(), Label: "B", Lat: 0, Lng: 0}})

	if err := term.Render(); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "A\n") {
		t.Error("old marker layer should be replaced")
	}
	if !strings.Contains(out, "B") {
		t.Error("expected new marker rendered")
	}
}
