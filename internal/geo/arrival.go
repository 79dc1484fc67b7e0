// ABOUTME: Arrival detection over a circular region with hysteresis
// ABOUTME: Haversine distance keeps the check dependency-free and accurate enough

package geo

import (
	"math"

	"github.com/fightbackff-oss/trackmate/internal/models"
)

const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Transition reports a boundary crossing detected by an ArrivalDetector.
type Transition int

const (
	NoTransition Transition = iota
	Arrived
	Departed
)

// ArrivalDetector tracks whether a user is inside a circular region. The
// departure boundary sits at 1.2x the radius so jitter near the edge does
// not flap between arrived and departed.
type ArrivalDetector struct {
	Name   string
	Lat    float64
	Lng    float64
	Radius float64

	inside bool
}

// NewArrivalDetector creates a detector for a region. Radius is in meters
// and must be positive.
func NewArrivalDetector(name string, lat, lng, radius float64) *ArrivalDetector {
	return &ArrivalDetector{Name: name, Lat: lat, Lng: lng, Radius: radius}
}

// Update feeds one fix into the detector and reports any transition.
// Invalid coordinates never produce a transition.
func (d *ArrivalDetector) Update(lat, lng float64) Transition {
	if !models.ValidCoordinates(lat, lng) {
		return NoTransition
	}
	dist := Haversine(d.Lat, d.Lng, lat, lng)
	switch {
	case !d.inside && dist <= d.Radius:
		d.inside = true
		return Arrived
	case d.inside && dist > d.Radius*1.2:
		d.inside = false
		return Departed
	default:
		return NoTransition
	}
}

// Inside reports the detector's current containment state.
func (d *ArrivalDetector) Inside() bool {
	return d.inside
}
