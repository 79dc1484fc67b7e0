// ABOUTME: Unit tests for data models
// ABOUTME: Tests validators, derivations, and snapshot cloning

package models

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lng  float64
		want bool
	}{
		{"valid", 41.8781, -87.6298, true},
		{"zero zero", 0, 0, true},
		{"nan lat", math.NaN(), -122.4, false},
		{"nan lng", 37.7, math.NaN(), false},
		{"inf lat", math.Inf(1), 0, false},
		{"inf lng", 0, math.Inf(-1), false},
		{"lat too high", 90.1, 0, false},
		{"lat too low", -90.1, 0, false},
		{"lng too high", 0, 180.1, false},
		{"lng too low", 0, -180.1, false},
		{"boundary", 90, -180, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCoordinates(tt.lat, tt.lng); got != tt.want {
				t.Errorf("ValidCoordinates(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestUsernameFromEmail(t *testing.T) {
	if got := UsernameFromEmail("Alex.Smith@example.com"); got != "alex.smith" {
		t.Errorf("expected 'alex.smith', got %q", got)
	}
	if got := UsernameFromEmail("not-an-email"); got != "unknown" {
		t.Errorf("expected 'unknown', got %q", got)
	}
}

func TestValidateUsername(t *testing.T) {
	if err := ValidateUsername("alex"); err != nil {
		t.Errorf("expected 'alex' to be valid: %v", err)
	}
	if err := ValidateUsername("   "); err == nil {
		t.Error("expected whitespace username to be invalid")
	}
}

func TestNewProfileDefaults(t *testing.T) {
	id := uuid.New()
	p := NewProfile(id, "Jordan@trackmate.app", "", "")

	if p.Username != "jordan" {
		t.Errorf("expected username 'jordan', got %q", p.Username)
	}
	if p.Name != "jordan" {
		t.Errorf("expected name 'jordan', got %q", p.Name)
	}
	if !p.IsSharing {
		t.Error("new profiles default to sharing enabled")
	}
	if p.Avatar != DefaultAvatar {
		t.Error("expected placeholder avatar")
	}
}

func TestNewProfileLowercasesUsername(t *testing.T) {
	p := NewProfile(uuid.New(), "a@b.co", "Alex", "ALEX")
	if p.Username != "alex" {
		t.Errorf("expected lowercased username, got %q", p.Username)
	}
}

func TestPriorityForType(t *testing.T) {
	if PriorityForType(AlertSOS) != PriorityHigh {
		t.Error("SOS alerts must be high priority")
	}
	if PriorityForType(AlertSystem) != PriorityLow {
		t.Error("system alerts default to low priority")
	}
	if PriorityForType(AlertArrival) != PriorityLow {
		t.Error("arrival alerts default to low priority")
	}
}

func TestNewAlert(t *testing.T) {
	sender := uuid.New()
	a := NewAlert(AlertSOS, "help", sender)

	if a.Title != "SOS ALERT" {
		t.Errorf("expected SOS title, got %q", a.Title)
	}
	if a.Priority != PriorityHigh {
		t.Error("expected high priority")
	}
	if a.IsRead {
		t.Error("new alerts start unread")
	}
	if a.SenderID != sender {
		t.Error("sender id not carried")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	loc := &Location{Lat: 37.7, Lng: -122.4, Timestamp: time.Now()}
	snap := Snapshot{
		Self:    &UserPresence{ID: uuid.New(), Username: "me", Location: loc},
		Friends: []UserPresence{{ID: uuid.New(), Username: "alex", Location: &Location{Lat: 1, Lng: 2}}},
		PendingRequests: []FriendRequest{
			{ID: uuid.New(), Status: RequestPending, Sender: &UserPresence{Username: "jordan"}},
		},
		Alerts: []Alert{{ID: uuid.New(), Type: AlertSystem}},
	}

	clone := snap.Clone()

	clone.Self.Location.Lat = 99
	clone.Friends[0].Location.Lng = 99
	clone.PendingRequests[0].Sender.Username = "mutated"

	if snap.Self.Location.Lat == 99 {
		t.Error("clone aliases self location")
	}
	if snap.Friends[0].Location.Lng == 99 {
		t.Error("clone aliases friend location")
	}
	if snap.PendingRequests[0].Sender.Username == "mutated" {
		t.Error("clone aliases request sender")
	}
}

func TestSnapshotCloneEmpty(t *testing.T) {
	var snap Snapshot
	clone := snap.Clone()
	if clone.Self != nil || clone.Friends != nil || clone.Alerts != nil {
		t.Error("empty snapshot should clone to empty")
	}
}
