// ABOUTME: Core data models for users, presence, friend requests, and alerts
// ABOUTME: Provides validation helpers and constructor functions for new entities

package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultAvatar is the placeholder avatar assigned to profiles without an image.
const DefaultAvatar = "builtin:avatar-placeholder"

// MaxAlerts bounds the alert window kept in the snapshot, newest first.
const MaxAlerts = 20

// ValidCoordinates reports whether latitude and longitude form a usable fix.
// NaN, infinite, and out-of-range values are all rejected; callers must drop
// such samples rather than store them.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	if math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	if lat < -90 || lat > 90 {
		return false
	}
	if lng < -180 || lng > 180 {
		return false
	}
	return true
}

// ValidateUsername checks if a username is acceptable for a profile.
func ValidateUsername(username string) error {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return fmt.Errorf("username cannot be empty or whitespace")
	}
	if len(username) > 60 {
		return fmt.Errorf("username too long (max 60 characters)")
	}
	return nil
}

// UsernameFromEmail derives a default username from the local part of an
// email address, lowercased.
func UsernameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "unknown"
	}
	return strings.ToLower(local)
}

// Location is a single position fix for a user.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Status describes a user's presence state.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
	StatusMoving  Status = "MOVING"
	StatusGhost   Status = "GHOST"
)

// UserPresence is a user profile joined with their most recent presence row.
// Location is nil until a valid fix has been seen; an invalid fix never
// overwrites a previously valid one.
type UserPresence struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Avatar       string    `json:"avatar"`
	IsSharing    bool      `json:"is_sharing"`
	Status       Status    `json:"status"`
	BatteryLevel int       `json:"battery_level"`
	LastSeen     time.Time `json:"last_seen"`
	Location     *Location `json:"location,omitempty"`
}

// NewProfile creates a default profile for a first-time login.
func NewProfile(id uuid.UUID, email, name, username string) *UserPresence {
	if name == "" {
		name = UsernameFromEmail(email)
	}
	if username == "" {
		username = UsernameFromEmail(email)
	}
	return &UserPresence{
		ID:        id,
		Username:  strings.ToLower(username),
		Name:      name,
		Email:     email,
		Avatar:    DefaultAvatar,
		IsSharing: true,
		Status:    StatusOffline,
		LastSeen:  time.Now(),
	}
}

// RequestStatus is the lifecycle state of a friend request.
// Accepted and rejected are terminal; there is no transition out of them.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendRequest links a requester to a receiver. At most one pending request
// may exist for an ordered (requester, receiver) pair at a time.
type FriendRequest struct {
	ID          uuid.UUID     `json:"id"`
	RequesterID uuid.UUID     `json:"requester_id"`
	ReceiverID  uuid.UUID     `json:"receiver_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	Sender      *UserPresence `json:"sender,omitempty"`
}

// NewFriendRequest creates a pending request between two users.
func NewFriendRequest(requesterID, receiverID uuid.UUID) *FriendRequest {
	return &FriendRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		ReceiverID:  receiverID,
		Status:      RequestPending,
		CreatedAt:   time.Now(),
	}
}

// AlertType classifies an alert.
type AlertType string

const (
	AlertSOS      AlertType = "SOS"
	AlertGeofence AlertType = "GEOFENCE"
	AlertArrival  AlertType = "ARRIVAL"
	AlertSystem   AlertType = "SYSTEM"
)

// Priority is the display priority of an alert.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// PriorityForType derives an alert's priority from its type.
func PriorityForType(t AlertType) Priority {
	if t == AlertSOS {
		return PriorityHigh
	}
	return PriorityLow
}

// TitleForType derives an alert's display title from its type.
func TitleForType(t AlertType) string {
	if t == AlertSOS {
		return "SOS ALERT"
	}
	return "Notification"
}

// Alert is a notification delivered to a user.
type Alert struct {
	ID        uuid.UUID `json:"id"`
	Type      AlertType `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
	Priority  Priority  `json:"priority"`
	SenderID  uuid.UUID `json:"sender_id,omitempty"`
}

// NewAlert creates an alert with derived title and priority.
func NewAlert(alertType AlertType, message string, senderID uuid.UUID) *Alert {
	return &Alert{
		ID:        uuid.New(),
		Type:      alertType,
		Title:     TitleForType(alertType),
		Message:   message,
		Timestamp: time.Now(),
		Priority:  PriorityForType(alertType),
		SenderID:  senderID,
	}
}

// Snapshot is the engine's in-memory view of the signed-in user's world.
// Friends are unique by id; Alerts are newest first, capped at MaxAlerts.
type Snapshot struct {
	Self            *UserPresence   `json:"self"`
	Friends         []UserPresence  `json:"friends"`
	PendingRequests []FriendRequest `json:"pending_requests"`
	Alerts          []Alert         `json:"alerts"`
}

// Clone returns a deep copy of the snapshot so readers never alias
// engine-owned memory.
func (s *Snapshot) Clone() Snapshot {
	out := Snapshot{}
	if s.Self != nil {
		self := *s.Self
		if s.Self.Location != nil {
			loc := *s.Self.Location
			self.Location = &loc
		}
		out.Self = &self
	}
	if len(s.Friends) > 0 {
		out.Friends = make([]UserPresence, len(s.Friends))
		copy(out.Friends, s.Friends)
		for i := range out.Friends {
			if out.Friends[i].Location != nil {
				loc := *out.Friends[i].Location
				out.Friends[i].Location = &loc
			}
		}
	}
	if len(s.PendingRequests) > 0 {
		out.PendingRequests = make([]FriendRequest, len(s.PendingRequests))
		copy(out.PendingRequests, s.PendingRequests)
		for i := range out.PendingRequests {
			if out.PendingRequests[i].Sender != nil {
				sender := *out.PendingRequests[i].Sender
				out.PendingRequests[i].Sender = &sender
			}
		}
	}
	if len(s.Alerts) > 0 {
		out.Alerts = make([]Alert, len(s.Alerts))
		copy(out.Alerts, s.Alerts)
	}
	return out
}
