// ABOUTME: Backing-store interfaces consumed by the reconciliation engine
// ABOUTME: Enables testability and swapping the remote store in tests

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/models"
)

// Session identifies an authenticated user.
type Session struct {
	Token  string
	UserID uuid.UUID
	Email  string
}

// SessionFunc receives the new session on sign-in, or nil on sign-out.
type SessionFunc func(*Session)

// LiveLocation is the hot presence row for a user.
type LiveLocation struct {
	UserID       uuid.UUID `json:"user_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     float64   `json:"accuracy"`
	BatteryLevel int       `json:"battery_level"`
	IsOnline     bool      `json:"is_online"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileUpdate holds the profile fields a user may change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	Name      *string
	Username  *string
	Avatar    *string
	IsSharing *bool
}

// Auth is the identity provider surface.
type Auth interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignInPassword(ctx context.Context, email, password string) (*Session, error)
	// SignInGoogleIDToken verifies a federated OAuth ID token and signs the
	// matching user in, creating the account on first login.
	SignInGoogleIDToken(ctx context.Context, idToken string) (*Session, error)
	Resume(ctx context.Context, token string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	// OnSessionChange registers a callback fired after sign-in and sign-out.
	OnSessionChange(fn SessionFunc)
}

// ProfileStore manages user profile rows.
type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.UserPresence, error)
	CreateProfile(ctx context.Context, profile *models.UserPresence) error
	UpdateProfile(ctx context.Context, id uuid.UUID, updates ProfileUpdate) error
	// FindUserByIdentifier matches an email or username, case-insensitively.
	FindUserByIdentifier(ctx context.Context, identifier string) (*models.UserPresence, error)
	// UsernameExists reports whether a user other than excluding holds username.
	UsernameExists(ctx context.Context, username string, excluding uuid.UUID) (bool, error)
}

// FriendStore manages the confirmed-friend relation.
type FriendStore interface {
	// ListFriends returns the user's friends joined with their latest presence.
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserPresence, error)
	// InsertFriendPair records the relation in both directions so it is
	// queryable from either side.
	InsertFriendPair(ctx context.Context, a, b uuid.UUID) error
}

// RequestStore manages friend-request rows.
type RequestStore interface {
	// ListPendingFor returns pending incoming requests joined with the
	// requester's profile.
	ListPendingFor(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error)
	// PendingBetween reports whether a pending request exists between the
	// pair, in either direction.
	PendingBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	// SetRequestStatus moves a pending request into a terminal state. The row
	// is never deleted; history is retained.
	SetRequestStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) error
}

// AlertStore manages alert rows.
type AlertStore interface {
	// ListRecentAlerts returns the user's newest alerts, newest first.
	ListRecentAlerts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Alert, error)
	MarkAlertRead(ctx context.Context, id uuid.UUID) error
	InsertAlert(ctx context.Context, userID uuid.UUID, alert *models.Alert) error
}

// PresenceStore manages live-location rows.
type PresenceStore interface {
	UpsertLive(ctx context.Context, loc *LiveLocation) error
	GetLive(ctx context.Context, userID uuid.UUID) (*LiveLocation, error)
}

// Store combines every backing-store surface the engine consumes.
type Store interface {
	Auth
	ProfileStore
	FriendStore
	RequestStore
	AlertStore
	PresenceStore
	Close() error
}

// Combined composes the relational store with a separate presence store,
// merging live presence into friend listings.
type Combined struct {
	*Postgres
	Presence *Redis
}

// Compile-time check that Combined implements Store.
var _ Store = (*Combined)(nil)

// NewCombined builds a Store from a relational store and a presence store.
func NewCombined(pg *Postgres, rd *Redis) *Combined {
	return &Combined{Postgres: pg, Presence: rd}
}

// UpsertLive writes the live-location row to the presence store.
func (c *Combined) UpsertLive(ctx context.Context, loc *LiveLocation) error {
	return c.Presence.UpsertLive(ctx, loc)
}

// GetLive reads a live-location row from the presence store.
func (c *Combined) GetLive(ctx context.Context, userID uuid.UUID) (*LiveLocation, error) {
	return c.Presence.GetLive(ctx, userID)
}

// ListFriends joins friend profiles from the relational store with their live
// presence rows from the presence store. Friends without a live row keep a
// nil location and read as offline.
func (c *Combined) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserPresence, error) {
	friends, err := c.Postgres.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(friends) == 0 {
		return friends, nil
	}

	ids := make([]uuid.UUID, len(friends))
	for i := range friends {
		ids[i] = friends[i].ID
	}
	live, err := c.Presence.GetLiveBatch(ctx, ids)
	if err != nil {
		// Presence is best-effort; profiles alone are still a usable listing.
		return friends, nil
	}
	for i := range friends {
		if row, ok := live[friends[i].ID]; ok {
			MergeLive(&friends[i], row)
		}
	}
	return friends, nil
}

// GetProfileWithPresence fetches a profile and merges its live row, if any.
func (c *Combined) GetProfileWithPresence(ctx context.Context, id uuid.UUID) (*models.UserPresence, error) {
	profile, err := c.Postgres.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if row, err := c.Presence.GetLive(ctx, id); err == nil && row != nil {
		MergeLive(profile, row)
	}
	return profile, nil
}

// Close releases both underlying stores.
func (c *Combined) Close() error {
	err := c.Postgres.Close()
	if rerr := c.Presence.Close(); err == nil {
		err = rerr
	}
	return err
}

// MergeLive folds a live-location row into a user presence entry. Rows with
// unusable coordinates update status and battery but leave the previous
// location untouched.
func MergeLive(user *models.UserPresence, row *LiveLocation) {
	user.BatteryLevel = row.BatteryLevel
	user.LastSeen = row.UpdatedAt
	if row.IsOnline {
		user.Status = models.StatusOnline
	} else {
		user.Status = models.StatusOffline
	}
	if models.ValidCoordinates(row.Latitude, row.Longitude) {
		user.Location = &models.Location{
			Lat:       row.Latitude,
			Lng:       row.Longitude,
			Accuracy:  row.Accuracy,
			Timestamp: row.UpdatedAt,
		}
	}
}
