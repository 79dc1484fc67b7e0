// ABOUTME: User-initiated commands mutating the snapshot and backing store
// ABOUTME: Applies optimistic local updates first, then persists remotely

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/fightbackff-oss/trackmate/internal/store"
)

// RequestFriend sends a friend request to the user matching identifier
// (email or username, case-insensitive). Guards run in order: unknown
// target, self-reference, existing friendship, duplicate pending request.
func (e *Engine) RequestFriend(ctx context.Context, identifier string) error {
	id := e.selfID()
	if id == uuid.Nil {
		return fmt.Errorf("not signed in")
	}

	target, err := e.store.FindUserByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return fmt.Errorf("finding user %q: %w", identifier, err)
	}
	if target.ID == id {
		return store.ErrSelfReference
	}

	e.mu.Lock()
	for i := range e.snap.Friends {
		if e.snap.Friends[i].ID == target.ID {
			e.mu.Unlock()
			return store.ErrAlreadyFriends
		}
	}
	e.mu.Unlock()

	pending, err := e.store.PendingBetween(ctx, id, target.ID)
	if err != nil {
		return fmt.Errorf("checking pending requests: %w", err)
	}
	if pending {
		return store.ErrDuplicatePending
	}

	req := models.NewFriendRequest(id, target.ID)
	if err := e.store.CreateRequest(ctx, req); err != nil {
		return fmt.Errorf("creating friend request: %w", err)
	}
	e.log.Info("friend request sent", "receiver", target.Username)
	return nil
}

// AcceptRequest moves a pending incoming request to accepted, records the
// friendship in both directions, and refetches both affected slices. The
// request row is retained for history.
func (e *Engine) AcceptRequest(ctx context.Context, requestID uuid.UUID) error {
	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("loading request: %w", err)
	}
	if err := e.store.SetRequestStatus(ctx, requestID, models.RequestAccepted); err != nil {
		return fmt.Errorf("accepting request: %w", err)
	}
	if err := e.store.InsertFriendPair(ctx, req.RequesterID, req.ReceiverID); err != nil {
		return fmt.Errorf("recording friendship: %w", err)
	}
	e.RefreshPending(ctx)
	e.RefreshFriends(ctx)
	return nil
}

// DeclineRequest moves a pending incoming request to rejected. The row is
// retained, keeping the decline visible to the requester's history.
func (e *Engine) DeclineRequest(ctx context.Context, requestID uuid.UUID) error {
	if err := e.store.SetRequestStatus(ctx, requestID, models.RequestRejected); err != nil {
		return fmt.Errorf("declining request: %w", err)
	}
	e.RefreshPending(ctx)
	return nil
}

// DismissAlert removes an alert from the local window and best-effort marks
// it read remotely. The local removal stands even when the remote write
// fails; a dismissed alert never reappears within the session.
func (e *Engine) DismissAlert(ctx context.Context, alertID uuid.UUID) {
	e.mu.Lock()
	kept := e.snap.Alerts[:0]
	for _, a := range e.snap.Alerts {
		if a.ID != alertID {
			kept = append(kept, a)
		}
	}
	e.snap.Alerts = kept
	e.notifyLocked()
	e.mu.Unlock()

	if err := e.store.MarkAlertRead(ctx, alertID); err != nil {
		e.log.Warn("alert read-marker write failed", "alert", alertID, "error", err)
	}
}

// UpdateProfile applies profile edits optimistically, then persists them.
// Usernames are lowercased and checked for uniqueness before the write.
func (e *Engine) UpdateProfile(ctx context.Context, updates store.ProfileUpdate) error {
	id := e.selfID()
	if id == uuid.Nil {
		return fmt.Errorf("not signed in")
	}

	if updates.Username != nil {
		lowered := strings.ToLower(strings.TrimSpace(*updates.Username))
		if err := models.ValidateUsername(lowered); err != nil {
			return err
		}
		taken, err := e.store.UsernameExists(ctx, lowered, id)
		if err != nil {
			return fmt.Errorf("checking username: %w", err)
		}
		if taken {
			return store.ErrUsernameTaken
		}
		updates.Username = &lowered
	}

	e.mu.Lock()
	if e.snap.Self != nil {
		if updates.Name != nil {
			e.snap.Self.Name = *updates.Name
		}
		if updates.Username != nil {
			e.snap.Self.Username = *updates.Username
		}
		if updates.Avatar != nil {
			e.snap.Self.Avatar = *updates.Avatar
		}
		if updates.IsSharing != nil {
			e.snap.Self.IsSharing = *updates.IsSharing
		}
		e.notifyLocked()
	}
	e.mu.Unlock()

	if err := e.store.UpdateProfile(ctx, id, updates); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// ToggleSharing flips location sharing. Disabling takes effect locally at
// once; the publisher stops within one sample interval.
func (e *Engine) ToggleSharing(ctx context.Context, enabled bool) error {
	return e.UpdateProfile(ctx, store.ProfileUpdate{IsSharing: &enabled})
}

// AnnounceArrival tells every friend the user reached a named place. Unlike
// SOS this is low priority and silently skipped with no friends.
func (e *Engine) AnnounceArrival(ctx context.Context, place string) {
	e.mu.Lock()
	if e.snap.Self == nil {
		e.mu.Unlock()
		return
	}
	name := e.snap.Self.Name
	selfID := e.snap.Self.ID
	friends := make([]uuid.UUID, len(e.snap.Friends))
	for i := range e.snap.Friends {
		friends[i] = e.snap.Friends[i].ID
	}
	e.mu.Unlock()

	message := fmt.Sprintf("%s arrived at %s", name, place)
	for _, friendID := range friends {
		alert := models.NewAlert(models.AlertArrival, message, selfID)
		if err := e.store.InsertAlert(ctx, friendID, alert); err != nil {
			e.log.Warn("arrival alert delivery failed", "friend", friendID, "error", err)
		}
	}
}

// RaiseSOS sends a high-priority SOS alert to every friend, carrying the
// sender's last known position when one exists. Delivery is per friend;
// one failed insert does not block the rest.
func (e *Engine) RaiseSOS(ctx context.Context, message string) error {
	e.mu.Lock()
	if e.snap.Self == nil {
		e.mu.Unlock()
		return fmt.Errorf("not signed in")
	}
	self := *e.snap.Self
	friends := make([]uuid.UUID, len(e.snap.Friends))
	for i := range e.snap.Friends {
		friends[i] = e.snap.Friends[i].ID
	}
	e.mu.Unlock()

	if len(friends) == 0 {
		return fmt.Errorf("no friends to alert")
	}
	if message == "" {
		message = fmt.Sprintf("%s needs help", self.Name)
	}
	if self.Location != nil {
		message = fmt.Sprintf("%s (last seen at %.5f, %.5f)", message, self.Location.Lat, self.Location.Lng)
	}

	var failed int
	for _, friendID := range friends {
		alert := models.NewAlert(models.AlertSOS, message, self.ID)
		if err := e.store.InsertAlert(ctx, friendID, alert); err != nil {
			failed++
			e.log.Warn("sos alert delivery failed", "friend", friendID, "error", err)
		}
	}
	if failed == len(friends) {
		return fmt.Errorf("sos delivery failed for all %d friends", failed)
	}
	e.log.Info("sos raised", "delivered", len(friends)-failed, "failed", failed)
	return nil
}
