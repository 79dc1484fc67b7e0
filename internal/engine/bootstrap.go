// ABOUTME: Session bootstrap and slice refetches for the reconciliation engine
// ABOUTME: Tolerates partial fetch failures; each slice degrades independently

package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/fightbackff-oss/trackmate/internal/store"
)

// Bootstrap builds the snapshot for an authenticated session: profile
// (created with defaults on first login), friends joined with presence,
// pending incoming requests, and the most recent alerts. Each fetch may fail
// independently; a failed slice keeps its previous (empty) value.
func (e *Engine) Bootstrap(ctx context.Context, session *store.Session) {
	e.mu.Lock()
	e.session = session
	e.mu.Unlock()

	self := e.fetchOrCreateProfile(ctx, session)
	e.mu.Lock()
	e.snap.Self = self
	e.notifyLocked()
	e.mu.Unlock()

	e.RefreshFriends(ctx)
	e.RefreshPending(ctx)
	e.refreshAlerts(ctx)
}

func (e *Engine) fetchOrCreateProfile(ctx context.Context, session *store.Session) *models.UserPresence {
	profile, err := e.store.GetProfile(ctx, session.UserID)
	if err == nil {
		return profile
	}
	if !errors.Is(err, store.ErrNotFound) {
		e.log.Warn("profile fetch failed", "error", err)
		return nil
	}

	// First login: create a default profile row.
	profile = models.NewProfile(session.UserID, session.Email, "", "")
	if err := e.store.CreateProfile(ctx, profile); err != nil {
		// Keep the local default; the next bootstrap retries the insert.
		e.log.Warn("default profile insert failed", "error", err)
	}
	return profile
}

// RefreshFriends refetches the friends slice joined with latest presence.
// Friend-list membership changes only through this path, never through
// presence events.
func (e *Engine) RefreshFriends(ctx context.Context) {
	id := e.selfID()
	if id == uuid.Nil {
		return
	}
	friends, err := e.store.ListFriends(ctx, id)
	if err != nil {
		e.log.Warn("friends fetch failed", "error", err)
		return
	}
	e.mu.Lock()
	e.snap.Friends = friends
	e.notifyLocked()
	e.mu.Unlock()
}

// RefreshPending refetches the pending-request slice. Concurrent refreshes
// may race; whichever completes last wins, which is acceptable because each
// result is a complete, consistent view of the pending set.
func (e *Engine) RefreshPending(ctx context.Context) {
	id := e.selfID()
	if id == uuid.Nil {
		return
	}
	pending, err := e.store.ListPendingFor(ctx, id)
	if err != nil {
		e.log.Warn("pending requests fetch failed", "error", err)
		return
	}
	e.mu.Lock()
	e.snap.PendingRequests = pending
	e.notifyLocked()
	e.mu.Unlock()
}

func (e *Engine) refreshAlerts(ctx context.Context) {
	id := e.selfID()
	if id == uuid.Nil {
		return
	}
	alerts, err := e.store.ListRecentAlerts(ctx, id, models.MaxAlerts)
	if err != nil {
		e.log.Warn("alerts fetch failed", "error", err)
		return
	}
	e.mu.Lock()
	e.snap.Alerts = alerts
	e.notifyLocked()
	e.mu.Unlock()
}
