// ABOUTME: Feed event application for the reconciliation engine
// ABOUTME: Merges presence changes in place and refetches on social changes

package engine

import (
	"context"

	"github.com/fightbackff-oss/trackmate/internal/feed"
	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/fightbackff-oss/trackmate/internal/store"
)

// ApplyPresenceEvent merges a live-location change into the matching friend
// entry. Events for ids not in the roster are no-ops: membership changes
// only through bootstrap and refetch, never through a presence event.
//
// The update is applied unconditionally, last writer wins by arrival order;
// the feed is a single ordered stream from one source of truth, so there is
// nothing to compare timestamps against. Rows with unusable coordinates
// update battery and status but leave the previous valid location untouched.
func (e *Engine) ApplyPresenceEvent(ev feed.PresenceEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.snap.Friends {
		if e.snap.Friends[i].ID != ev.Row.UserID {
			continue
		}
		store.MergeLive(&e.snap.Friends[i], &ev.Row)
		e.notifyLocked()
		return
	}
}

// ApplySocialEvent responds to any friend-request change scoped to the
// current user by refetching the full pending set. Request volume is low and
// the pending set guards duplicate-request prevention, so a complete refetch
// beats incremental patching. Concurrent refetches resolve last-completed-wins.
func (e *Engine) ApplySocialEvent(ctx context.Context, ev feed.SocialEvent) {
	if ev.ReceiverID != e.selfID() {
		return
	}
	e.RefreshPending(ctx)
}

// PushAlert inserts an alert at the head of the local window, evicting the
// oldest entry beyond the cap.
func (e *Engine) PushAlert(alert models.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Alerts = append([]models.Alert{alert}, e.snap.Alerts...)
	if len(e.snap.Alerts) > models.MaxAlerts {
		e.snap.Alerts = e.snap.Alerts[:models.MaxAlerts]
	}
	e.notifyLocked()
}
