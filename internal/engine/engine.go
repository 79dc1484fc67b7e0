// ABOUTME: Reconciliation engine owning the canonical in-memory snapshot
// ABOUTME: Single writer merging feeds, fetches, and commands into one view

package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/fightbackff-oss/trackmate/internal/store"
)

// Engine is the single writer of the Snapshot. All mutation happens behind
// one mutex; fetches run outside the lock and their results are applied
// atomically, so no two mutations ever interleave mid-merge. Every other
// component either reads cloned snapshots or submits events and commands.
type Engine struct {
	store store.Store
	log   *slog.Logger

	mu       sync.Mutex
	snap     models.Snapshot
	session  *store.Session
	watchers []chan struct{}
}

// New creates an engine over a backing store.
func New(st store.Store) *Engine {
	return &Engine{
		store: st,
		log:   slog.With("component", "engine"),
	}
}

// Snapshot returns a deep copy of the current snapshot.
func (e *Engine) Snapshot() models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone()
}

// Session returns the active session, or nil when signed out.
func (e *Engine) Session() *store.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Watch returns a channel that receives a tick after every snapshot change,
// plus a cancel that unregisters the watcher. Ticks are coalesced; a slow
// reader sees at least one tick per burst.
func (e *Engine) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	e.watchers = append(e.watchers, ch)
	e.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			for i, w := range e.watchers {
				if w == ch {
					e.watchers = append(e.watchers[:i], e.watchers[i+1:]...)
					break
				}
			}
			e.mu.Unlock()
		})
	}
	return ch, cancel
}

// notifyLocked signals watchers; callers must hold e.mu.
func (e *Engine) notifyLocked() {
	for _, ch := range e.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SharingEnabled reports whether the local user currently shares location.
// The publisher consults this on every sample, so disabling takes effect
// within one sample interval.
func (e *Engine) SharingEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Self != nil && e.snap.Self.IsSharing
}

// SetOwnLocation applies the device's own fix to the local user. Samples
// with unusable coordinates are dropped, never stored zeroed.
func (e *Engine) SetOwnLocation(loc models.Location) {
	if !models.ValidCoordinates(loc.Lat, loc.Lng) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap.Self == nil {
		return
	}
	e.snap.Self.Location = &loc
	e.snap.Self.Status = models.StatusOnline
	e.snap.Self.LastSeen = loc.Timestamp
	e.notifyLocked()
}

// Signout revokes the session and clears the snapshot. The snapshot is
// rebuilt from the backing store on the next sign-in.
func (e *Engine) Signout(ctx context.Context) error {
	e.mu.Lock()
	session := e.session
	e.session = nil
	e.snap = models.Snapshot{}
	e.notifyLocked()
	e.mu.Unlock()

	if session == nil {
		return nil
	}
	if err := e.store.SignOut(ctx, session.Token); err != nil {
		e.log.Warn("sign-out write failed", "error", err)
		return err
	}
	return nil
}

// selfID returns the signed-in user id, or uuid.Nil when signed out. The id
// comes from the session, not the fetched profile, so slice refetches keep
// working when the profile fetch itself fails.
func (e *Engine) selfID() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return uuid.Nil
	}
	return e.session.UserID
}
