// ABOUTME: Throttled publisher pushing own position fixes to the hot store
// ABOUTME: Honors the sharing toggle and drops invalid or too-frequent samples

package geo

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/fightbackff-oss/trackmate/internal/store"
)

// DefaultPublishInterval is the minimum spacing between live-location writes.
const DefaultPublishInterval = 5 * time.Second

// BatteryFunc reports the device battery percentage, or -1 when unknown.
type BatteryFunc func() int

// Publisher writes the local user's fixes to the presence store at a bounded
// rate. Sharing is consulted per sample, so flipping the toggle off stops
// writes within one interval without restarting the watch.
type Publisher struct {
	store    store.PresenceStore
	userID   uuid.UUID
	sharing  func() bool
	battery  BatteryFunc
	interval time.Duration
	log      *slog.Logger

	lastPublish time.Time
}

// NewPublisher creates a publisher for the given user. sharing must not be
// nil; battery may be nil when the platform exposes no battery reading.
func NewPublisher(st store.PresenceStore, userID uuid.UUID, sharing func() bool, battery BatteryFunc, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	return &Publisher{
		store:    st,
		userID:   userID,
		sharing:  sharing,
		battery:  battery,
		interval: interval,
		log:      slog.With("component", "publisher"),
	}
}

// Offer considers one sample for publication. It reports whether a write was
// attempted. Publish failures are logged and swallowed; the next sample
// retries naturally.
func (p *Publisher) Offer(ctx context.Context, s Sample) bool {
	if !models.ValidCoordinates(s.Lat, s.Lng) {
		return false
	}
	if !p.sharing() {
		return false
	}
	now := time.Now()
	if !p.lastPublish.IsZero() && now.Sub(p.lastPublish) < p.interval {
		return false
	}
	p.lastPublish = now

	battery := -1
	if p.battery != nil {
		battery = p.battery()
	}
	row := &store.LiveLocation{
		UserID:       p.userID,
		Latitude:     s.Lat,
		Longitude:    s.Lng,
		Accuracy:     s.Accuracy,
		BatteryLevel: battery,
		IsOnline:     true,
		UpdatedAt:    s.CapturedAt,
	}
	if err := p.store.UpsertLive(ctx, row); err != nil {
		p.log.Warn("live location publish failed", "error", err)
	}
	return true
}

// MarkOffline best-effort flags the user offline at their last position,
// called on shutdown so friends see a clean offline state instead of a
// stale online row aging out by TTL.
func (p *Publisher) MarkOffline(ctx context.Context) {
	last, err := p.store.GetLive(ctx, p.userID)
	if err != nil {
		return
	}
	last.IsOnline = false
	last.UpdatedAt = time.Now()
	if err := p.store.UpsertLive(ctx, last); err != nil {
		p.log.Warn("offline marker write failed", "error", err)
	}
}
