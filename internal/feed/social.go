// ABOUTME: Social feed adapter over postgres LISTEN/NOTIFY
// ABOUTME: Streams friend-request changes scoped to the current user

package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fightbackff-oss/trackmate/internal/store"
)

// SocialAdapter holds a dedicated LISTEN connection for friend-request
// changes. Only events whose receiver matches the current user are emitted.
type SocialAdapter struct {
	events     chan SocialEvent
	cancel     context.CancelFunc
	log        *slog.Logger
	receiverID uuid.UUID
	closeOnce  sync.Once
}

// OpenSocialFeed acquires a dedicated connection, issues LISTEN, and starts
// streaming. The adapter must be closed exactly once when the session ends.
func OpenSocialFeed(ctx context.Context, pool *pgxpool.Pool, receiverID uuid.UUID) (*SocialAdapter, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+store.RequestNotifyChannel); err != nil {
		conn.Release()
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	a := &SocialAdapter{
		events:     make(chan SocialEvent, 16),
		cancel:     cancel,
		log:        slog.With("component", "feed.social"),
		receiverID: receiverID,
	}
	go a.loop(loopCtx, conn)
	return a, nil
}

// Events yields normalized social events. The channel closes after Close.
func (a *SocialAdapter) Events() <-chan SocialEvent {
	return a.events
}

// Close releases the LISTEN connection. Guarded against duplicate calls.
func (a *SocialAdapter) Close() error {
	a.closeOnce.Do(a.cancel)
	return nil
}

func (a *SocialAdapter) loop(ctx context.Context, conn *pgxpool.Conn) {
	defer close(a.events)
	defer conn.Release()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				a.log.Warn("social feed terminated", "error", err)
			}
			return
		}
		ev, ok := normalizeSocial([]byte(notification.Payload), a.receiverID, a.log)
		if !ok {
			continue
		}
		select {
		case a.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
