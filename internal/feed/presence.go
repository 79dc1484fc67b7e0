// ABOUTME: Presence feed adapter over the redis pub/sub channel
// ABOUTME: Streams normalized live-location change events until closed

package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/fightbackff-oss/trackmate/internal/store"
)

// PresenceAdapter subscribes to live-location changes for all users. Events
// arrive in publisher order; the adapter performs no reordering.
type PresenceAdapter struct {
	pubsub    *redis.PubSub
	events    chan PresenceEvent
	done      chan struct{}
	log       *slog.Logger
	closeOnce sync.Once
}

// OpenPresenceFeed opens the subscription and starts decoding events.
// The returned adapter must be closed exactly once when the session ends;
// leaking it duplicates future event delivery on re-subscribe.
func OpenPresenceFeed(ctx context.Context, client *redis.Client) (*PresenceAdapter, error) {
	pubsub := client.Subscribe(ctx, store.PresenceChannel)
	// Confirm the subscription before handing out the adapter.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	a := &PresenceAdapter{
		pubsub: pubsub,
		events: make(chan PresenceEvent, 64),
		done:   make(chan struct{}),
		log:    slog.With("component", "feed.presence"),
	}
	go a.loop(pubsub.Channel())
	return a, nil
}

// Events yields normalized presence events. The channel closes after Close.
func (a *PresenceAdapter) Events() <-chan PresenceEvent {
	return a.events
}

// Close tears down the subscription. Guarded so a duplicate Close cannot
// panic, but callers own calling it exactly once.
func (a *PresenceAdapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		if a.pubsub != nil {
			err = a.pubsub.Close()
		}
	})
	return err
}

// loop decodes messages until the subscription drains. The send selects on
// done so a stalled consumer cannot wedge the loop past Close.
func (a *PresenceAdapter) loop(msgs <-chan *redis.Message) {
	defer close(a.events)
	for msg := range msgs {
		ev, ok := normalizePresence([]byte(msg.Payload), a.log)
		if !ok {
			continue
		}
		select {
		case a.events <- ev:
		case <-a.done:
			return
		}
	}
}
