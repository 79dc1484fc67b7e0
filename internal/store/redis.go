// ABOUTME: Redis live-location store and presence change publisher
// ABOUTME: Keeps hot presence rows with a TTL and fans out changes via pub/sub

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// liveKeyPrefix prefixes per-user live-location keys.
	liveKeyPrefix = "trackmate:live:"

	// PresenceChannel is the pub/sub channel carrying live-location changes.
	PresenceChannel = "trackmate:presence"

	// liveTTL bounds how long a stale live row survives without updates.
	liveTTL = 24 * time.Hour
)

// LiveKey builds the live-location key for a user.
func LiveKey(userID uuid.UUID) string {
	return liveKeyPrefix + userID.String()
}

// Redis implements PresenceStore over a redis client.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

// OpenRedis connects to the presence store.
func OpenRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		client: client,
		log:    slog.With("component", "store.redis"),
	}, nil
}

// NewRedisWithClient wraps an existing client, used by tests.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, log: slog.With("component", "store.redis")}
}

// Client exposes the underlying client for feed subscriptions.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// UpsertLive writes a user's live-location row and publishes the change on
// the presence channel.
func (r *Redis) UpsertLive(ctx context.Context, loc *LiveLocation) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("marshal live location: %w", err)
	}
	if err := r.client.Set(ctx, LiveKey(loc.UserID), payload, liveTTL).Err(); err != nil {
		return fmt.Errorf("set live location: %w", err)
	}
	if err := r.client.Publish(ctx, PresenceChannel, payload).Err(); err != nil {
		// The row landed; a lost notification is recovered by the next one.
		r.log.Warn("publish presence change failed", "user", loc.UserID, "error", err)
	}
	return nil
}

// GetLive reads a user's live-location row. Returns ErrNotFound when the row
// is absent or expired.
func (r *Redis) GetLive(ctx context.Context, userID uuid.UUID) (*LiveLocation, error) {
	raw, err := r.client.Get(ctx, LiveKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get live location: %w", err)
	}
	var loc LiveLocation
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return nil, fmt.Errorf("unmarshal live location: %w", err)
	}
	return &loc, nil
}

// GetLiveBatch reads live rows for many users in one round trip. Missing and
// undecodable rows are skipped.
func (r *Redis) GetLiveBatch(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*LiveLocation, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = LiveKey(id)
	}
	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget live locations: %w", err)
	}

	out := make(map[uuid.UUID]*LiveLocation, len(userIDs))
	for i, result := range results {
		if result == nil {
			continue
		}
		raw, ok := result.(string)
		if !ok || raw == "" {
			continue
		}
		var loc LiveLocation
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			r.log.Warn("undecodable live location row", "user", userIDs[i], "error", err)
			continue
		}
		out[loc.UserID] = &loc
	}
	return out, nil
}
