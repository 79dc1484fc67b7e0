// ABOUTME: Unit tests for feed payload normalization
// ABOUTME: Tests decoding, scoping, and rejection of malformed payloads

package feed

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestNormalizePresence(t *testing.T) {
	userID := uuid.New()
	payload := fmt.Sprintf(
		`{"user_id":%q,"latitude":37.77,"longitude":-122.41,"battery_level":80,"is_online":true,"updated_at":"2026-08-30T12:00:00Z"}`,
		userID)

	ev, ok := normalizePresence([]byte(payload), testLogger())
	if !ok {
		t.Fatal("expected payload to normalize")
	}
	if ev.Op != OpUpdate {
		t.Errorf("expected %q op, got %q", OpUpdate, ev.Op)
	}
	if ev.Row.UserID != userID {
		t.Error("user id not carried through")
	}
	if ev.Row.Latitude != 37.77 || ev.Row.Longitude != -122.41 {
		t.Error("coordinates not carried through")
	}
	if ev.Row.BatteryLevel != 80 {
		t.Errorf("expected battery 80, got %d", ev.Row.BatteryLevel)
	}
	if ev.Row.UpdatedAt.IsZero() {
		t.Error("updated_at not carried through")
	}
}

func TestNormalizePresenceRejectsGarbage(t *testing.T) {
	if _, ok := normalizePresence([]byte("not json"), testLogger()); ok {
		t.Error("expected malformed payload to be dropped")
	}
	if _, ok := normalizePresence([]byte(`{"latitude":1}`), testLogger()); ok {
		t.Error("expected payload without user id to be dropped")
	}
}

func TestNormalizeSocialScoping(t *testing.T) {
	me := uuid.New()
	other := uuid.New()
	requestID := uuid.New()

	mine := fmt.Sprintf(`{"op":"INSERT","row":{"id":%q,"receiver_id":%q}}`, requestID, me)
	ev, ok := normalizeSocial([]byte(mine), me, testLogger())
	if !ok {
		t.Fatal("expected event scoped to me to pass")
	}
	if ev.Op != OpInsert {
		t.Errorf("expected %q, got %q", OpInsert, ev.Op)
	}
	if ev.RequestID != requestID {
		t.Error("request id not carried through")
	}

	theirs := fmt.Sprintf(`{"op":"INSERT","row":{"id":%q,"receiver_id":%q}}`, requestID, other)
	if _, ok := normalizeSocial([]byte(theirs), me, testLogger()); ok {
		t.Error("expected event for another receiver to be filtered out")
	}
}

func TestNormalizeSocialOps(t *testing.T) {
	me := uuid.New()
	tests := []struct {
		pgOp string
		want Op
	}{
		{"INSERT", OpInsert},
		{"UPDATE", OpUpdate},
		{"DELETE", OpDelete},
	}
	for _, tt := range tests {
		payload := fmt.Sprintf(`{"op":%q,"row":{"id":%q,"receiver_id":%q}}`, tt.pgOp, uuid.New(), me)
		ev, ok := normalizeSocial([]byte(payload), me, testLogger())
		if !ok {
			t.Fatalf("expected %s payload to normalize", tt.pgOp)
		}
		if ev.Op != tt.want {
			t.Errorf("op %s: expected %q, got %q", tt.pgOp, tt.want, ev.Op)
		}
	}
}

func TestNormalizeSocialRejectsGarbage(t *testing.T) {
	if _, ok := normalizeSocial([]byte("nope"), uuid.New(), testLogger()); ok {
		t.Error("expected malformed payload to be dropped")
	}
}

func TestPresenceCloseUnblocksStalledConsumer(t *testing.T) {
	a := &PresenceAdapter{
		events: make(chan PresenceEvent, 1),
		done:   make(chan struct{}),
		log:    testLogger(),
	}
	payload := fmt.Sprintf(
		`{"user_id":%q,"latitude":1,"longitude":2,"updated_at":"2026-08-30T12:00:00Z"}`,
		uuid.New())
	msgs := make(chan *redis.Message, 3)
	for i := 0; i < 3; i++ {
		msgs <- &redis.Message{Payload: payload}
	}
	close(msgs)

	loopDone := make(chan struct{})
	go func() {
		a.loop(msgs)
		close(loopDone)
	}()

	// Nobody drains events, so the buffer fills and the loop blocks on the
	// second send until Close signals it.
	if err := a.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	select {
	case <-loopDone:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after close with a full event buffer")
	}
}
