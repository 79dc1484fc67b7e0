// ABOUTME: Tests for the reconciliation engine against the in-memory store
// ABOUTME: Covers bootstrap degradation, event merging, and command guards

package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/feed"
	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/fightbackff-oss/trackmate/internal/store"
)

func seededEngine(t *testing.T) (*Engine, *store.Memory, *models.UserPresence) {
	t.Helper()
	mem := store.NewMemory()
	self := models.NewProfile(uuid.New(), "ada@example.com", "Ada", "ada")
	mem.SeedUser(self)
	eng := New(mem)
	eng.Bootstrap(context.Background(), &store.Session{
		Token:  "tok",
		UserID: self.ID,
		Email:  self.Email,
	})
	return eng, mem, self
}

func seedFriend(t *testing.T, mem *store.Memory, selfID uuid.UUID, email, username string) *models.UserPresence {
	t.Helper()
	friend := models.NewProfile(uuid.New(), email, "", username)
	mem.SeedUser(friend)
	mem.SeedFriendship(selfID, friend.ID)
	return friend
}

func TestBootstrapCreatesDefaultProfile(t *testing.T) {
	mem := store.NewMemory()
	eng := New(mem)
	id := uuid.New()
	eng.Bootstrap(context.Background(), &store.Session{Token: "t", UserID: id, Email: "Grace@Example.com"})

	snap := eng.Snapshot()
	if snap.Self == nil {
		t.Fatal("expected snapshot self after bootstrap")
	}
	if snap.Self.Username != "grace" {
		t.Errorf("expected username 'grace', got %q", snap.Self.Username)
	}
	if !snap.Self.IsSharing {
		t.Error("new profiles should default to sharing enabled")
	}
	if _, err := mem.GetProfile(context.Background(), id); err != nil {
		t.Errorf("expected profile persisted, got %v", err)
	}
}

func TestBootstrapToleratesPartialFailure(t *testing.T) {
	mem := store.NewMemory()
	self := models.NewProfile(uuid.New(), "ada@example.com", "Ada", "ada")
	mem.SeedUser(self)
	seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	mem.SeedAlert(self.ID, *models.NewAlert(models.AlertSystem, "welcome", uuid.Nil))
	mem.FailOn = func(op string) error {
		if op == "ListFriends" {
			return fmt.Errorf("network down")
		}
		return nil
	}

	eng := New(mem)
	eng.Bootstrap(context.Background(), &store.Session{Token: "t", UserID: self.ID, Email: self.Email})

	snap := eng.Snapshot()
	if snap.Self == nil {
		t.Fatal("self should survive a friends fetch failure")
	}
	if len(snap.Friends) != 0 {
		t.Errorf("failed friends fetch should leave slice empty, got %d", len(snap.Friends))
	}
	if len(snap.Alerts) != 1 {
		t.Errorf("alerts should load independently, got %d", len(snap.Alerts))
	}

	// Recovery: a later refetch fills the slice in.
	mem.FailOn = nil
	eng.RefreshFriends(context.Background())
	if got := len(eng.Snapshot().Friends); got != 1 {
		t.Errorf("expected 1 friend after recovery, got %d", got)
	}
}

func TestBootstrapSurvivesProfileFailure(t *testing.T) {
	mem := store.NewMemory()
	self := models.NewProfile(uuid.New(), "ada@example.com", "Ada", "ada")
	mem.SeedUser(self)
	seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	mem.SeedAlert(self.ID, *models.NewAlert(models.AlertSystem, "welcome", uuid.Nil))
	mem.FailOn = func(op string) error {
		if op == "GetProfile" {
			return fmt.Errorf("network down")
		}
		return nil
	}

	eng := New(mem)
	eng.Bootstrap(context.Background(), &store.Session{Token: "t", UserID: self.ID, Email: self.Email})

	snap := eng.Snapshot()
	if snap.Self != nil {
		t.Error("failed profile fetch should leave self empty until the next bootstrap")
	}
	if len(snap.Friends) != 1 {
		t.Errorf("friends should load despite the profile failure, got %d", len(snap.Friends))
	}
	if len(snap.Alerts) != 1 {
		t.Errorf("alerts should load despite the profile failure, got %d", len(snap.Alerts))
	}
}

func TestApplyPresenceEventUnknownID(t *testing.T) {
	eng, mem, self := seededEngine(t)
	seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	eng.RefreshFriends(context.Background())

	before := eng.Snapshot()
	eng.ApplyPresenceEvent(feed.PresenceEvent{
		Op: feed.OpUpdate,
		Row: store.LiveLocation{
			UserID:    uuid.New(),
			Latitude:  10,
			Longitude: 20,
			IsOnline:  true,
			UpdatedAt: time.Now(),
		},
	})

	after := eng.Snapshot()
	if len(after.Friends) != len(before.Friends) {
		t.Errorf("unknown-id presence event changed roster size: %d -> %d", len(before.Friends), len(after.Friends))
	}
	if after.Friends[0].Location != nil {
		t.Error("unknown-id presence event leaked into an existing friend")
	}
}

func TestApplyPresenceEventMergesFriend(t *testing.T) {
	eng, mem, self := seededEngine(t)
	friend := seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	eng.RefreshFriends(context.Background())

	now := time.Now()
	eng.ApplyPresenceEvent(feed.PresenceEvent{
		Op: feed.OpUpdate,
		Row: store.LiveLocation{
			UserID:       friend.ID,
			Latitude:     48.8584,
			Longitude:    2.2945,
			BatteryLevel: 73,
			IsOnline:     true,
			UpdatedAt:    now,
		},
	})

	got := eng.Snapshot().Friends[0]
	if got.Location == nil {
		t.Fatal("expected location set after presence event")
	}
	if got.Location.Lat != 48.8584 || got.Location.Lng != 2.2945 {
		t.Errorf("unexpected location %v", got.Location)
	}
	if got.BatteryLevel != 73 {
		t.Errorf("expected battery 73, got %d", got.BatteryLevel)
	}
	if got.Status != models.StatusOnline {
		t.Errorf("expected online status, got %s", got.Status)
	}
}

func TestApplyPresenceEventInvalidCoordinates(t *testing.T) {
	eng, mem, self := seededEngine(t)
	friend := seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	eng.RefreshFriends(context.Background())

	eng.ApplyPresenceEvent(feed.PresenceEvent{
		Op:  feed.OpUpdate,
		Row: store.LiveLocation{UserID: friend.ID, Latitude: 10, Longitude: 20, IsOnline: true, UpdatedAt: time.Now()},
	})
	eng.ApplyPresenceEvent(feed.PresenceEvent{
		Op: feed.OpUpdate,
		Row: store.LiveLocation{
			UserID:       friend.ID,
			Latitude:     math.NaN(),
			Longitude:    math.Inf(1),
			BatteryLevel: 12,
			IsOnline:     true,
			UpdatedAt:    time.Now(),
		},
	})

	got := eng.Snapshot().Friends[0]
	if got.Location == nil {
		t.Fatal("valid location should survive an invalid follow-up")
	}
	if got.Location.Lat != 10 || got.Location.Lng != 20 {
		t.Errorf("invalid coordinates overwrote a valid fix: %v", got.Location)
	}
	if got.BatteryLevel != 12 {
		t.Errorf("battery should still update, got %d", got.BatteryLevel)
	}
}

func TestApplySocialEventScoping(t *testing.T) {
	eng, mem, self := seededEngine(t)
	requester := models.NewProfile(uuid.New(), "bob@example.com", "", "bob")
	mem.SeedUser(requester)
	mem.SeedRequest(models.NewFriendRequest(requester.ID, self.ID))

	// Event for another receiver is ignored.
	eng.ApplySocialEvent(context.Background(), feed.SocialEvent{Op: feed.OpInsert, ReceiverID: uuid.New()})
	if got := len(eng.Snapshot().PendingRequests); got != 0 {
		t.Errorf("foreign event triggered a refetch, pending = %d", got)
	}

	eng.ApplySocialEvent(context.Background(), feed.SocialEvent{Op: feed.OpInsert, ReceiverID: self.ID})
	pending := eng.Snapshot().PendingRequests
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request after own event, got %d", len(pending))
	}
	if pending[0].Sender == nil || pending[0].Sender.Username != "bob" {
		t.Error("pending request missing joined sender profile")
	}
}

func TestRequestFriendGuards(t *testing.T) {
	eng, mem, self := seededEngine(t)
	friend := seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	eng.RefreshFriends(context.Background())

	if err := eng.RequestFriend(context.Background(), "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown identifier: expected ErrNotFound, got %v", err)
	}
	if err := eng.RequestFriend(context.Background(), self.Email); !errors.Is(err, store.ErrSelfReference) {
		t.Errorf("self request: expected ErrSelfReference, got %v", err)
	}
	if err := eng.RequestFriend(context.Background(), friend.Username); !errors.Is(err, store.ErrAlreadyFriends) {
		t.Errorf("existing friend: expected ErrAlreadyFriends, got %v", err)
	}
}

func TestRequestFriendDuplicatePending(t *testing.T) {
	eng, mem, _ := seededEngine(t)
	target := models.NewProfile(uuid.New(), "bob@example.com", "", "bob")
	mem.SeedUser(target)

	if err := eng.RequestFriend(context.Background(), "bob"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if err := eng.RequestFriend(context.Background(), "BOB@example.com"); !errors.Is(err, store.ErrDuplicatePending) {
		t.Errorf("duplicate request: expected ErrDuplicatePending, got %v", err)
	}

	pending, err := mem.ListPendingFor(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("listing pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected exactly one pending request, got %d", len(pending))
	}
}

func TestAcceptRequest(t *testing.T) {
	eng, mem, self := seededEngine(t)
	requester := models.NewProfile(uuid.New(), "bob@example.com", "", "bob")
	mem.SeedUser(requester)
	req := models.NewFriendRequest(requester.ID, self.ID)
	mem.SeedRequest(req)
	eng.RefreshPending(context.Background())

	if err := eng.AcceptRequest(context.Background(), req.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	snap := eng.Snapshot()
	if len(snap.PendingRequests) != 0 {
		t.Errorf("expected empty pending after accept, got %d", len(snap.PendingRequests))
	}
	if len(snap.Friends) != 1 || snap.Friends[0].ID != requester.ID {
		t.Errorf("expected requester in friends, got %v", snap.Friends)
	}
	// Friendship is queryable from the requester's side too.
	theirs, err := mem.ListFriends(context.Background(), requester.ID)
	if err != nil {
		t.Fatalf("listing requester friends: %v", err)
	}
	if len(theirs) != 1 || theirs[0].ID != self.ID {
		t.Error("friendship not recorded in the reverse direction")
	}
	// Terminal state: a second accept finds no pending row.
	if err := eng.AcceptRequest(context.Background(), req.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("re-accept: expected ErrNotFound, got %v", err)
	}
}

func TestDeclineRequestRetainsRow(t *testing.T) {
	eng, mem, self := seededEngine(t)
	requester := models.NewProfile(uuid.New(), "bob@example.com", "", "bob")
	mem.SeedUser(requester)
	req := models.NewFriendRequest(requester.ID, self.ID)
	mem.SeedRequest(req)
	eng.RefreshPending(context.Background())

	if err := eng.DeclineRequest(context.Background(), req.ID); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if got := len(eng.Snapshot().PendingRequests); got != 0 {
		t.Errorf("expected empty pending after decline, got %d", got)
	}
	stored, err := mem.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("declined row should be retained: %v", err)
	}
	if stored.Status != models.RequestRejected {
		t.Errorf("expected rejected status, got %s", stored.Status)
	}
}

func TestDismissAlertSurvivesRemoteFailure(t *testing.T) {
	eng, mem, self := seededEngine(t)
	alert := models.NewAlert(models.AlertSystem, "battery low", uuid.Nil)
	mem.SeedAlert(self.ID, *alert)
	eng.refreshAlerts(context.Background())
	mem.FailOn = func(op string) error {
		if op == "MarkAlertRead" {
			return fmt.Errorf("write timeout")
		}
		return nil
	}

	eng.DismissAlert(context.Background(), alert.ID)
	if got := len(eng.Snapshot().Alerts); got != 0 {
		t.Errorf("dismissed alert should vanish locally despite remote failure, got %d", got)
	}
}

func TestPushAlertCapsWindow(t *testing.T) {
	eng, _, _ := seededEngine(t)
	for i := 0; i < models.MaxAlerts+5; i++ {
		eng.PushAlert(*models.NewAlert(models.AlertSystem, fmt.Sprintf("alert %d", i), uuid.Nil))
	}
	alerts := eng.Snapshot().Alerts
	if len(alerts) != models.MaxAlerts {
		t.Fatalf("expected window capped at %d, got %d", models.MaxAlerts, len(alerts))
	}
	if alerts[0].Message != fmt.Sprintf("alert %d", models.MaxAlerts+4) {
		t.Errorf("expected newest first, head is %q", alerts[0].Message)
	}
}

func TestUpdateProfileUsernameRules(t *testing.T) {
	eng, mem, _ := seededEngine(t)
	other := models.NewProfile(uuid.New(), "bob@example.com", "", "bob")
	mem.SeedUser(other)

	taken := "BOB"
	if err := eng.UpdateProfile(context.Background(), store.ProfileUpdate{Username: &taken}); !errors.Is(err, store.ErrUsernameTaken) {
		t.Errorf("taken username: expected ErrUsernameTaken, got %v", err)
	}
	blank := "   "
	if err := eng.UpdateProfile(context.Background(), store.ProfileUpdate{Username: &blank}); err == nil {
		t.Error("whitespace username should be rejected")
	}

	fresh := "Ada-Prime"
	if err := eng.UpdateProfile(context.Background(), store.ProfileUpdate{Username: &fresh}); err != nil {
		t.Fatalf("valid update failed: %v", err)
	}
	if got := eng.Snapshot().Self.Username; got != "ada-prime" {
		t.Errorf("expected lowercased username, got %q", got)
	}
}

func TestToggleSharing(t *testing.T) {
	eng, mem, self := seededEngine(t)
	if !eng.SharingEnabled() {
		t.Fatal("sharing should default on")
	}
	if err := eng.ToggleSharing(context.Background(), false); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if eng.SharingEnabled() {
		t.Error("sharing should be off after toggle")
	}
	stored, err := mem.GetProfile(context.Background(), self.ID)
	if err != nil {
		t.Fatalf("loading profile: %v", err)
	}
	if stored.IsSharing {
		t.Error("toggle not persisted")
	}
}

func TestSetOwnLocationDropsInvalid(t *testing.T) {
	eng, _, _ := seededEngine(t)
	eng.SetOwnLocation(models.Location{Lat: 51.5, Lng: -0.12, Timestamp: time.Now()})
	eng.SetOwnLocation(models.Location{Lat: math.NaN(), Lng: 200, Timestamp: time.Now()})

	self := eng.Snapshot().Self
	if self.Location == nil {
		t.Fatal("expected own location set")
	}
	if self.Location.Lat != 51.5 {
		t.Errorf("invalid sample overwrote own location: %v", self.Location)
	}
}

func TestRaiseSOS(t *testing.T) {
	eng, mem, self := seededEngine(t)
	if err := eng.RaiseSOS(context.Background(), ""); err == nil {
		t.Error("sos with no friends should fail")
	}

	f1 := seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	f2 := seedFriend(t, mem, self.ID, "eve@example.com", "eve")
	eng.RefreshFriends(context.Background())
	eng.SetOwnLocation(models.Location{Lat: 40.7, Lng: -74.0, Timestamp: time.Now()})

	if err := eng.RaiseSOS(context.Background(), ""); err != nil {
		t.Fatalf("sos failed: %v", err)
	}
	for _, friendID := range []uuid.UUID{f1.ID, f2.ID} {
		alerts, err := mem.ListRecentAlerts(context.Background(), friendID, 10)
		if err != nil {
			t.Fatalf("listing alerts: %v", err)
		}
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert for friend, got %d", len(alerts))
		}
		if alerts[0].Type != models.AlertSOS || alerts[0].Priority != models.PriorityHigh {
			t.Errorf("expected high-priority SOS, got %s/%s", alerts[0].Type, alerts[0].Priority)
		}
		if alerts[0].SenderID != self.ID {
			t.Error("sos alert missing sender id")
		}
	}
}

func TestAnnounceArrival(t *testing.T) {
	eng, mem, self := seededEngine(t)
	friend := seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	eng.RefreshFriends(context.Background())

	eng.AnnounceArrival(context.Background(), "home")

	alerts, err := mem.ListRecentAlerts(context.Background(), friend.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 arrival alert, got %d", len(alerts))
	}
	if alerts[0].Type != models.AlertArrival || alerts[0].Priority != models.PriorityLow {
		t.Errorf("expected low-priority arrival, got %s/%s", alerts[0].Type, alerts[0].Priority)
	}
	if !strings.Contains(alerts[0].Message, "home") {
		t.Errorf("expected place in message, got %q", alerts[0].Message)
	}
}

func TestSignoutClearsSnapshot(t *testing.T) {
	eng, mem, self := seededEngine(t)
	seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	eng.RefreshFriends(context.Background())

	if err := eng.Signout(context.Background()); err != nil {
		t.Fatalf("signout failed: %v", err)
	}
	snap := eng.Snapshot()
	if snap.Self != nil || len(snap.Friends) != 0 {
		t.Error("snapshot should be empty after signout")
	}
	if eng.Session() != nil {
		t.Error("session should be nil after signout")
	}
}

func TestWatchCoalescesTicks(t *testing.T) {
	eng, _, _ := seededEngine(t)
	ch, stop := eng.Watch()
	defer stop()
	for i := 0; i < 5; i++ {
		eng.PushAlert(*models.NewAlert(models.AlertSystem, "tick", uuid.Nil))
	}
	select {
	case <-ch:
	default:
		t.Fatal("expected at least one tick after mutations")
	}
	// Burst collapsed into a single buffered tick.
	select {
	case <-ch:
		t.Error("expected ticks to coalesce")
	default:
	}
}

func TestWatchCancelUnregisters(t *testing.T) {
	eng, _, _ := seededEngine(t)
	ch, stop := eng.Watch()
	stop()
	stop() // duplicate cancel must be harmless

	eng.mu.Lock()
	remaining := len(eng.watchers)
	eng.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected watcher list to empty after cancel, got %d", remaining)
	}

	eng.PushAlert(*models.NewAlert(models.AlertSystem, "tick", uuid.Nil))
	select {
	case <-ch:
		t.Error("cancelled watcher should not receive ticks")
	default:
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	eng, mem, self := seededEngine(t)
	friend := seedFriend(t, mem, self.ID, "bob@example.com", "bob")
	eng.RefreshFriends(context.Background())
	eng.ApplyPresenceEvent(feed.PresenceEvent{
		Op:  feed.OpUpdate,
		Row: store.LiveLocation{UserID: friend.ID, Latitude: 1, Longitude: 2, UpdatedAt: time.Now()},
	})

	snap := eng.Snapshot()
	snap.Friends[0].Location.Lat = 99
	snap.Self.Name = "mutated"

	again := eng.Snapshot()
	if again.Friends[0].Location.Lat == 99 {
		t.Error("snapshot aliases engine-owned friend location")
	}
	if again.Self.Name == "mutated" {
		t.Error("snapshot aliases engine-owned self")
	}
}
