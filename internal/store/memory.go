// ABOUTME: In-memory Store implementation for tests and offline demos
// ABOUTME: Mirrors the postgres/redis semantics without network access

package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/models"
)

// Memory implements Store entirely in memory. It follows the same invariants
// as the real stores: single pending request per ordered pair, terminal
// request states, live rows merged into friend listings.
type Memory struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*models.UserPresence
	passwords  map[uuid.UUID]string
	sessions   map[string]*Session
	friends    map[uuid.UUID]map[uuid.UUID]bool
	requests   map[uuid.UUID]*models.FriendRequest
	alerts     map[uuid.UUID][]models.Alert
	live       map[uuid.UUID]*LiveLocation
	liveWrites map[uuid.UUID]int
	sessionFns []SessionFunc

	// FailOn, when set, lets tests inject a failure for a named operation
	// ("ListFriends", "ListPendingFor", ...). Returning nil means proceed.
	FailOn func(op string) error
}

// Compile-time check that Memory implements Store.
var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:      make(map[uuid.UUID]*models.UserPresence),
		passwords:  make(map[uuid.UUID]string),
		sessions:   make(map[string]*Session),
		friends:    make(map[uuid.UUID]map[uuid.UUID]bool),
		requests:   make(map[uuid.UUID]*models.FriendRequest),
		alerts:     make(map[uuid.UUID][]models.Alert),
		live:       make(map[uuid.UUID]*LiveLocation),
		liveWrites: make(map[uuid.UUID]int),
	}
}

func (m *Memory) fail(op string) error {
	if m.FailOn != nil {
		return m.FailOn(op)
	}
	return nil
}

// Close releases nothing; Memory holds no external resources.
func (m *Memory) Close() error {
	return nil
}

// --- Auth ---

// SignUp creates an account and opens a session.
func (m *Memory) SignUp(_ context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	email = strings.TrimSpace(strings.ToLower(email))
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			m.mu.Unlock()
			return nil, ErrEmailTaken
		}
	}
	profile := models.NewProfile(uuid.New(), email, "", "")
	m.users[profile.ID] = profile
	m.passwords[profile.ID] = password
	session := &Session{Token: uuid.New().String(), UserID: profile.ID, Email: email}
	m.sessions[session.Token] = session
	m.mu.Unlock()

	m.fireSessionChange(session)
	return session, nil
}

// SignInPassword authenticates with email and password.
func (m *Memory) SignInPassword(_ context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	var found *models.UserPresence
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			found = u
			break
		}
	}
	if found == nil || m.passwords[found.ID] != password {
		m.mu.Unlock()
		return nil, ErrInvalidCredentials
	}
	session := &Session{Token: uuid.New().String(), UserID: found.ID, Email: found.Email}
	m.sessions[session.Token] = session
	m.mu.Unlock()

	m.fireSessionChange(session)
	return session, nil
}

// SignInGoogleIDToken treats the token as a pre-verified email, which is
// enough for tests; real verification lives in the postgres store.
func (m *Memory) SignInGoogleIDToken(_ context.Context, idToken string) (*Session, error) {
	email := strings.TrimSpace(strings.ToLower(idToken))

	m.mu.Lock()
	var found *models.UserPresence
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			found = u
			break
		}
	}
	if found == nil {
		found = models.NewProfile(uuid.New(), email, "", "")
		m.users[found.ID] = found
	}
	session := &Session{Token: uuid.New().String(), UserID: found.ID, Email: found.Email}
	m.sessions[session.Token] = session
	m.mu.Unlock()

	m.fireSessionChange(session)
	return session, nil
}

// Resume restores a session from a token.
func (m *Memory) Resume(_ context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// SignOut revokes a session.
func (m *Memory) SignOut(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	m.fireSessionChange(nil)
	return nil
}

// OnSessionChange registers a session watcher.
func (m *Memory) OnSessionChange(fn SessionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionFns = append(m.sessionFns, fn)
}

func (m *Memory) fireSessionChange(s *Session) {
	m.mu.Lock()
	fns := make([]SessionFunc, len(m.sessionFns))
	copy(fns, m.sessionFns)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// --- Profiles ---

// GetProfile retrieves a profile by user id.
func (m *Memory) GetProfile(_ context.Context, id uuid.UUID) (*models.UserPresence, error) {
	if err := m.fail("GetProfile"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// CreateProfile inserts a profile.
func (m *Memory) CreateProfile(_ context.Context, profile *models.UserPresence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[profile.ID]; !ok {
		copied := *profile
		m.users[profile.ID] = &copied
	}
	return nil
}

// UpdateProfile applies non-nil fields.
func (m *Memory) UpdateProfile(_ context.Context, id uuid.UUID, updates ProfileUpdate) error {
	if err := m.fail("UpdateProfile"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if updates.Username != nil {
		for otherID, other := range m.users {
			if otherID != id && strings.EqualFold(other.Username, *updates.Username) {
				return ErrUsernameTaken
			}
		}
		u.Username = *updates.Username
	}
	if updates.Name != nil {
		u.Name = *updates.Name
	}
	if updates.Avatar != nil {
		u.Avatar = *updates.Avatar
	}
	if updates.IsSharing != nil {
		u.IsSharing = *updates.IsSharing
	}
	return nil
}

// FindUserByIdentifier matches a user by email or username.
func (m *Memory) FindUserByIdentifier(_ context.Context, identifier string) (*models.UserPresence, error) {
	if err := m.fail("FindUserByIdentifier"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identifier = strings.TrimSpace(identifier)
	for _, u := range m.users {
		if strings.EqualFold(u.Email, identifier) || strings.EqualFold(u.Username, identifier) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// UsernameExists reports whether another user holds the username.
func (m *Memory) UsernameExists(_ context.Context, username string, excluding uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if id != excluding && strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

// --- Friends ---

// ListFriends returns friends with live presence merged in.
func (m *Memory) ListFriends(_ context.Context, userID uuid.UUID) ([]models.UserPresence, error) {
	if err := m.fail("ListFriends"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserPresence
	for friendID := range m.friends[userID] {
		u, ok := m.users[friendID]
		if !ok {
			continue
		}
		friend := *u
		if row, ok := m.live[friendID]; ok {
			MergeLive(&friend, row)
		}
		out = append(out, friend)
	}
	return out, nil
}

// InsertFriendPair records the relation in both directions.
func (m *Memory) InsertFriendPair(_ context.Context, a, b uuid.UUID) error {
	if err := m.fail("InsertFriendPair"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.friends[a] == nil {
		m.friends[a] = make(map[uuid.UUID]bool)
	}
	if m.friends[b] == nil {
		m.friends[b] = make(map[uuid.UUID]bool)
	}
	m.friends[a][b] = true
	m.friends[b][a] = true
	return nil
}

// --- Friend requests ---

// ListPendingFor returns pending incoming requests with the sender joined.
func (m *Memory) ListPendingFor(_ context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error) {
	if err := m.fail("ListPendingFor"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FriendRequest
	for _, req := range m.requests {
		if req.ReceiverID != receiverID || req.Status != models.RequestPending {
			continue
		}
		copied := *req
		if sender, ok := m.users[req.RequesterID]; ok {
			s := *sender
			copied.Sender = &s
		}
		out = append(out, copied)
	}
	return out, nil
}

// PendingBetween reports a pending request in either direction.
func (m *Memory) PendingBetween(_ context.Context, a, b uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if req.Status != models.RequestPending {
			continue
		}
		if (req.RequesterID == a && req.ReceiverID == b) ||
			(req.RequesterID == b && req.ReceiverID == a) {
			return true, nil
		}
	}
	return false, nil
}

// CreateRequest inserts a pending request, enforcing the single-pending
// invariant the way the postgres partial index does.
func (m *Memory) CreateRequest(_ context.Context, req *models.FriendRequest) error {
	if err := m.fail("CreateRequest"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.Status == models.RequestPending &&
			existing.RequesterID == req.RequesterID &&
			existing.ReceiverID == req.ReceiverID {
			return ErrDuplicatePending
		}
	}
	copied := *req
	m.requests[req.ID] = &copied
	return nil
}

// GetRequest retrieves a request by id.
func (m *Memory) GetRequest(_ context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *req
	return &copied, nil
}

// SetRequestStatus moves a pending request into a terminal state.
func (m *Memory) SetRequestStatus(_ context.Context, id uuid.UUID, status models.RequestStatus) error {
	if err := m.fail("SetRequestStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != models.RequestPending {
		return ErrNotFound
	}
	req.Status = status
	return nil
}

// --- Alerts ---

// ListRecentAlerts returns the user's alerts, newest first.
func (m *Memory) ListRecentAlerts(_ context.Context, userID uuid.UUID, limit int) ([]models.Alert, error) {
	if err := m.fail("ListRecentAlerts"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.alerts[userID]
	out := make([]models.Alert, 0, len(stored))
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

// MarkAlertRead marks an alert as read.
func (m *Memory) MarkAlertRead(_ context.Context, id uuid.UUID) error {
	if err := m.fail("MarkAlertRead"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID := range m.alerts {
		for i := range m.alerts[userID] {
			if m.alerts[userID][i].ID == id {
				m.alerts[userID][i].IsRead = true
				return nil
			}
		}
	}
	return nil
}

// InsertAlert delivers an alert to a user.
func (m *Memory) InsertAlert(_ context.Context, userID uuid.UUID, alert *models.Alert) error {
	if err := m.fail("InsertAlert"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[userID] = append(m.alerts[userID], *alert)
	return nil
}

// --- Presence ---

// UpsertLive writes a live-location row.
func (m *Memory) UpsertLive(_ context.Context, loc *LiveLocation) error {
	if err := m.fail("UpsertLive"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *loc
	m.live[loc.UserID] = &copied
	m.liveWrites[loc.UserID]++
	return nil
}

// GetLive reads a live-location row.
func (m *Memory) GetLive(_ context.Context, userID uuid.UUID) (*LiveLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.live[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *loc
	return &copied, nil
}

// PublishCount reports how many live upserts a user has made; test helper.
func (m *Memory) PublishCount(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveWrites[userID]
}

// SeedUser inserts a profile directly; test helper.
func (m *Memory) SeedUser(u *models.UserPresence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *u
	m.users[u.ID] = &copied
}

// SeedFriendship links two users directly; test helper.
func (m *Memory) SeedFriendship(a, b uuid.UUID) {
	_ = m.InsertFriendPair(context.Background(), a, b)
}

// SeedRequest inserts a request directly; test helper.
func (m *Memory) SeedRequest(req *models.FriendRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *req
	m.requests[req.ID] = &copied
}

// SeedAlert inserts an alert directly; test helper.
func (m *Memory) SeedAlert(userID uuid.UUID, alert models.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[userID] = append(m.alerts[userID], alert)
}
