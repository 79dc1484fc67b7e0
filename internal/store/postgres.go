// ABOUTME: Postgres backing store for users, friends, requests, and alerts
// ABOUTME: Also provides the auth primitive and the friend-request NOTIFY feed

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"

	"github.com/fightbackff-oss/trackmate/internal/models"
)

// RequestNotifyChannel is the LISTEN/NOTIFY channel carrying friend-request
// row changes. A trigger installed by migrate publishes to it.
const RequestNotifyChannel = "trackmate_friend_requests"

const pgUniqueViolation = "23505"

// Postgres implements the relational and auth surfaces of Store.
type Postgres struct {
	pool      *pgxpool.Pool
	googleAud string
	log       *slog.Logger

	mu         sync.Mutex
	sessionFns []SessionFunc
}

// OpenPostgres connects to the backing store and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn, googleAudience string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{
		pool:      pool,
		googleAud: googleAudience,
		log:       slog.With("component", "store.postgres"),
	}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return p, nil
}

// Pool exposes the underlying pool for feed subscriptions that need a
// dedicated LISTEN connection.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// migrate creates or updates the schema, including the NOTIFY trigger that
// feeds the social adapter.
func (p *Postgres) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			is_sharing BOOLEAN NOT NULL DEFAULT TRUE,
			password_hash TEXT NOT NULL DEFAULT '',
			last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_uq
			ON users (lower(username));

		CREATE TABLE IF NOT EXISTS sessions (
			token UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS friends (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			friend_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, friend_id)
		);

		CREATE TABLE IF NOT EXISTS friend_requests (
			id UUID PRIMARY KEY,
			requester_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_pending_uq
			ON friend_requests (requester_id, receiver_id) WHERE status = 'pending';

		CREATE TABLE IF NOT EXISTS alerts (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'LOW',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			sender_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS alerts_user_created_idx
			ON alerts (user_id, created_at DESC);
	`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return err
	}

	trigger := `
		CREATE OR REPLACE FUNCTION trackmate_notify_friend_requests() RETURNS trigger AS $$
		DECLARE
			payload JSONB;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				payload := jsonb_build_object('op', TG_OP, 'row', to_jsonb(OLD));
			ELSE
				payload := jsonb_build_object('op', TG_OP, 'row', to_jsonb(NEW));
			END IF;
			PERFORM pg_notify('` + RequestNotifyChannel + `', payload::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;

		DROP TRIGGER IF EXISTS friend_requests_notify ON friend_requests;
		CREATE TRIGGER friend_requests_notify
			AFTER INSERT OR UPDATE OR DELETE ON friend_requests
			FOR EACH ROW EXECUTE FUNCTION trackmate_notify_friend_requests();
	`
	_, err := p.pool.Exec(ctx, trigger)
	return err
}

// --- Auth ---

// SignUp creates an account with a password and opens a session.
func (p *Postgres) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("password too short (min 6 characters)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.New()
	const q = `
		INSERT INTO users (id, email, username, name, avatar, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	username := models.UsernameFromEmail(email)
	_, err = p.pool.Exec(ctx, q, id.String(), email, username, username, models.DefaultAvatar, string(hash))
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == pgUniqueViolation {
			if pgerr.ConstraintName == "users_username_lower_uq" {
				return nil, ErrUsernameTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return p.openSession(ctx, id, email)
}

// SignInPassword authenticates with email and password.
func (p *Postgres) SignInPassword(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	var idStr, hash string
	const q = `SELECT id, password_hash FROM users WHERE lower(email) = $1`
	err := p.pool.QueryRow(ctx, q, email).Scan(&idStr, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return p.openSession(ctx, id, email)
}

// SignInGoogleIDToken verifies a Google OAuth ID token and signs the matching
// user in, creating the account on first federated login.
func (p *Postgres) SignInGoogleIDToken(ctx context.Context, token string) (*Session, error) {
	if p.googleAud == "" {
		return nil, fmt.Errorf("google client id not configured")
	}
	payload, err := idtoken.Validate(ctx, token, p.googleAud)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return nil, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	email := ""
	if raw, ok := payload.Claims["email"]; ok {
		email, _ = raw.(string)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("id token carries no email claim")
	}

	var idStr string
	err = p.pool.QueryRow(ctx, `SELECT id FROM users WHERE lower(email) = $1`, email).Scan(&idStr)
	if errors.Is(err, pgx.ErrNoRows) {
		id := uuid.New()
		username := models.UsernameFromEmail(email)
		_, err = p.pool.Exec(ctx,
			`INSERT INTO users (id, email, username, name, avatar) VALUES ($1, $2, $3, $4, $5)`,
			id.String(), email, username, username, models.DefaultAvatar)
		if err != nil {
			return nil, fmt.Errorf("create federated user: %w", err)
		}
		return p.openSession(ctx, id, email)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return p.openSession(ctx, id, email)
}

// Resume restores a session from a stored token.
func (p *Postgres) Resume(ctx context.Context, token string) (*Session, error) {
	const q = `
		SELECT u.id, u.email
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1
	`
	var idStr, email string
	err := p.pool.QueryRow(ctx, q, token).Scan(&idStr, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return &Session{Token: token, UserID: id, Email: email}, nil
}

// SignOut revokes a session and notifies session watchers.
func (p *Postgres) SignOut(ctx context.Context, token string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	p.fireSessionChange(nil)
	return nil
}

// OnSessionChange registers a callback fired after sign-in and sign-out.
func (p *Postgres) OnSessionChange(fn SessionFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionFns = append(p.sessionFns, fn)
}

func (p *Postgres) openSession(ctx context.Context, userID uuid.UUID, email string) (*Session, error) {
	token := uuid.New().String()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO sessions (token, user_id) VALUES ($1, $2)`, token, userID.String())
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	session := &Session{Token: token, UserID: userID, Email: email}
	p.fireSessionChange(session)
	return session, nil
}

func (p *Postgres) fireSessionChange(s *Session) {
	p.mu.Lock()
	fns := make([]SessionFunc, len(p.sessionFns))
	copy(fns, p.sessionFns)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// --- Profiles ---

const profileColumns = `id, email, username, name, avatar, is_sharing, last_seen`

// GetProfile retrieves a profile row by user id.
func (p *Postgres) GetProfile(ctx context.Context, id uuid.UUID) (*models.UserPresence, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = $1`, id.String())
	return scanProfile(row)
}

// CreateProfile inserts a profile row, used for first-login bootstrap.
func (p *Postgres) CreateProfile(ctx context.Context, profile *models.UserPresence) error {
	const q = `
		INSERT INTO users (id, email, username, name, avatar, is_sharing)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := p.pool.Exec(ctx, q,
		profile.ID.String(), profile.Email, profile.Username,
		profile.Name, profile.Avatar, profile.IsSharing)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// UpdateProfile applies the non-nil fields of updates to a profile row.
func (p *Postgres) UpdateProfile(ctx context.Context, id uuid.UUID, updates ProfileUpdate) error {
	const q = `
		UPDATE users SET
			name = COALESCE($2, name),
			username = COALESCE($3, username),
			avatar = COALESCE($4, avatar),
			is_sharing = COALESCE($5, is_sharing)
		WHERE id = $1
	`
	ct, err := p.pool.Exec(ctx, q, id.String(),
		updates.Name, updates.Username, updates.Avatar, updates.IsSharing)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == pgUniqueViolation {
			return ErrUsernameTaken
		}
		return fmt.Errorf("update profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindUserByIdentifier matches a user by email or username, case-insensitively.
func (p *Postgres) FindUserByIdentifier(ctx context.Context, identifier string) (*models.UserPresence, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users
		 WHERE lower(email) = lower($1) OR lower(username) = lower($1)`,
		strings.TrimSpace(identifier))
	return scanProfile(row)
}

// UsernameExists reports whether a user other than excluding holds username.
func (p *Postgres) UsernameExists(ctx context.Context, username string, excluding uuid.UUID) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM users WHERE lower(username) = lower($1) AND id <> $2
		)`, username, excluding.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// --- Friends ---

// ListFriends returns the user's friend profiles. Live presence is merged in
// by the Combined store; here friends read as offline with no location.
func (p *Postgres) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserPresence, error) {
	const q = `
		SELECT u.id, u.email, u.username, u.name, u.avatar, u.is_sharing, u.last_seen
		FROM friends f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY u.username
	`
	rows, err := p.pool.Query(ctx, q, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var out []models.UserPresence
	for rows.Next() {
		friend, err := scanProfileFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *friend)
	}
	return out, rows.Err()
}

// InsertFriendPair records the relation in both directions in one transaction.
func (p *Postgres) InsertFriendPair(ctx context.Context, a, b uuid.UUID) error {
	const q = `
		INSERT INTO friends (user_id, friend_id)
		VALUES ($1, $2), ($2, $1)
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`
	if _, err := p.pool.Exec(ctx, q, a.String(), b.String()); err != nil {
		return fmt.Errorf("insert friend pair: %w", err)
	}
	return nil
}

// --- Friend requests ---

// ListPendingFor returns pending incoming requests joined with the requester.
func (p *Postgres) ListPendingFor(ctx context.Context, receiverID uuid.UUID) ([]models.FriendRequest, error) {
	const q = `
		SELECT r.id, r.requester_id, r.receiver_id, r.status, r.created_at,
		       u.id, u.email, u.username, u.name, u.avatar, u.is_sharing, u.last_seen
		FROM friend_requests r
		JOIN users u ON u.id = r.requester_id
		WHERE r.receiver_id = $1 AND r.status = 'pending'
		ORDER BY r.created_at DESC
	`
	rows, err := p.pool.Query(ctx, q, receiverID.String())
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var out []models.FriendRequest
	for rows.Next() {
		var (
			req                 models.FriendRequest
			reqID, fromID, toID string
			status              string
			sender              models.UserPresence
			senderID            string
		)
		err := rows.Scan(&reqID, &fromID, &toID, &status, &req.CreatedAt,
			&senderID, &sender.Email, &sender.Username, &sender.Name,
			&sender.Avatar, &sender.IsSharing, &sender.LastSeen)
		if err != nil {
			return nil, fmt.Errorf("scan pending request: %w", err)
		}
		req.ID, _ = uuid.Parse(reqID)
		req.RequesterID, _ = uuid.Parse(fromID)
		req.ReceiverID, _ = uuid.Parse(toID)
		req.Status = models.RequestStatus(status)
		sender.ID, _ = uuid.Parse(senderID)
		sender.Status = models.StatusOffline
		req.Sender = &sender
		out = append(out, req)
	}
	return out, rows.Err()
}

// PendingBetween reports whether a pending request exists between the pair,
// in either direction.
func (p *Postgres) PendingBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM friend_requests
			WHERE status = 'pending'
			  AND ((requester_id = $1 AND receiver_id = $2)
			    OR (requester_id = $2 AND receiver_id = $1))
		)
	`
	err := p.pool.QueryRow(ctx, q, a.String(), b.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return exists, nil
}

// CreateRequest inserts a pending request. The partial unique index is the
// authoritative duplicate guard; a violation maps to ErrDuplicatePending.
func (p *Postgres) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	const q = `
		INSERT INTO friend_requests (id, requester_id, receiver_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := p.pool.Exec(ctx, q,
		req.ID.String(), req.RequesterID.String(), req.ReceiverID.String(),
		string(req.Status), req.CreatedAt)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == pgUniqueViolation {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create friend request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request row by id.
func (p *Postgres) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	const q = `
		SELECT id, requester_id, receiver_id, status, created_at
		FROM friend_requests WHERE id = $1
	`
	var req models.FriendRequest
	var reqID, fromID, toID, status string
	err := p.pool.QueryRow(ctx, q, id.String()).Scan(&reqID, &fromID, &toID, &status, &req.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	req.ID, _ = uuid.Parse(reqID)
	req.RequesterID, _ = uuid.Parse(fromID)
	req.ReceiverID, _ = uuid.Parse(toID)
	req.Status = models.RequestStatus(status)
	return &req, nil
}

// SetRequestStatus moves a pending request into a terminal state. Rows
// already in a terminal state are left untouched.
func (p *Postgres) SetRequestStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) error {
	const q = `
		UPDATE friend_requests SET status = $2
		WHERE id = $1 AND status = 'pending'
	`
	ct, err := p.pool.Exec(ctx, q, id.String(), string(status))
	if err != nil {
		return fmt.Errorf("set request status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Alerts ---

// ListRecentAlerts returns the user's newest alerts, newest first.
func (p *Postgres) ListRecentAlerts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Alert, error) {
	const q = `
		SELECT id, type, message, priority, is_read, COALESCE(sender_id::text, ''), created_at
		FROM alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, q, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var a models.Alert
		var idStr, alertType, priority, senderStr string
		err := rows.Scan(&idStr, &alertType, &a.Message, &priority, &a.IsRead, &senderStr, &a.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.ID, _ = uuid.Parse(idStr)
		a.Type = models.AlertType(alertType)
		a.Priority = models.Priority(priority)
		a.Title = models.TitleForType(a.Type)
		if senderStr != "" {
			a.SenderID, _ = uuid.Parse(senderStr)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkAlertRead marks an alert as read. Missing rows are not an error; the
// caller has already dismissed the alert locally.
func (p *Postgres) MarkAlertRead(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `UPDATE alerts SET is_read = TRUE WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	return nil
}

// InsertAlert delivers an alert to a user.
func (p *Postgres) InsertAlert(ctx context.Context, userID uuid.UUID, alert *models.Alert) error {
	const q = `
		INSERT INTO alerts (id, user_id, type, message, priority, is_read, sender_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, $8)
	`
	sender := ""
	if alert.SenderID != uuid.Nil {
		sender = alert.SenderID.String()
	}
	_, err := p.pool.Exec(ctx, q,
		alert.ID.String(), userID.String(), string(alert.Type), alert.Message,
		string(alert.Priority), alert.IsRead, sender, alert.Timestamp)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.UserPresence, error) {
	var u models.UserPresence
	var idStr string
	err := row.Scan(&idStr, &u.Email, &u.Username, &u.Name, &u.Avatar, &u.IsSharing, &u.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	u.ID, _ = uuid.Parse(idStr)
	u.Status = models.StatusOffline
	return &u, nil
}

func scanProfileFromRows(rows pgx.Rows) (*models.UserPresence, error) {
	var u models.UserPresence
	var idStr string
	err := rows.Scan(&idStr, &u.Email, &u.Username, &u.Name, &u.Avatar, &u.IsSharing, &u.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	u.ID, _ = uuid.Parse(idStr)
	u.Status = models.StatusOffline
	return &u, nil
}
