// ABOUTME: Typed change events delivered by the backing store's push feeds
// ABOUTME: Normalizes raw notification payloads into presence and social events

package feed

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fightbackff-oss/trackmate/internal/store"
)

// Op classifies a row-level change.
type Op string

const (
	OpInsert Op = "inserted"
	OpUpdate Op = "updated"
	OpDelete Op = "deleted"
)

// opFromPg maps a postgres TG_OP value onto an Op.
func opFromPg(tgOp string) Op {
	switch tgOp {
	case "INSERT":
		return OpInsert
	case "DELETE":
		return OpDelete
	default:
		return OpUpdate
	}
}

// PresenceEvent is a normalized live-location change for some user. The
// engine, not the adapter, decides whether the update is applied; the adapter
// only guarantees the row decoded and carries its UpdatedAt.
type PresenceEvent struct {
	Op  Op
	Row store.LiveLocation
}

// SocialEvent is a normalized friend-request change scoped to the current
// user. The engine responds by refetching the pending set, so the event only
// needs to identify that something changed.
type SocialEvent struct {
	Op         Op
	RequestID  uuid.UUID
	ReceiverID uuid.UUID
}

// normalizePresence decodes a presence pub/sub payload. Live rows are only
// ever upserted; expiry is handled by TTL, so no delete op appears here.
func normalizePresence(payload []byte, log *slog.Logger) (PresenceEvent, bool) {
	var row store.LiveLocation
	if err := json.Unmarshal(payload, &row); err != nil {
		log.Warn("undecodable presence payload", "error", err)
		return PresenceEvent{}, false
	}
	if row.UserID == uuid.Nil {
		log.Warn("presence payload missing user id")
		return PresenceEvent{}, false
	}
	return PresenceEvent{Op: OpUpdate, Row: row}, true
}

// rawRequestChange is the NOTIFY payload shape emitted by the
// friend_requests trigger.
type rawRequestChange struct {
	Op  string `json:"op"`
	Row struct {
		ID         string `json:"id"`
		ReceiverID string `json:"receiver_id"`
	} `json:"row"`
}

// normalizeSocial decodes a friend-request NOTIFY payload and filters it to
// the given receiver. NOTIFY is table-wide, so scoping happens client-side.
func normalizeSocial(payload []byte, receiverID uuid.UUID, log *slog.Logger) (SocialEvent, bool) {
	var raw rawRequestChange
	if err := json.Unmarshal(payload, &raw); err != nil {
		log.Warn("undecodable request payload", "error", err)
		return SocialEvent{}, false
	}
	rowReceiver, err := uuid.Parse(raw.Row.ReceiverID)
	if err != nil || rowReceiver != receiverID {
		return SocialEvent{}, false
	}
	requestID, err := uuid.Parse(raw.Row.ID)
	if err != nil {
		log.Warn("request payload missing id")
		return SocialEvent{}, false
	}
	return SocialEvent{
		Op:         opFromPg(raw.Op),
		RequestID:  requestID,
		ReceiverID: rowReceiver,
	}, true
}
