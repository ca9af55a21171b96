package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenTTL is the fixed lifetime of a meeting token. It is set at creation
// and never extended.
const TokenTTL = 24 * time.Hour

// Meeting represents a video consultation room
type Meeting struct {
	ID             uuid.UUID  `json:"meeting_id"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	Token          string     `json:"token"` // 64 lowercase hex chars
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Ended reports whether the meeting has been terminated.
// Invariant: IsActive is false iff EndedAt is set.
func (m *Meeting) Ended() bool {
	return m.EndedAt != nil
}

// TokenExpired reports whether the meeting token is past its deadline at t.
func (m *Meeting) TokenExpired(t time.Time) bool {
	return m.TokenExpiresAt.Before(t)
}

// Token validation reasons. Reasons stay internal; user-visible results
// never distinguish unknown from expired.
const (
	TokenReasonNotFound = "not found"
	TokenReasonExpired  = "expired"
)

// TokenValidation is the result of checking a meeting token
type TokenValidation struct {
	Valid     bool      `json:"valid"`
	MeetingID uuid.UUID `json:"meeting_id,omitempty"`
	Reason    string    `json:"-"`
}

// Participant represents a guest in a meeting
type Participant struct {
	ID          uuid.UUID  `json:"participant_id"`
	MeetingID   uuid.UUID  `json:"meeting_id"`
	DisplayName string     `json:"display_name"`
	IPAddress   string     `json:"-"` // audit only, never exposed
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
}

// Present reports whether the participant has not left.
// LeftAt, once set, is never cleared.
func (p *Participant) Present() bool {
	return p.LeftAt == nil
}

// PeerPresence is the ephemeral heartbeat record attached to a participant.
// LastHeartbeatAt only moves forward; staleness is computed at read time.
type PeerPresence struct {
	ParticipantID   uuid.UUID `json:"participant_id"`
	PeerID          string    `json:"peer_id"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
}

// ActivePeer is a live participant identity returned to browsers so they can
// open direct peer connections. The server never relays media.
type ActivePeer struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	PeerID        string    `json:"peer_id"`
	DisplayName   string    `json:"display_name"`
}

// ChatMessage represents a chat message in a meeting, immutable once created
type ChatMessage struct {
	ID            uuid.UUID `json:"message_id"`
	MeetingID     uuid.UUID `json:"meeting_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Text          string    `json:"message"`
	SentAt        time.Time `json:"sent_at"`
}

// ChatHistoryEntry is a chat message augmented with the sender's display name
type ChatHistoryEntry struct {
	ID         uuid.UUID `json:"message_id"`
	Text       string    `json:"message"`
	SenderName string    `json:"sender_name"`
	SentAt     time.Time `json:"sent_at"`
}
