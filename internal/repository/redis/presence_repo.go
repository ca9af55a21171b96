package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"careconnect-backend/internal/domain"
)

// presenceTTL keeps a meeting's presence hash no longer than the meeting
// token can stay valid; stale entries within that window are filtered at
// read time, so expiry here is cleanup, not correctness.
const presenceTTL = domain.TokenTTL + time.Hour

// PresenceRepository tracks per-meeting peer heartbeats in Redis
type PresenceRepository struct {
	client *redis.Client
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *redis.Client) *PresenceRepository {
	return &PresenceRepository{client: client}
}

// presenceEntry is the stored hash field value
type presenceEntry struct {
	PeerID          string    `json:"peer_id"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
}

func meetingKey(meetingID uuid.UUID) string {
	return fmt.Sprintf("presence:meeting:%s", meetingID)
}

// Upsert writes the peer mapping for a participant with a fresh heartbeat
func (r *PresenceRepository) Upsert(ctx context.Context, meetingID, participantID uuid.UUID, peerID string, at time.Time) error {
	entry := presenceEntry{
		PeerID:          peerID,
		LastHeartbeatAt: at,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	key := meetingKey(meetingID)
	if err := r.client.HSet(ctx, key, participantID.String(), raw).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	if err := r.client.Expire(ctx, key, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set presence expiry: %w", err)
	}

	return nil
}

// Touch bumps the participant's heartbeat timestamp, preserving any peer ID
// registered earlier. Concurrent touches race last-write-wins; presence is
// advisory, so no stronger ordering is needed.
func (r *PresenceRepository) Touch(ctx context.Context, meetingID, participantID uuid.UUID, at time.Time) error {
	key := meetingKey(meetingID)

	var entry presenceEntry
	raw, err := r.client.HGet(ctx, key, participantID.String()).Result()
	if err == nil {
		_ = json.Unmarshal([]byte(raw), &entry)
	} else if err != redis.Nil {
		return fmt.Errorf("failed to read presence: %w", err)
	}

	// LastHeartbeatAt only moves forward
	if entry.LastHeartbeatAt.Before(at) {
		entry.LastHeartbeatAt = at
	}

	updated, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	if err := r.client.HSet(ctx, key, participantID.String(), updated).Err(); err != nil {
		return fmt.Errorf("failed to touch presence: %w", err)
	}

	if err := r.client.Expire(ctx, key, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set presence expiry: %w", err)
	}

	return nil
}

// List returns all presence records for a meeting. Staleness filtering
// happens in the service; this is a raw read.
func (r *PresenceRepository) List(ctx context.Context, meetingID uuid.UUID) ([]*domain.PeerPresence, error) {
	fields, err := r.client.HGetAll(ctx, meetingKey(meetingID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}

	presences := make([]*domain.PeerPresence, 0, len(fields))
	for idStr, raw := range fields {
		participantID, err := uuid.Parse(idStr)
		if err != nil {
			continue // skip malformed fields
		}

		var entry presenceEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}

		presences = append(presences, &domain.PeerPresence{
			ParticipantID:   participantID,
			PeerID:          entry.PeerID,
			LastHeartbeatAt: entry.LastHeartbeatAt,
		})
	}

	return presences, nil
}

// Remove deletes a participant's presence record, used on explicit leave
func (r *PresenceRepository) Remove(ctx context.Context, meetingID, participantID uuid.UUID) error {
	if err := r.client.HDel(ctx, meetingKey(meetingID), participantID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}
