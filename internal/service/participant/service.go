package participant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"careconnect-backend/internal/domain"
	"careconnect-backend/internal/repository/postgres"
	apperrors "careconnect-backend/pkg/errors"
	"careconnect-backend/pkg/metrics"
	"careconnect-backend/pkg/sanitize"
)

// MaxDisplayNameLength bounds guest display names
const MaxDisplayNameLength = 100

// MeetingRegistry is the slice of the meeting service the registry depends on
type MeetingRegistry interface {
	ValidateToken(ctx context.Context, token string) (*domain.TokenValidation, error)
	GetMeeting(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error)
}

// ParticipantRepository is the durable participant storage surface
type ParticipantRepository interface {
	Create(ctx context.Context, participant *domain.Participant) error
	GetByID(ctx context.Context, participantID uuid.UUID) (*domain.Participant, error)
	MarkLeft(ctx context.Context, participantID, meetingID uuid.UUID) error
	ListPresent(ctx context.Context, meetingID uuid.UUID) ([]*domain.Participant, error)
}

// PresenceRepository is the ephemeral peer-heartbeat storage surface
type PresenceRepository interface {
	Upsert(ctx context.Context, meetingID, participantID uuid.UUID, peerID string, at time.Time) error
	Touch(ctx context.Context, meetingID, participantID uuid.UUID, at time.Time) error
	List(ctx context.Context, meetingID uuid.UUID) ([]*domain.PeerPresence, error)
	Remove(ctx context.Context, meetingID, participantID uuid.UUID) error
}

// Service owns join/leave bookkeeping and heartbeat-driven peer presence
type Service struct {
	participants ParticipantRepository
	presence     PresenceRepository
	meetings     MeetingRegistry

	// livenessWindow is the maximum heartbeat gap before a participant is
	// excluded from active peers. The durable row is never touched by
	// staleness; this only shapes the read-time projection.
	livenessWindow time.Duration
}

// NewService creates a new participant service
func NewService(participants ParticipantRepository, presence PresenceRepository, meetings MeetingRegistry, livenessWindow time.Duration) *Service {
	return &Service{
		participants:   participants,
		presence:       presence,
		meetings:       meetings,
		livenessWindow: livenessWindow,
	}
}

// Join admits a guest into a meeting. A valid unexpired token alone
// authorizes access; no prior authentication is required. The display name is
// sanitized before it is persisted or echoed back.
func (s *Service) Join(ctx context.Context, token, displayName, ipAddress string) (*domain.Participant, error) {
	validation, err := s.meetings.ValidateToken(ctx, token)
	if err != nil {
		metrics.ParticipantJoinsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if !validation.Valid {
		// Unknown and expired tokens look identical to the caller
		metrics.ParticipantJoinsTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.NotFoundOrExpiredError()
	}

	name := sanitize.SanitizeDisplayName(displayName)
	if name == "" {
		metrics.ParticipantJoinsTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.FieldValidationError("display_name", "Display name is required")
	}
	if !sanitize.ValidateStringLength(name, 1, MaxDisplayNameLength) {
		metrics.ParticipantJoinsTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.FieldValidationError("display_name", "Display name must be at most 100 characters")
	}

	participant := &domain.Participant{
		ID:          uuid.New(),
		MeetingID:   validation.MeetingID,
		DisplayName: name,
		IPAddress:   ipAddress,
		JoinedAt:    time.Now().UTC(),
	}

	if err := s.participants.Create(ctx, participant); err != nil {
		metrics.ParticipantJoinsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.TransientStorageError(err)
	}

	metrics.ParticipantJoinsTotal.WithLabelValues("joined").Inc()

	return participant, nil
}

// Leave marks a participant as having left the given meeting. Leaving twice
// is fine: the second call reports true without altering left_at. Unknown
// participants, and participants of a different meeting, report false.
func (s *Service) Leave(ctx context.Context, participantID, meetingID uuid.UUID) (bool, error) {
	participant, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.TransientStorageError(err)
	}

	if participant.MeetingID != meetingID {
		return false, nil
	}

	if !participant.Present() {
		return true, nil
	}

	if err := s.participants.MarkLeft(ctx, participantID, meetingID); err != nil {
		return false, apperrors.TransientStorageError(err)
	}

	// Best effort; a leftover presence entry is filtered out on read anyway
	_ = s.presence.Remove(ctx, meetingID, participantID)

	return true, nil
}

// RegisterPeer records the browser's peer ID for mesh signaling. The
// participant must be present in an active meeting.
func (s *Service) RegisterPeer(ctx context.Context, meetingID, participantID uuid.UUID, peerID string) (bool, error) {
	peerID = sanitize.SanitizeText(peerID)
	if peerID == "" {
		return false, apperrors.FieldValidationError("peer_id", "Peer ID is required")
	}

	participant, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.TransientStorageError(err)
	}

	if participant.MeetingID != meetingID || !participant.Present() {
		return false, nil
	}

	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return false, err
	}
	if !meeting.IsActive {
		return false, nil
	}

	if err := s.presence.Upsert(ctx, meetingID, participantID, peerID, time.Now().UTC()); err != nil {
		return false, apperrors.TransientStorageError(err)
	}

	return true, nil
}

// HeartbeatOutput carries the heartbeat result and the current live peer set
type HeartbeatOutput struct {
	Success     bool
	ActivePeers []domain.ActivePeer
}

// Heartbeat bumps the participant's presence and returns the live peers of
// its meeting. A heartbeat from a participant who has left, or whose meeting
// has ended, is a no-op with Success=false; it never resurrects anyone.
func (s *Service) Heartbeat(ctx context.Context, participantID uuid.UUID) (*HeartbeatOutput, error) {
	participant, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			metrics.HeartbeatsTotal.WithLabelValues("rejected").Inc()
			return &HeartbeatOutput{Success: false}, nil
		}
		return nil, apperrors.TransientStorageError(err)
	}

	if !participant.Present() {
		metrics.HeartbeatsTotal.WithLabelValues("rejected").Inc()
		return &HeartbeatOutput{Success: false}, nil
	}

	meeting, err := s.meetings.GetMeeting(ctx, participant.MeetingID)
	if err != nil {
		appErr := apperrors.GetAppError(err)
		if appErr.Code == apperrors.ErrCodeNotFoundOrExpired {
			metrics.HeartbeatsTotal.WithLabelValues("rejected").Inc()
			return &HeartbeatOutput{Success: false}, nil
		}
		return nil, err
	}
	if !meeting.IsActive {
		metrics.HeartbeatsTotal.WithLabelValues("rejected").Inc()
		return &HeartbeatOutput{Success: false}, nil
	}

	now := time.Now().UTC()

	// Touch first so this participant's beat is visible to every activePeers
	// computation that follows, including this one.
	if err := s.presence.Touch(ctx, participant.MeetingID, participantID, now); err != nil {
		return nil, apperrors.TransientStorageError(err)
	}

	peers, err := s.activePeers(ctx, participant.MeetingID, now)
	if err != nil {
		return nil, err
	}

	metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()
	metrics.ActivePeersReturned.Observe(float64(len(peers)))

	return &HeartbeatOutput{Success: true, ActivePeers: peers}, nil
}

// activePeers computes the live peer set: present participants whose last
// heartbeat falls within the liveness window. Recomputed fresh on every call;
// there is no cached membership to go stale.
func (s *Service) activePeers(ctx context.Context, meetingID uuid.UUID, now time.Time) ([]domain.ActivePeer, error) {
	present, err := s.participants.ListPresent(ctx, meetingID)
	if err != nil {
		return nil, apperrors.TransientStorageError(err)
	}

	presences, err := s.presence.List(ctx, meetingID)
	if err != nil {
		return nil, apperrors.TransientStorageError(err)
	}

	byParticipant := make(map[uuid.UUID]*domain.PeerPresence, len(presences))
	for _, p := range presences {
		byParticipant[p.ParticipantID] = p
	}

	cutoff := now.Add(-s.livenessWindow)

	// present is ordered by joined_at, which keeps the peer list stable
	peers := make([]domain.ActivePeer, 0, len(present))
	for _, p := range present {
		presence, ok := byParticipant[p.ID]
		if !ok || presence.LastHeartbeatAt.Before(cutoff) {
			continue
		}
		peers = append(peers, domain.ActivePeer{
			ParticipantID: p.ID,
			PeerID:        presence.PeerID,
			DisplayName:   p.DisplayName,
		})
	}

	return peers, nil
}

// ListParticipants returns present participants of a meeting ordered by join time
func (s *Service) ListParticipants(ctx context.Context, meetingID uuid.UUID) ([]*domain.Participant, error) {
	participants, err := s.participants.ListPresent(ctx, meetingID)
	if err != nil {
		return nil, apperrors.TransientStorageError(err)
	}
	return participants, nil
}
