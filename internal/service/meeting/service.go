package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"careconnect-backend/internal/domain"
	"careconnect-backend/internal/repository/postgres"
	apperrors "careconnect-backend/pkg/errors"
	"careconnect-backend/pkg/metrics"
	"careconnect-backend/pkg/token"
)

// MeetingRepository is the storage surface the registry needs
type MeetingRepository interface {
	Create(ctx context.Context, meeting *domain.Meeting) error
	GetByID(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error)
	GetByToken(ctx context.Context, token string) (*domain.Meeting, error)
	End(ctx context.Context, meetingID uuid.UUID) error
}

// TokenGenerator produces unique meeting tokens
type TokenGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// Service owns the meeting lifecycle: create, validate, end
type Service struct {
	meetingRepo MeetingRepository
	tokens      TokenGenerator
	baseURL     string
}

// NewService creates a new meeting service
func NewService(meetingRepo MeetingRepository, tokens TokenGenerator, baseURL string) *Service {
	return &Service{
		meetingRepo: meetingRepo,
		tokens:      tokens,
		baseURL:     baseURL,
	}
}

// CreateMeetingOutput contains the created meeting and its join URL
type CreateMeetingOutput struct {
	Meeting    *domain.Meeting
	MeetingURL string
}

// CreateMeeting creates a meeting for an authorized host role. The returned
// output includes the raw token; it is shown once to the creator and
// otherwise only travels inside join links.
func (s *Service) CreateMeeting(ctx context.Context, userID uuid.UUID, role domain.Role) (*CreateMeetingOutput, error) {
	if !role.CanHostMeeting() {
		return nil, apperrors.AuthorizationDeniedError()
	}

	tok, err := s.tokens.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate meeting token: %w", err)
	}

	now := time.Now().UTC()
	meeting := &domain.Meeting{
		ID:             uuid.New(),
		CreatedBy:      userID,
		Token:          tok,
		TokenExpiresAt: now.Add(domain.TokenTTL),
		IsActive:       true,
		CreatedAt:      now,
	}

	if err := s.meetingRepo.Create(ctx, meeting); err != nil {
		return nil, apperrors.TransientStorageError(err)
	}

	metrics.MeetingsCreatedTotal.Inc()

	return &CreateMeetingOutput{
		Meeting:    meeting,
		MeetingURL: fmt.Sprintf("%s/meet/%s", s.baseURL, tok),
	}, nil
}

// ValidateToken checks a meeting token. Structurally malformed input is
// rejected before any storage access; everything else is a read-only lookup
// that may race harmlessly with a concurrent end.
func (s *Service) ValidateToken(ctx context.Context, tok string) (*domain.TokenValidation, error) {
	if !token.IsWellFormed(tok) {
		metrics.TokenValidationsTotal.WithLabelValues("malformed").Inc()
		return nil, apperrors.ValidationError("Token must be 64 lowercase hex characters")
	}

	meeting, err := s.meetingRepo.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			metrics.TokenValidationsTotal.WithLabelValues("not_found").Inc()
			return &domain.TokenValidation{Valid: false, Reason: domain.TokenReasonNotFound}, nil
		}
		return nil, apperrors.TransientStorageError(err)
	}

	if meeting.TokenExpired(time.Now().UTC()) || !meeting.IsActive {
		metrics.TokenValidationsTotal.WithLabelValues("expired").Inc()
		return &domain.TokenValidation{Valid: false, Reason: domain.TokenReasonExpired}, nil
	}

	metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()
	return &domain.TokenValidation{Valid: true, MeetingID: meeting.ID}, nil
}

// EndMeeting terminates a meeting. Only the creator may end it; ending an
// already-ended meeting is a no-op that still succeeds.
func (s *Service) EndMeeting(ctx context.Context, meetingID, requesterID uuid.UUID) error {
	meeting, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return apperrors.NotFoundOrExpiredError()
		}
		return apperrors.TransientStorageError(err)
	}

	if meeting.CreatedBy != requesterID {
		return apperrors.AuthorizationDeniedError()
	}

	if meeting.Ended() {
		return nil
	}

	if err := s.meetingRepo.End(ctx, meetingID); err != nil {
		return apperrors.TransientStorageError(err)
	}

	metrics.MeetingsEndedTotal.Inc()

	return nil
}

// GetMeeting retrieves a meeting by ID for collaborating services
func (s *Service) GetMeeting(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error) {
	meeting, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apperrors.NotFoundOrExpiredError()
		}
		return nil, apperrors.TransientStorageError(err)
	}
	return meeting, nil
}
