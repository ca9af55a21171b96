package chat

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"careconnect-backend/internal/domain"
	"careconnect-backend/internal/repository/postgres"
	apperrors "careconnect-backend/pkg/errors"
	"careconnect-backend/pkg/metrics"
	"careconnect-backend/pkg/sanitize"
)

// MaxMessageLength bounds a single chat message in characters, as stored
const MaxMessageLength = 2000

// MessageRepository is the chat message storage surface
type MessageRepository interface {
	Save(ctx context.Context, message *domain.ChatMessage) error
	History(ctx context.Context, meetingID uuid.UUID) ([]*domain.ChatHistoryEntry, error)
}

// ParticipantDirectory resolves participants for the send gate
type ParticipantDirectory interface {
	GetByID(ctx context.Context, participantID uuid.UUID) (*domain.Participant, error)
}

// MeetingRegistry resolves meetings for the send gate
type MeetingRegistry interface {
	GetMeeting(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error)
}

// Service relays chat messages scoped to a meeting
type Service struct {
	messages     MessageRepository
	participants ParticipantDirectory
	meetings     MeetingRegistry
}

// NewService creates a new chat service
func NewService(messages MessageRepository, participants ParticipantDirectory, meetings MeetingRegistry) *Service {
	return &Service{
		messages:     messages,
		participants: participants,
		meetings:     meetings,
	}
}

// Send stores a chat message from a currently-present participant of an
// active meeting. Over-length input is rejected before anything is looked up
// or persisted, and the bound is enforced on the stored form: escaping can
// expand the text, and what goes into the column is the escaped text.
func (s *Service) Send(ctx context.Context, meetingID, participantID uuid.UUID, text string) (*domain.ChatMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		metrics.ChatMessagesTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.FieldValidationError("message", "Message is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		metrics.ChatMessagesTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.FieldValidationError("message", "Message must be at most 2000 characters")
	}

	sanitized := sanitize.SanitizeText(trimmed)
	if sanitized == "" {
		// Markup-only input collapses to nothing
		metrics.ChatMessagesTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.FieldValidationError("message", "Message is required")
	}
	if utf8.RuneCountInString(sanitized) > MaxMessageLength {
		metrics.ChatMessagesTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.FieldValidationError("message", "Message must be at most 2000 characters")
	}

	participant, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			metrics.ChatMessagesTotal.WithLabelValues("rejected").Inc()
			return nil, apperrors.AuthorizationDeniedError()
		}
		return nil, apperrors.TransientStorageError(err)
	}
	if participant.MeetingID != meetingID || !participant.Present() {
		metrics.ChatMessagesTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.AuthorizationDeniedError()
	}

	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !meeting.IsActive {
		metrics.ChatMessagesTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.NotFoundOrExpiredError()
	}

	message := &domain.ChatMessage{
		ID:            uuid.New(),
		MeetingID:     meetingID,
		ParticipantID: participantID,
		Text:          sanitized,
		SentAt:        time.Now().UTC(),
	}

	if err := s.messages.Save(ctx, message); err != nil {
		metrics.ChatMessagesTotal.WithLabelValues("error").Inc()
		return nil, apperrors.TransientStorageError(err)
	}

	metrics.ChatMessagesTotal.WithLabelValues("sent").Inc()

	return message, nil
}

// History returns the meeting's messages in (sent_at, id) order, each with
// the sender's resolved display name
func (s *Service) History(ctx context.Context, meetingID uuid.UUID) ([]*domain.ChatHistoryEntry, error) {
	if _, err := s.meetings.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}

	entries, err := s.messages.History(ctx, meetingID)
	if err != nil {
		return nil, apperrors.TransientStorageError(err)
	}

	// The repository already orders rows this way; re-asserting it here keeps
	// the contract independent of where the entries came from.
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].SentAt.Equal(entries[j].SentAt) {
			return entries[i].SentAt.Before(entries[j].SentAt)
		}
		return bytes.Compare(entries[i].ID[:], entries[j].ID[:]) < 0
	})

	return entries, nil
}
