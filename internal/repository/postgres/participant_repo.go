package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"careconnect-backend/internal/domain"
)

// ParticipantRepository handles participant data operations
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// Create creates a new participant record
func (r *ParticipantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	query := `
		INSERT INTO participants (id, meeting_id, display_name, ip_address, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		participant.ID,
		participant.MeetingID,
		participant.DisplayName,
		participant.IPAddress,
		participant.JoinedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}

	return nil
}

// GetByID retrieves a participant by ID
func (r *ParticipantRepository) GetByID(ctx context.Context, participantID uuid.UUID) (*domain.Participant, error) {
	query := `
		SELECT id, meeting_id, display_name, ip_address, joined_at, left_at
		FROM participants
		WHERE id = $1
	`

	participant := &domain.Participant{}
	err := r.pool.QueryRow(ctx, query, participantID).Scan(
		&participant.ID,
		&participant.MeetingID,
		&participant.DisplayName,
		&participant.IPAddress,
		&participant.JoinedAt,
		&participant.LeftAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return participant, nil
}

// MarkLeft sets left_at for a present participant of the given meeting.
// The left_at IS NULL guard keeps the transition one-way: an already-left
// participant is never touched again.
func (r *ParticipantRepository) MarkLeft(ctx context.Context, participantID, meetingID uuid.UUID) error {
	query := `
		UPDATE participants
		SET left_at = NOW()
		WHERE id = $1 AND meeting_id = $2 AND left_at IS NULL
	`

	_, err := r.pool.Exec(ctx, query, participantID, meetingID)
	if err != nil {
		return fmt.Errorf("failed to mark participant left: %w", err)
	}

	return nil
}

// ListPresent retrieves participants with left_at null, ordered by joined_at
func (r *ParticipantRepository) ListPresent(ctx context.Context, meetingID uuid.UUID) ([]*domain.Participant, error) {
	query := `
		SELECT id, meeting_id, display_name, ip_address, joined_at, left_at
		FROM participants
		WHERE meeting_id = $1 AND left_at IS NULL
		ORDER BY joined_at ASC
	`

	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		err := rows.Scan(
			&p.ID,
			&p.MeetingID,
			&p.DisplayName,
			&p.IPAddress,
			&p.JoinedAt,
			&p.LeftAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, nil
}
