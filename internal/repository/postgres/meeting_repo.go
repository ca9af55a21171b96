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

// MeetingRepository handles meeting data operations
type MeetingRepository struct {
	pool *pgxpool.Pool
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(pool *pgxpool.Pool) *MeetingRepository {
	return &MeetingRepository{pool: pool}
}

// Create creates a new meeting record
func (r *MeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	query := `
		INSERT INTO meetings (
			id, created_by, token, token_expires_at, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		meeting.ID,
		meeting.CreatedBy,
		meeting.Token,
		meeting.TokenExpiresAt,
		meeting.IsActive,
		meeting.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	return nil
}

// GetByID retrieves a meeting by ID
func (r *MeetingRepository) GetByID(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error) {
	query := `
		SELECT id, created_by, token, token_expires_at, is_active, created_at, ended_at
		FROM meetings
		WHERE id = $1
	`

	meeting := &domain.Meeting{}
	err := r.pool.QueryRow(ctx, query, meetingID).Scan(
		&meeting.ID,
		&meeting.CreatedBy,
		&meeting.Token,
		&meeting.TokenExpiresAt,
		&meeting.IsActive,
		&meeting.CreatedAt,
		&meeting.EndedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}

	return meeting, nil
}

// GetByToken retrieves a meeting by its join token
func (r *MeetingRepository) GetByToken(ctx context.Context, token string) (*domain.Meeting, error) {
	query := `
		SELECT id, created_by, token, token_expires_at, is_active, created_at, ended_at
		FROM meetings
		WHERE token = $1
	`

	meeting := &domain.Meeting{}
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&meeting.ID,
		&meeting.CreatedBy,
		&meeting.Token,
		&meeting.TokenExpiresAt,
		&meeting.IsActive,
		&meeting.CreatedAt,
		&meeting.EndedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get meeting by token: %w", err)
	}

	return meeting, nil
}

// TokenActive reports whether the token is held by a still-valid meeting
// (active and unexpired). Used by the token generator's collision check.
func (r *MeetingRepository) TokenActive(ctx context.Context, token string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM meetings
			WHERE token = $1 AND is_active AND token_expires_at > NOW()
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, token).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}

	return exists, nil
}

// End marks a meeting as ended. The is_active guard makes the update
// idempotent: a second call touches zero rows and leaves ended_at alone.
func (r *MeetingRepository) End(ctx context.Context, meetingID uuid.UUID) error {
	query := `
		UPDATE meetings
		SET is_active = false,
		    ended_at = NOW()
		WHERE id = $1 AND is_active
	`

	_, err := r.pool.Exec(ctx, query, meetingID)
	if err != nil {
		return fmt.Errorf("failed to end meeting: %w", err)
	}

	return nil
}
