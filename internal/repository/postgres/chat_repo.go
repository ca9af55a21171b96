package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"careconnect-backend/internal/domain"
)

// ChatRepository handles chat message data operations
type ChatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a new chat repository
func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

// Save persists a chat message
func (r *ChatRepository) Save(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, meeting_id, participant_id, message, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.MeetingID,
		message.ParticipantID,
		message.Text,
		message.SentAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// History retrieves all messages for a meeting with resolved sender names.
// The (sent_at, id) key makes the order deterministic even when concurrent
// sends share a timestamp.
func (r *ChatRepository) History(ctx context.Context, meetingID uuid.UUID) ([]*domain.ChatHistoryEntry, error) {
	query := `
		SELECT m.id, m.message, p.display_name, m.sent_at
		FROM chat_messages m
		JOIN participants p ON m.participant_id = p.id
		WHERE m.meeting_id = $1
		ORDER BY m.sent_at ASC, m.id ASC
	`

	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ChatHistoryEntry
	for rows.Next() {
		e := &domain.ChatHistoryEntry{}
		err := rows.Scan(
			&e.ID,
			&e.Text,
			&e.SenderName,
			&e.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}
