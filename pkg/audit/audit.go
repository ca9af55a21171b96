package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of audit event
type EventType string

const (
	// Meeting lifecycle events
	EventMeetingCreate EventType = "meeting_create"
	EventMeetingEnd    EventType = "meeting_end"

	// Participant events
	EventParticipantJoin  EventType = "participant_join"
	EventParticipantLeave EventType = "participant_leave"
	EventPeerRegister     EventType = "peer_register"

	// Chat events
	EventChatSend EventType = "chat_send"
)

// Retention is how long audit events are kept
const Retention = 90 * 24 * time.Hour

// Event represents an audit log entry
type Event struct {
	EventID   uuid.UUID  `json:"event_id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	EventType EventType  `json:"event_type"`
	Resource  string     `json:"resource,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	Success   bool       `json:"success"`
	ErrorCode string     `json:"error_code,omitempty"`
	Details   string     `json:"details,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Logger writes audit events to the Redis-backed audit sink
type Logger struct {
	redisClient *redis.Client
}

// NewLogger creates a new audit logger
func NewLogger(redisClient *redis.Client) *Logger {
	return &Logger{
		redisClient: redisClient,
	}
}

// Log logs an audit event
func (al *Logger) Log(ctx context.Context, event *Event) error {
	event.Timestamp = time.Now().UTC()

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	// One list per day, expired after the retention window
	key := fmt.Sprintf("audit:events:%s", event.Timestamp.Format("2006-01-02"))

	if err := al.redisClient.LPush(ctx, key, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}

	if err := al.redisClient.Expire(ctx, key, Retention).Err(); err != nil {
		return fmt.Errorf("failed to set audit log expiry: %w", err)
	}

	return nil
}

// LogMeetingCreate logs a meeting creation
func (al *Logger) LogMeetingCreate(ctx context.Context, userID, meetingID uuid.UUID, ipAddress string) error {
	return al.Log(ctx, &Event{
		UserID:    &userID,
		EventType: EventMeetingCreate,
		Resource:  meetingID.String(),
		IPAddress: ipAddress,
		Success:   true,
	})
}

// LogMeetingEnd logs a meeting termination
func (al *Logger) LogMeetingEnd(ctx context.Context, userID, meetingID uuid.UUID, ipAddress string) error {
	return al.Log(ctx, &Event{
		UserID:    &userID,
		EventType: EventMeetingEnd,
		Resource:  meetingID.String(),
		IPAddress: ipAddress,
		Success:   true,
	})
}

// LogParticipantJoin logs a guest joining a meeting. Guests have no user ID;
// the participant ID goes in the details.
func (al *Logger) LogParticipantJoin(ctx context.Context, meetingID, participantID uuid.UUID, ipAddress string) error {
	return al.Log(ctx, &Event{
		EventType: EventParticipantJoin,
		Resource:  meetingID.String(),
		IPAddress: ipAddress,
		Success:   true,
		Details:   fmt.Sprintf("participant: %s", participantID),
	})
}

// LogParticipantLeave logs a participant leaving a meeting
func (al *Logger) LogParticipantLeave(ctx context.Context, meetingID, participantID uuid.UUID, ipAddress string) error {
	return al.Log(ctx, &Event{
		EventType: EventParticipantLeave,
		Resource:  meetingID.String(),
		IPAddress: ipAddress,
		Success:   true,
		Details:   fmt.Sprintf("participant: %s", participantID),
	})
}

// LogPeerRegister logs a peer ID registration for mesh signaling
func (al *Logger) LogPeerRegister(ctx context.Context, meetingID, participantID uuid.UUID, ipAddress string) error {
	return al.Log(ctx, &Event{
		EventType: EventPeerRegister,
		Resource:  meetingID.String(),
		IPAddress: ipAddress,
		Success:   true,
		Details:   fmt.Sprintf("participant: %s", participantID),
	})
}

// LogChatSend logs a chat message send. Only the message ID is recorded,
// never the message body.
func (al *Logger) LogChatSend(ctx context.Context, meetingID, participantID, messageID uuid.UUID, ipAddress string) error {
	return al.Log(ctx, &Event{
		EventType: EventChatSend,
		Resource:  meetingID.String(),
		IPAddress: ipAddress,
		Success:   true,
		Details:   fmt.Sprintf("participant: %s, message: %s", participantID, messageID),
	})
}

// GetEventsByType retrieves recent audit events of one type
func (al *Logger) GetEventsByType(ctx context.Context, eventType EventType, limit int, offset int) ([]*Event, error) {
	now := time.Now().UTC()
	keys := make([]string, 0)
	for i := 0; i < 90; i++ {
		date := now.AddDate(0, 0, -i)
		keys = append(keys, fmt.Sprintf("audit:events:%s", date.Format("2006-01-02")))
	}

	var events []*Event
	for _, key := range keys {
		members, err := al.redisClient.LRange(ctx, key, int64(offset), int64(offset+limit)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to get audit events: %w", err)
		}

		for _, member := range members {
			var event Event
			if err := json.Unmarshal([]byte(member), &event); err != nil {
				continue
			}
			if event.EventType == eventType {
				events = append(events, &event)
			}
		}
	}

	return events, nil
}
