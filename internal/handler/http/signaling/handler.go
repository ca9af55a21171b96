package signaling

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"careconnect-backend/internal/domain"
	"careconnect-backend/internal/service/meeting"
	"careconnect-backend/internal/service/participant"
	"careconnect-backend/pkg/audit"
	"careconnect-backend/pkg/clientip"
	"careconnect-backend/pkg/logger"
	"careconnect-backend/pkg/response"
)

// MeetingService is the meeting lifecycle surface the facade composes
type MeetingService interface {
	CreateMeeting(ctx context.Context, userID uuid.UUID, role domain.Role) (*meeting.CreateMeetingOutput, error)
	ValidateToken(ctx context.Context, token string) (*domain.TokenValidation, error)
	EndMeeting(ctx context.Context, meetingID, requesterID uuid.UUID) error
}

// ParticipantService is the presence surface the facade composes
type ParticipantService interface {
	Join(ctx context.Context, token, displayName, ipAddress string) (*domain.Participant, error)
	Leave(ctx context.Context, participantID, meetingID uuid.UUID) (bool, error)
	RegisterPeer(ctx context.Context, meetingID, participantID uuid.UUID, peerID string) (bool, error)
	Heartbeat(ctx context.Context, participantID uuid.UUID) (*participant.HeartbeatOutput, error)
	ListParticipants(ctx context.Context, meetingID uuid.UUID) ([]*domain.Participant, error)
}

// ChatService is the chat relay surface the facade composes
type ChatService interface {
	Send(ctx context.Context, meetingID, participantID uuid.UUID, text string) (*domain.ChatMessage, error)
	History(ctx context.Context, meetingID uuid.UUID) ([]*domain.ChatHistoryEntry, error)
}

// AuditLog is the audit sink the facade writes signaling events to and reads
// back for observer roles
type AuditLog interface {
	LogMeetingCreate(ctx context.Context, userID, meetingID uuid.UUID, ipAddress string) error
	LogMeetingEnd(ctx context.Context, userID, meetingID uuid.UUID, ipAddress string) error
	LogParticipantJoin(ctx context.Context, meetingID, participantID uuid.UUID, ipAddress string) error
	LogParticipantLeave(ctx context.Context, meetingID, participantID uuid.UUID, ipAddress string) error
	LogPeerRegister(ctx context.Context, meetingID, participantID uuid.UUID, ipAddress string) error
	LogChatSend(ctx context.Context, meetingID, participantID, messageID uuid.UUID, ipAddress string) error
	GetEventsByType(ctx context.Context, eventType audit.EventType, limit, offset int) ([]*audit.Event, error)
}

// Handler exposes the signaling operation set over HTTP
type Handler struct {
	meetings     MeetingService
	participants ParticipantService
	chat         ChatService
	auditLog     AuditLog // optional
}

// NewHandler creates a new signaling handler
func NewHandler(meetings MeetingService, participants ParticipantService, chat ChatService, auditLog AuditLog) *Handler {
	return &Handler{
		meetings:     meetings,
		participants: participants,
		chat:         chat,
		auditLog:     auditLog,
	}
}

// RegisterRoutes mounts the signaling routes. Meeting creation and
// termination require an authenticated identity; everything else is open to
// holders of a valid meeting token.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authRequired gin.HandlerFunc) {
	r.POST("/meetings", authRequired, h.CreateMeeting)
	r.POST("/meetings/validate", h.ValidateToken)
	r.POST("/meetings/join", h.Join)
	r.POST("/meetings/:id/leave", h.Leave)
	r.POST("/meetings/:id/end", authRequired, h.EndMeeting)
	r.POST("/meetings/:id/peers", h.RegisterPeer)
	r.POST("/heartbeat", h.Heartbeat)
	r.GET("/meetings/:id/participants", h.ListParticipants)
	r.POST("/meetings/:id/messages", h.SendMessage)
	r.GET("/meetings/:id/messages", h.History)
	r.GET("/audit/events", authRequired, h.ListAuditEvents)
}

// CreateMeeting creates a meeting room
// POST /v1/meetings
func (h *Handler) CreateMeeting(c *gin.Context) {
	userID, role, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	output, err := h.meetings.CreateMeeting(c.Request.Context(), userID, role)
	if err != nil {
		response.AppError(c, err)
		return
	}

	h.audit(func(ctx context.Context) error {
		return h.auditLog.LogMeetingCreate(ctx, userID, output.Meeting.ID, clientip.FromRequest(c.Request))
	})

	response.Success(c, http.StatusCreated, gin.H{
		"meeting_id":  output.Meeting.ID,
		"meeting_url": output.MeetingURL,
		"token":       output.Meeting.Token,
	})
}

// ValidateTokenRequest carries a candidate meeting token
type ValidateTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ValidateToken checks a meeting token without joining
// POST /v1/meetings/validate
func (h *Handler) ValidateToken(c *gin.Context) {
	var req ValidateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Token is required")
		return
	}

	validation, err := h.meetings.ValidateToken(c.Request.Context(), req.Token)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if !validation.Valid {
		// Reason stays server-side; unknown and expired look identical here
		response.Success(c, http.StatusOK, gin.H{"valid": false})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"valid":      true,
		"meeting_id": validation.MeetingID,
	})
}

// JoinRequest carries guest join input
type JoinRequest struct {
	Token       string `json:"token" binding:"required"`
	DisplayName string `json:"display_name"`
}

// Join admits a guest token holder into a meeting
// POST /v1/meetings/join
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Token is required")
		return
	}

	ip := clientip.FromRequest(c.Request)

	p, err := h.participants.Join(c.Request.Context(), req.Token, req.DisplayName, ip)
	if err != nil {
		response.AppError(c, err)
		return
	}

	h.audit(func(ctx context.Context) error {
		return h.auditLog.LogParticipantJoin(ctx, p.MeetingID, p.ID, ip)
	})

	response.Success(c, http.StatusOK, gin.H{
		"participant_id": p.ID,
		"display_name":   p.DisplayName,
	})
}

// LeaveRequest identifies the departing participant
type LeaveRequest struct {
	ParticipantID string `json:"participant_id" binding:"required,uuid"`
}

// Leave marks a participant as having left
// POST /v1/meetings/:id/leave
func (h *Handler) Leave(c *gin.Context) {
	meetingID, ok := meetingIDParam(c)
	if !ok {
		return
	}

	var req LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Participant ID is required")
		return
	}
	participantID := uuid.MustParse(req.ParticipantID)

	left, err := h.participants.Leave(c.Request.Context(), participantID, meetingID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if left {
		h.audit(func(ctx context.Context) error {
			return h.auditLog.LogParticipantLeave(ctx, meetingID, participantID, clientip.FromRequest(c.Request))
		})
	}

	response.Success(c, http.StatusOK, gin.H{"left": left})
}

// EndMeeting terminates a meeting, creator only
// POST /v1/meetings/:id/end
func (h *Handler) EndMeeting(c *gin.Context) {
	meetingID, ok := meetingIDParam(c)
	if !ok {
		return
	}

	userID, _, authed := callerIdentity(c)
	if !authed {
		response.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.meetings.EndMeeting(c.Request.Context(), meetingID, userID); err != nil {
		response.AppError(c, err)
		return
	}

	h.audit(func(ctx context.Context) error {
		return h.auditLog.LogMeetingEnd(ctx, userID, meetingID, clientip.FromRequest(c.Request))
	})

	response.Success(c, http.StatusOK, gin.H{
		"message":    "Meeting ended",
		"meeting_id": meetingID,
	})
}

// RegisterPeerRequest maps a participant to its browser peer ID
type RegisterPeerRequest struct {
	ParticipantID string `json:"participant_id" binding:"required,uuid"`
	PeerID        string `json:"peer_id" binding:"required"`
}

// RegisterPeer records a participant's peer ID for mesh signaling
// POST /v1/meetings/:id/peers
func (h *Handler) RegisterPeer(c *gin.Context) {
	meetingID, ok := meetingIDParam(c)
	if !ok {
		return
	}

	var req RegisterPeerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Participant ID and peer ID are required")
		return
	}
	participantID := uuid.MustParse(req.ParticipantID)

	registered, err := h.participants.RegisterPeer(c.Request.Context(), meetingID, participantID, req.PeerID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if registered {
		h.audit(func(ctx context.Context) error {
			return h.auditLog.LogPeerRegister(ctx, meetingID, participantID, clientip.FromRequest(c.Request))
		})
	}

	response.Success(c, http.StatusOK, gin.H{"registered": registered})
}

// HeartbeatRequest identifies the polling participant
type HeartbeatRequest struct {
	ParticipantID string `json:"participant_id" binding:"required,uuid"`
}

// Heartbeat bumps presence and returns the live peer set
// POST /v1/heartbeat
func (h *Handler) Heartbeat(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Participant ID is required")
		return
	}

	output, err := h.participants.Heartbeat(c.Request.Context(), uuid.MustParse(req.ParticipantID))
	if err != nil {
		response.AppError(c, err)
		return
	}

	peers := output.ActivePeers
	if peers == nil {
		peers = []domain.ActivePeer{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"success":      output.Success,
		"active_peers": peers,
	})
}

// ListParticipants returns present participants of a meeting
// GET /v1/meetings/:id/participants
func (h *Handler) ListParticipants(c *gin.Context) {
	meetingID, ok := meetingIDParam(c)
	if !ok {
		return
	}

	participants, err := h.participants.ListParticipants(c.Request.Context(), meetingID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if participants == nil {
		participants = []*domain.Participant{}
	}

	response.Success(c, http.StatusOK, participants)
}

// SendMessageRequest carries a chat message
type SendMessageRequest struct {
	ParticipantID string `json:"participant_id" binding:"required,uuid"`
	Message       string `json:"message"`
}

// SendMessage relays a chat message to the meeting
// POST /v1/meetings/:id/messages
func (h *Handler) SendMessage(c *gin.Context) {
	meetingID, ok := meetingIDParam(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Participant ID is required")
		return
	}
	participantID := uuid.MustParse(req.ParticipantID)

	message, err := h.chat.Send(c.Request.Context(), meetingID, participantID, req.Message)
	if err != nil {
		response.AppError(c, err)
		return
	}

	h.audit(func(ctx context.Context) error {
		return h.auditLog.LogChatSend(ctx, meetingID, participantID, message.ID, clientip.FromRequest(c.Request))
	})

	response.Success(c, http.StatusOK, gin.H{"message_id": message.ID})
}

// History returns the meeting's chat history in send order
// GET /v1/meetings/:id/messages
func (h *Handler) History(c *gin.Context) {
	meetingID, ok := meetingIDParam(c)
	if !ok {
		return
	}

	entries, err := h.chat.History(c.Request.Context(), meetingID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if entries == nil {
		entries = []*domain.ChatHistoryEntry{}
	}

	response.Success(c, http.StatusOK, entries)
}

// ListAuditEvents returns recent audit events of one type, observer and admin
// roles only
// GET /v1/audit/events
func (h *Handler) ListAuditEvents(c *gin.Context) {
	_, role, ok := callerIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	if !role.CanReadAuditTrail() {
		response.Forbidden(c, "You do not have permission to perform this action")
		return
	}

	eventType := audit.EventType(c.Query("type"))
	if eventType == "" {
		response.ValidationError(c, "Event type is required")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		response.ValidationError(c, "Limit must be between 1 and 200")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		response.ValidationError(c, "Offset must be non-negative")
		return
	}

	if h.auditLog == nil {
		// No sink configured, so there is nothing recorded
		response.Success(c, http.StatusOK, []*audit.Event{})
		return
	}

	events, err := h.auditLog.GetEventsByType(c.Request.Context(), eventType, limit, offset)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if events == nil {
		events = []*audit.Event{}
	}

	response.Success(c, http.StatusOK, events)
}

// audit runs an audit write best-effort: a full audit sink must never block
// or fail a signaling operation
func (h *Handler) audit(fn func(ctx context.Context) error) {
	if h.auditLog == nil {
		return
	}
	if err := fn(context.Background()); err != nil {
		logger.Warn("audit write failed", zap.Error(err))
	}
}

// callerIdentity extracts the authenticated identity set by the auth middleware
func callerIdentity(c *gin.Context) (uuid.UUID, domain.Role, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, "", false
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}

	roleVal, exists := c.Get("role")
	if !exists {
		return uuid.Nil, "", false
	}
	role, ok := roleVal.(domain.Role)
	if !ok {
		return uuid.Nil, "", false
	}

	return userID, role, true
}

// meetingIDParam parses the :id path parameter, writing a 400 on failure
func meetingIDParam(c *gin.Context) (uuid.UUID, bool) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid meeting ID")
		return uuid.Nil, false
	}
	return meetingID, true
}
