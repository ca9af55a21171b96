package participant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"careconnect-backend/internal/domain"
	"careconnect-backend/internal/repository/postgres"
	apperrors "careconnect-backend/pkg/errors"
)

// MockParticipantRepository is a mock implementation of ParticipantRepository
type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *MockParticipantRepository) GetByID(ctx context.Context, participantID uuid.UUID) (*domain.Participant, error) {
	args := m.Called(ctx, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participant), args.Error(1)
}

func (m *MockParticipantRepository) MarkLeft(ctx context.Context, participantID, meetingID uuid.UUID) error {
	args := m.Called(ctx, participantID, meetingID)
	return args.Error(0)
}

func (m *MockParticipantRepository) ListPresent(ctx context.Context, meetingID uuid.UUID) ([]*domain.Participant, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Participant), args.Error(1)
}

// MockPresenceRepository is a mock implementation of PresenceRepository
type MockPresenceRepository struct {
	mock.Mock
}

func (m *MockPresenceRepository) Upsert(ctx context.Context, meetingID, participantID uuid.UUID, peerID string, at time.Time) error {
	args := m.Called(ctx, meetingID, participantID, peerID, at)
	return args.Error(0)
}

func (m *MockPresenceRepository) Touch(ctx context.Context, meetingID, participantID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, meetingID, participantID, at)
	return args.Error(0)
}

func (m *MockPresenceRepository) List(ctx context.Context, meetingID uuid.UUID) ([]*domain.PeerPresence, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PeerPresence), args.Error(1)
}

func (m *MockPresenceRepository) Remove(ctx context.Context, meetingID, participantID uuid.UUID) error {
	args := m.Called(ctx, meetingID, participantID)
	return args.Error(0)
}

// MockMeetingRegistry is a mock implementation of MeetingRegistry
type MockMeetingRegistry struct {
	mock.Mock
}

func (m *MockMeetingRegistry) ValidateToken(ctx context.Context, token string) (*domain.TokenValidation, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TokenValidation), args.Error(1)
}

func (m *MockMeetingRegistry) GetMeeting(ctx context.Context, meetingID uuid.UUID) (*domain.Meeting, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Meeting), args.Error(1)
}

const testToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestService() (*Service, *MockParticipantRepository, *MockPresenceRepository, *MockMeetingRegistry) {
	mockParticipants := new(MockParticipantRepository)
	mockPresence := new(MockPresenceRepository)
	mockMeetings := new(MockMeetingRegistry)
	service := NewService(mockParticipants, mockPresence, mockMeetings, 30*time.Second)
	return service, mockParticipants, mockPresence, mockMeetings
}

func TestJoin(t *testing.T) {
	service, mockParticipants, _, mockMeetings := newTestService()

	meetingID := uuid.New()
	mockMeetings.On("ValidateToken", mock.Anything, testToken).
		Return(&domain.TokenValidation{Valid: true, MeetingID: meetingID}, nil)

	var created *domain.Participant
	mockParticipants.On("Create", mock.Anything, mock.AnythingOfType("*domain.Participant")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Participant)
		}).
		Return(nil)

	participant, err := service.Join(context.Background(), testToken, "Bob Smith", "203.0.113.7")

	assert.NoError(t, err)
	assert.NotNil(t, participant)
	assert.Equal(t, meetingID, participant.MeetingID)
	assert.Equal(t, "Bob Smith", participant.DisplayName)
	assert.Equal(t, "203.0.113.7", participant.IPAddress)
	assert.Nil(t, participant.LeftAt)
	assert.Same(t, participant, created)
	mockParticipants.AssertExpectations(t)
}

func TestJoin_SanitizesDisplayName(t *testing.T) {
	service, mockParticipants, _, mockMeetings := newTestService()

	meetingID := uuid.New()
	mockMeetings.On("ValidateToken", mock.Anything, testToken).
		Return(&domain.TokenValidation{Valid: true, MeetingID: meetingID}, nil)
	mockParticipants.On("Create", mock.Anything, mock.AnythingOfType("*domain.Participant")).Return(nil)

	participant, err := service.Join(context.Background(), testToken, "<script>alert(1)</script>Bob", "")

	assert.NoError(t, err)
	assert.Equal(t, "Bob", participant.DisplayName)
}

func TestJoin_InvalidToken(t *testing.T) {
	service, mockParticipants, _, mockMeetings := newTestService()

	mockMeetings.On("ValidateToken", mock.Anything, testToken).
		Return(&domain.TokenValidation{Valid: false, Reason: domain.TokenReasonExpired}, nil)

	participant, err := service.Join(context.Background(), testToken, "Bob", "")

	assert.Nil(t, participant)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, apperrors.ErrCodeNotFoundOrExpired, appErr.Code)
	mockParticipants.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJoin_EmptyDisplayName(t *testing.T) {
	service, mockParticipants, _, mockMeetings := newTestService()

	mockMeetings.On("ValidateToken", mock.Anything, testToken).
		Return(&domain.TokenValidation{Valid: true, MeetingID: uuid.New()}, nil)

	// Markup-only names collapse to empty after sanitization
	for _, name := range []string{"", "   ", "<b></b>"} {
		participant, err := service.Join(context.Background(), testToken, name, "")

		assert.Nil(t, participant)
		appErr := apperrors.GetAppError(err)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, appErr.Code)
		assert.Equal(t, 422, appErr.StatusCode)
		assert.Contains(t, appErr.Fields, "display_name")
	}

	mockParticipants.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJoin_MultibyteDisplayNameWithinBound(t *testing.T) {
	service, mockParticipants, _, mockMeetings := newTestService()

	mockMeetings.On("ValidateToken", mock.Anything, testToken).
		Return(&domain.TokenValidation{Valid: true, MeetingID: uuid.New()}, nil)
	mockParticipants.On("Create", mock.Anything, mock.AnythingOfType("*domain.Participant")).Return(nil)

	// 100 two-byte characters are 100 characters, not 200
	participant, err := service.Join(context.Background(), testToken, strings.Repeat("é", MaxDisplayNameLength), "")

	assert.NoError(t, err)
	assert.NotNil(t, participant)
	mockParticipants.AssertExpectations(t)
}

func TestJoin_DisplayNameTooLong(t *testing.T) {
	service, mockParticipants, _, mockMeetings := newTestService()

	mockMeetings.On("ValidateToken", mock.Anything, testToken).
		Return(&domain.TokenValidation{Valid: true, MeetingID: uuid.New()}, nil)

	participant, err := service.Join(context.Background(), testToken, strings.Repeat("a", MaxDisplayNameLength+1), "")

	assert.Nil(t, participant)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, appErr.Code)
	assert.Equal(t, 422, appErr.StatusCode)
	assert.Contains(t, appErr.Fields, "display_name")
	mockParticipants.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLeave(t *testing.T) {
	service, mockParticipants, mockPresence, _ := newTestService()

	meetingID := uuid.New()
	participant := &domain.Participant{ID: uuid.New(), MeetingID: meetingID}

	mockParticipants.On("GetByID", mock.Anything, participant.ID).Return(participant, nil)
	mockParticipants.On("MarkLeft", mock.Anything, participant.ID, meetingID).Return(nil)
	mockPresence.On("Remove", mock.Anything, meetingID, participant.ID).Return(nil)

	left, err := service.Leave(context.Background(), participant.ID, meetingID)

	assert.NoError(t, err)
	assert.True(t, left)
	mockParticipants.AssertExpectations(t)
	mockPresence.AssertExpectations(t)
}

func TestLeave_AlreadyLeft(t *testing.T) {
	service, mockParticipants, _, _ := newTestService()

	meetingID := uuid.New()
	leftAt := time.Now().UTC().Add(-time.Minute)
	participant := &domain.Participant{ID: uuid.New(), MeetingID: meetingID, LeftAt: &leftAt}

	mockParticipants.On("GetByID", mock.Anything, participant.ID).Return(participant, nil)

	// Second leave succeeds without another state change
	left, err := service.Leave(context.Background(), participant.ID, meetingID)

	assert.NoError(t, err)
	assert.True(t, left)
	mockParticipants.AssertNotCalled(t, "MarkLeft", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeave_UnknownParticipant(t *testing.T) {
	service, mockParticipants, _, _ := newTestService()

	participantID := uuid.New()
	mockParticipants.On("GetByID", mock.Anything, participantID).Return(nil, postgres.ErrNotFound)

	left, err := service.Leave(context.Background(), participantID, uuid.New())

	assert.NoError(t, err)
	assert.False(t, left)
}

func TestLeave_WrongMeeting(t *testing.T) {
	service, mockParticipants, _, _ := newTestService()

	participant := &domain.Participant{ID: uuid.New(), MeetingID: uuid.New()}
	mockParticipants.On("GetByID", mock.Anything, participant.ID).Return(participant, nil)

	left, err := service.Leave(context.Background(), participant.ID, uuid.New())

	assert.NoError(t, err)
	assert.False(t, left)
	mockParticipants.AssertNotCalled(t, "MarkLeft", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterPeer(t *testing.T) {
	service, mockParticipants, mockPresence, mockMeetings := newTestService()

	meetingID := uuid.New()
	participant := &domain.Participant{ID: uuid.New(), MeetingID: meetingID}

	mockParticipants.On("GetByID", mock.Anything, participant.ID).Return(participant, nil)
	mockMeetings.On("GetMeeting", mock.Anything, meetingID).
		Return(&domain.Meeting{ID: meetingID, IsActive: true}, nil)
	mockPresence.On("Upsert", mock.Anything, meetingID, participant.ID, "peer-abc", mock.AnythingOfType("time.Time")).Return(nil)

	ok, err := service.RegisterPeer(context.Background(), meetingID, participant.ID, "peer-abc")

	assert.NoError(t, err)
	assert.True(t, ok)
	mockPresence.AssertExpectations(t)
}

func TestRegisterPeer_EmptyPeerID(t *testing.T) {
	service, mockParticipants, _, _ := newTestService()

	ok, err := service.RegisterPeer(context.Background(), uuid.New(), uuid.New(), "  <b></b>  ")

	assert.False(t, ok)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, appErr.Code)
	assert.Contains(t, appErr.Fields, "peer_id")
	mockParticipants.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRegisterPeer_LeftParticipant(t *testing.T) {
	service, mockParticipants, mockPresence, _ := newTestService()

	meetingID := uuid.New()
	leftAt := time.Now().UTC()
	participant := &domain.Participant{ID: uuid.New(), MeetingID: meetingID, LeftAt: &leftAt}
	mockParticipants.On("GetByID", mock.Anything, participant.ID).Return(participant, nil)

	ok, err := service.RegisterPeer(context.Background(), meetingID, participant.ID, "peer-abc")

	assert.NoError(t, err)
	assert.False(t, ok)
	mockPresence.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterPeer_EndedMeeting(t *testing.T) {
	service, mockParticipants, mockPresence, mockMeetings := newTestService()

	meetingID := uuid.New()
	participant := &domain.Participant{ID: uuid.New(), MeetingID: meetingID}
	mockParticipants.On("GetByID", mock.Anything, participant.ID).Return(participant, nil)
	mockMeetings.On("GetMeeting", mock.Anything, meetingID).
		Return(&domain.Meeting{ID: meetingID, IsActive: false}, nil)

	ok, err := service.RegisterPeer(context.Background(), meetingID, participant.ID, "peer-abc")

	assert.NoError(t, err)
	assert.False(t, ok)
	mockPresence.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHeartbeat(t *testing.T) {
	service, mockParticipants, mockPresence, mockMeetings := newTestService()

	meetingID := uuid.New()
	now := time.Now().UTC()

	caller := &domain.Participant{ID: uuid.New(), MeetingID: meetingID, DisplayName: "Alice", JoinedAt: now.Add(-2 * time.Minute)}
	fresh := &domain.Participant{ID: uuid.New(), MeetingID: meetingID, DisplayName: "Bob", JoinedAt: now.Add(-time.Minute)}
	stale := &domain.Participant{ID: uuid.New(), MeetingID: meetingID, DisplayName: "Carol", JoinedAt: now.Add(-time.Minute)}
	silent := &domain.Participant{ID: uuid.New(), MeetingID: meetingID, DisplayName: "Dave", JoinedAt: now}

	mockParticipants.On("GetByID", mock.Anything, caller.ID).Return(caller, nil)
	mockMeetings.On("GetMeeting", mock.Anything, meetingID).
		Return(&domain.Meeting{ID: meetingID, IsActive: true}, nil)
	mockPresence.On("Touch", mock.Anything, meetingID, caller.ID, mock.AnythingOfType("time.Time")).Return(nil)
	mockParticipants.On("ListPresent", mock.Anything, meetingID).
		Return([]*domain.Participant{caller, fresh, stale, silent}, nil)
	mockPresence.On("List", mock.Anything, meetingID).Return([]*domain.PeerPresence{
		{ParticipantID: caller.ID, PeerID: "peer-alice", LastHeartbeatAt: now},
		{ParticipantID: fresh.ID, PeerID: "peer-bob", LastHeartbeatAt: now.Add(-10 * time.Second)},
		{ParticipantID: stale.ID, PeerID: "peer-carol", LastHeartbeatAt: now.Add(-45 * time.Second)},
		// silent never registered a peer
	}, nil)

	output, err := service.Heartbeat(context.Background(), caller.ID)

	assert.NoError(t, err)
	assert.True(t, output.Success)

	// The caller is included; the stale and silent participants are not.
	// Order follows join time.
	assert.Len(t, output.ActivePeers, 2)
	assert.Equal(t, caller.ID, output.ActivePeers[0].ParticipantID)
	assert.Equal(t, "peer-alice", output.ActivePeers[0].PeerID)
	assert.Equal(t, "Alice", output.ActivePeers[0].DisplayName)
	assert.Equal(t, fresh.ID, output.ActivePeers[1].ParticipantID)
	mockPresence.AssertExpectations(t)
}

func TestHeartbeat_ExcludesLeftParticipants(t *testing.T) {
	service, mockParticipants, mockPresence, mockMeetings := newTestService()

	meetingID := uuid.New()
	now := time.Now().UTC()
	caller := &domain.Participant{ID: uuid.New(), MeetingID: meetingID, DisplayName: "Alice", JoinedAt: now.Add(-time.Minute)}
	departed := uuid.New()

	mockParticipants.On("GetByID", mock.Anything, caller.ID).Return(caller, nil)
	mockMeetings.On("GetMeeting", mock.Anything, meetingID).
		Return(&domain.Meeting{ID: meetingID, IsActive: true}, nil)
	mockPresence.On("Touch", mock.Anything, meetingID, caller.ID, mock.AnythingOfType("time.Time")).Return(nil)
	// departed has a fresh presence entry but no longer appears in ListPresent
	mockParticipants.On("ListPresent", mock.Anything, meetingID).
		Return([]*domain.Participant{caller}, nil)
	mockPresence.On("List", mock.Anything, meetingID).Return([]*domain.PeerPresence{
		{ParticipantID: caller.ID, PeerID: "peer-alice", LastHeartbeatAt: now},
		{ParticipantID: departed, PeerID: "peer-gone", LastHeartbeatAt: now},
	}, nil)

	output, err := service.Heartbeat(context.Background(), caller.ID)

	assert.NoError(t, err)
	assert.True(t, output.Success)
	assert.Len(t, output.ActivePeers, 1)
	assert.Equal(t, caller.ID, output.ActivePeers[0].ParticipantID)
}

func TestHeartbeat_AfterLeave(t *testing.T) {
	service, mockParticipants, mockPresence, _ := newTestService()

	leftAt := time.Now().UTC().Add(-time.Minute)
	participant := &domain.Participant{ID: uuid.New(), MeetingID: uuid.New(), LeftAt: &leftAt}
	mockParticipants.On("GetByID", mock.Anything, participant.ID).Return(participant, nil)

	output, err := service.Heartbeat(context.Background(), participant.ID)

	assert.NoError(t, err)
	assert.False(t, output.Success)
	assert.Empty(t, output.ActivePeers)
	// A rejected heartbeat never resurrects presence
	mockPresence.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHeartbeat_UnknownParticipant(t *testing.T) {
	service, mockParticipants, mockPresence, _ := newTestService()

	participantID := uuid.New()
	mockParticipants.On("GetByID", mock.Anything, participantID).Return(nil, postgres.ErrNotFound)

	output, err := service.Heartbeat(context.Background(), participantID)

	assert.NoError(t, err)
	assert.False(t, output.Success)
	mockPresence.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHeartbeat_EndedMeeting(t *testing.T) {
	service, mockParticipants, mockPresence, mockMeetings := newTestService()

	meetingID := uuid.New()
	participant := &domain.Participant{ID: uuid.New(), MeetingID: meetingID}
	mockParticipants.On("GetByID", mock.Anything, participant.ID).Return(participant, nil)
	mockMeetings.On("GetMeeting", mock.Anything, meetingID).
		Return(&domain.Meeting{ID: meetingID, IsActive: false}, nil)

	output, err := service.Heartbeat(context.Background(), participant.ID)

	assert.NoError(t, err)
	assert.False(t, output.Success)
	mockPresence.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListParticipants(t *testing.T) {
	service, mockParticipants, _, _ := newTestService()

	meetingID := uuid.New()
	expected := []*domain.Participant{
		{ID: uuid.New(), MeetingID: meetingID, DisplayName: "Alice"},
		{ID: uuid.New(), MeetingID: meetingID, DisplayName: "Bob"},
	}
	mockParticipants.On("ListPresent", mock.Anything, meetingID).Return(expected, nil)

	participants, err := service.ListParticipants(context.Background(), meetingID)

	assert.NoError(t, err)
	assert.Equal(t, expected, participants)
}
