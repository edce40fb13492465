package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/repositories"
	"github.com/carelane/governor/services"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditEvent, error) {
	args := m.Called(ctx, id)
	if event := args.Get(0); event != nil {
		return event.(*models.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEvent, error) {
	args := m.Called(ctx, filter)
	if events := args.Get(0); events != nil {
		return events.([]*models.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	args := m.Called(tx)
	return args.Get(0).(repositories.AuditRepository)
}

// MockTransaction is a mock implementation of Transaction
type MockTransaction struct {
	mock.Mock
}

func (m *MockTransaction) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransaction) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransaction) Context() context.Context {
	args := m.Called()
	return args.Get(0).(context.Context)
}

// MockTransactionManager is a mock implementation of TransactionManager
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx, new(MockTransaction))
}

func testCommand() *models.Command {
	return &models.Command{
		ID:          uuid.New(),
		Kind:        models.CommandKindFlagAbnormalResult,
		Confidence:  0.95,
		SourceModel: "triage-v3",
		SubjectID:   "patient-001",
		CreatedAt:   time.Now().UTC(),
		Payload: &models.FlagAbnormalResultPayload{
			ResultID: "lab-1",
			Severity: "high",
			Reason:   "elevated troponin",
		},
	}
}

func TestLogger_AppendFailureIsFatal(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	logger := NewLogger(mockRepo, new(MockTransactionManager), zap.NewNop())

	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	err := logger.Append(context.Background(), models.NewAuditEvent(
		models.AuditEventReceived, uuid.New(), "patient-001", "accepted"))
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))
}

func TestLogger_EventVocabulary(t *testing.T) {
	cmd := testCommand()
	approvalID := uuid.New()
	record := &models.ApprovalRecord{
		ID:                approvalID,
		CommandID:         cmd.ID,
		SubjectID:         cmd.SubjectID,
		Status:            models.ApprovalStatusPending,
		ApproversRequired: 2,
		ApprovedBy:        []string{"dr-lee"},
		ExpiresAt:         time.Now().UTC().Add(time.Hour),
	}

	tests := []struct {
		name      string
		emit      func(*Logger) error
		eventType models.AuditEventType
		wantActor *string
	}{
		{
			"received",
			func(l *Logger) error { return l.Received(context.Background(), cmd) },
			models.AuditEventReceived, nil,
		},
		{
			"blocked",
			func(l *Logger) error { return l.Blocked(context.Background(), cmd, "low_confidence", "min_confidence") },
			models.AuditEventBlocked, nil,
		},
		{
			"queued",
			func(l *Logger) error { return l.Queued(context.Background(), cmd, approvalID, 2) },
			models.AuditEventQueued, nil,
		},
		{
			"approval progress",
			func(l *Logger) error { return l.ApprovalProgress(context.Background(), record, "dr-lee") },
			models.AuditEventApprovalProgress, strPtr("dr-lee"),
		},
		{
			"approved",
			func(l *Logger) error { return l.Approved(context.Background(), record, "dr-patel") },
			models.AuditEventApproved, strPtr("dr-patel"),
		},
		{
			"rejected",
			func(l *Logger) error { return l.Rejected(context.Background(), record, "dr-patel", "declined") },
			models.AuditEventRejected, strPtr("dr-patel"),
		},
		{
			"approval timeout",
			func(l *Logger) error { return l.ApprovalTimeout(context.Background(), record) },
			models.AuditEventApprovalTimeout, strPtr(models.SweepActor),
		},
		{
			"executed",
			func(l *Logger) error { return l.Executed(context.Background(), cmd, &approvalID, "resource-1") },
			models.AuditEventExecuted, nil,
		},
		{
			"execution failed",
			func(l *Logger) error { return l.ExecutionFailed(context.Background(), cmd, nil, "store down") },
			models.AuditEventExecutionFailed, nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockAuditRepository)
			logger := NewLogger(mockRepo, new(MockTransactionManager), zap.NewNop())

			var captured *models.AuditEvent
			mockRepo.On("Insert", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					captured = args.Get(1).(*models.AuditEvent)
				}).Return(nil)

			require.NoError(t, tt.emit(logger))
			require.NotNil(t, captured)
			assert.Equal(t, tt.eventType, captured.EventType)
			assert.Equal(t, cmd.ID, captured.CommandID)
			assert.Equal(t, cmd.SubjectID, captured.SubjectID)
			assert.False(t, captured.Timestamp.IsZero())
			if tt.wantActor != nil {
				require.NotNil(t, captured.Actor)
				assert.Equal(t, *tt.wantActor, *captured.Actor)
			}
		})
	}
}

func TestLogger_AppendBatchAllOrNothing(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	txRepo := new(MockAuditRepository)
	txManager := new(MockTransactionManager)
	logger := NewLogger(mockRepo, txManager, zap.NewNop())

	events := []*models.AuditEvent{
		models.NewAuditEvent(models.AuditEventReceived, uuid.New(), "p1", "accepted"),
		models.NewAuditEvent(models.AuditEventExecuted, uuid.New(), "p1", "executed"),
	}

	txManager.On("InTransaction", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("WithTx", mock.Anything).Return(txRepo)
	txRepo.On("Insert", mock.Anything, events[0]).Return(nil)
	txRepo.On("Insert", mock.Anything, events[1]).Return(errors.New("constraint violation"))

	err := logger.AppendBatch(context.Background(), events)
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))
}

func TestLogger_AppendBatchEmpty(t *testing.T) {
	txManager := new(MockTransactionManager)
	logger := NewLogger(new(MockAuditRepository), txManager, zap.NewNop())

	assert.NoError(t, logger.AppendBatch(context.Background(), nil))
	txManager.AssertNotCalled(t, "InTransaction", mock.Anything, mock.Anything)
}

func TestLogger_Query(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	logger := NewLogger(mockRepo, new(MockTransactionManager), zap.NewNop())

	commandID := uuid.New()
	filter := models.AuditFilter{CommandID: &commandID}
	expected := []*models.AuditEvent{
		models.NewAuditEvent(models.AuditEventReceived, commandID, "p1", "accepted"),
	}

	mockRepo.On("Query", mock.Anything, filter).Return(expected, nil)

	events, err := logger.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, expected, events)
}

func strPtr(s string) *string { return &s }
