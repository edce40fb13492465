package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carelane/governor/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{DB: sqlDB, logger: zap.NewNop()}, mock
}

func approvalRows(record *models.ApprovalRecord) *sqlmock.Rows {
	approvedBy := "{}"
	if len(record.ApprovedBy) > 0 {
		approvedBy = "{" + record.ApprovedBy[0]
		for _, a := range record.ApprovedBy[1:] {
			approvedBy += "," + a
		}
		approvedBy += "}"
	}
	return sqlmock.NewRows([]string{
		"id", "command_id", "command_kind", "subject_id", "command_snapshot",
		"status", "approvers_required", "approved_by", "created_at", "expires_at",
		"resolved_at", "resolved_by", "resolution_note", "executed_resource_id",
	}).AddRow(
		record.ID, record.CommandID, record.CommandKind, record.SubjectID, []byte(record.CommandSnapshot),
		record.Status, record.ApproversRequired, approvedBy, record.CreatedAt, record.ExpiresAt,
		record.ResolvedAt, record.ResolvedBy, record.ResolutionNote, record.ExecutedResourceID,
	)
}

func emptyApprovalRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "command_id", "command_kind", "subject_id", "command_snapshot",
		"status", "approvers_required", "approved_by", "created_at", "expires_at",
		"resolved_at", "resolved_by", "resolution_note", "executed_resource_id",
	})
}

func sampleRecord() *models.ApprovalRecord {
	now := time.Now().UTC()
	return &models.ApprovalRecord{
		ID:                uuid.New(),
		CommandID:         uuid.New(),
		CommandKind:       models.CommandKindSuggestMedicationChange,
		SubjectID:         "patient-042",
		CommandSnapshot:   []byte(`{"kind":"suggest_medication_change"}`),
		Status:            models.ApprovalStatusPending,
		ApproversRequired: 2,
		ApprovedBy:        []string{},
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Hour),
	}
}

func TestApprovalRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	record := sampleRecord()

	mock.ExpectExec("INSERT INTO approval_records").
		WithArgs(record.ID, record.CommandID, record.CommandKind, record.SubjectID,
			[]byte(record.CommandSnapshot), record.Status, record.ApproversRequired,
			sqlmock.AnyArg(), record.CreatedAt, record.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	record := sampleRecord()
	record.ApprovedBy = []string{"dr-lee"}

	mock.ExpectQuery("SELECT (.+) FROM approval_records WHERE id =").
		WithArgs(record.ID).
		WillReturnRows(approvalRows(record))

	got, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.CommandID, got.CommandID)
	assert.Equal(t, []string{"dr-lee"}, []string(got.ApprovedBy))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM approval_records WHERE id =").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApprovalRepository_ResolveIfPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	record := sampleRecord()
	resolvedAt := time.Now().UTC()

	resolved := *record
	resolved.Status = models.ApprovalStatusApproved
	resolvedBy := "dr-lee"
	resolved.ResolvedAt = &resolvedAt
	resolved.ResolvedBy = &resolvedBy

	mock.ExpectQuery("UPDATE approval_records").
		WithArgs(record.ID, models.ApprovalStatusApproved, resolvedAt, "dr-lee", nil).
		WillReturnRows(approvalRows(&resolved))

	got, err := repo.ResolveIfPending(context.Background(), record.ID, models.ApprovalStatusApproved, "dr-lee", "", resolvedAt)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ApprovalStatusApproved, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepository_ResolveIfPending_AlreadyTerminal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	id := uuid.New()
	resolvedAt := time.Now().UTC()

	// The conditional update matched no pending row
	mock.ExpectQuery("UPDATE approval_records").
		WithArgs(id, models.ApprovalStatusRejected, resolvedAt, "dr-lee", nil).
		WillReturnRows(emptyApprovalRows())

	got, err := repo.ResolveIfPending(context.Background(), id, models.ApprovalStatusRejected, "dr-lee", "", resolvedAt)
	require.NoError(t, err)
	assert.Nil(t, got, "losing a resolve race must return nil, not an error")
}

func TestApprovalRepository_AddApproverIfPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	record := sampleRecord()

	updated := *record
	updated.ApprovedBy = []string{"dr-lee"}

	mock.ExpectQuery("UPDATE approval_records").
		WithArgs(record.ID, "dr-lee").
		WillReturnRows(approvalRows(&updated))

	got, err := repo.AddApproverIfPending(context.Background(), record.ID, "dr-lee")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"dr-lee"}, []string(got.ApprovedBy))
}

func TestApprovalRepository_AddApproverIfPending_RepeatActor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	id := uuid.New()

	// The NOT ANY guard makes a repeat approval match zero rows
	mock.ExpectQuery("UPDATE approval_records").
		WithArgs(id, "dr-lee").
		WillReturnRows(emptyApprovalRows())

	got, err := repo.AddApproverIfPending(context.Background(), id, "dr-lee")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApprovalRepository_ExpireDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	now := time.Now().UTC()

	expired := sampleRecord()
	expired.Status = models.ApprovalStatusExpired

	mock.ExpectQuery("UPDATE approval_records").
		WithArgs(now, models.SweepActor).
		WillReturnRows(approvalRows(expired))

	records, err := repo.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ApprovalStatusExpired, records[0].Status)
}

func TestApprovalRepository_ExpireDue_NothingDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE approval_records").
		WithArgs(now, models.SweepActor).
		WillReturnRows(emptyApprovalRows())

	records, err := repo.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestApprovalRepository_ListByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	record := sampleRecord()

	mock.ExpectQuery("SELECT (.+) FROM approval_records").
		WithArgs(models.ApprovalStatusPending, 50, 0).
		WillReturnRows(approvalRows(record))

	records, err := repo.ListByStatus(context.Background(), models.ApprovalStatusPending, 50, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
}

func TestApprovalRepository_SetExecutedResource(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApprovalRepository(db, zap.NewNop())
	id := uuid.New()

	mock.ExpectExec("UPDATE approval_records SET executed_resource_id").
		WithArgs(id, "resource-9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetExecutedResource(context.Background(), id, "resource-9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
