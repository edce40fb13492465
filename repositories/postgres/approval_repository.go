package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/repositories"
)

const approvalColumns = `id, command_id, command_kind, subject_id, command_snapshot,
	       status, approvers_required, approved_by, created_at, expires_at,
	       resolved_at, resolved_by, resolution_note, executed_resource_id`

// ApprovalRepository implements the repositories.ApprovalRepository interface
type ApprovalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *DB, logger *zap.Logger) repositories.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new pending record
func (r *ApprovalRepository) Create(ctx context.Context, record *models.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (
			id, command_id, command_kind, subject_id, command_snapshot,
			status, approvers_required, approved_by, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.ID,
		record.CommandID,
		record.CommandKind,
		record.SubjectID,
		[]byte(record.CommandSnapshot),
		record.Status,
		record.ApproversRequired,
		pq.Array(record.ApprovedBy),
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert approval record: %w", err)
	}

	r.logger.Debug("approval record created",
		zap.String("id", record.ID.String()),
		zap.String("command_id", record.CommandID.String()))
	return nil
}

// GetByID retrieves a record by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ApprovalRecord, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_records WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	record, err := scanApproval(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval record: %w", err)
	}
	return record, nil
}

// GetByCommandID retrieves the record created for a command, if any
func (r *ApprovalRepository) GetByCommandID(ctx context.Context, commandID uuid.UUID) (*models.ApprovalRecord, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_records WHERE command_id = $1`

	executor := GetExecutor(ctx, r.db)
	record, err := scanApproval(executor.QueryRowContext(ctx, query, commandID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval record by command: %w", err)
	}
	return record, nil
}

// ListByStatus retrieves records by status with pagination, oldest first
func (r *ApprovalRepository) ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]*models.ApprovalRecord, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_records
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval records: %w", err)
	}
	defer rows.Close()

	return collectApprovals(rows)
}

// ResolveIfPending transitions the record to a terminal status only when it
// is still pending. The WHERE clause is the compare-and-swap: a concurrent
// resolve or sweep that already closed the record makes this update match
// zero rows, in which case (nil, nil) is returned and no state changes.
func (r *ApprovalRepository) ResolveIfPending(ctx context.Context, id uuid.UUID, to models.ApprovalStatus, resolvedBy string, note string, resolvedAt time.Time) (*models.ApprovalRecord, error) {
	query := `
		UPDATE approval_records
		SET status = $2, resolved_at = $3, resolved_by = $4, resolution_note = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + approvalColumns

	executor := GetExecutor(ctx, r.db)
	record, err := scanApproval(executor.QueryRowContext(ctx, query, id, to, resolvedAt, resolvedBy, nullableString(note)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve approval record: %w", err)
	}

	r.logger.Debug("approval record resolved",
		zap.String("id", id.String()),
		zap.String("status", string(to)),
		zap.String("resolved_by", resolvedBy))
	return record, nil
}

// AddApproverIfPending appends a distinct approving actor while the record
// stays pending. The same conditional guards both the status and the
// distinct-actor requirement.
func (r *ApprovalRepository) AddApproverIfPending(ctx context.Context, id uuid.UUID, actor string) (*models.ApprovalRecord, error) {
	query := `
		UPDATE approval_records
		SET approved_by = array_append(approved_by, $2)
		WHERE id = $1 AND status = 'pending' AND NOT ($2 = ANY(approved_by))
		RETURNING ` + approvalColumns

	executor := GetExecutor(ctx, r.db)
	record, err := scanApproval(executor.QueryRowContext(ctx, query, id, actor))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to add approver: %w", err)
	}

	r.logger.Debug("approver recorded",
		zap.String("id", id.String()),
		zap.String("actor", actor))
	return record, nil
}

// ExpireDue transitions every pending record whose expiry has passed to
// expired. The status guard makes repeated and concurrent sweeps no-ops for
// already-closed records.
func (r *ApprovalRepository) ExpireDue(ctx context.Context, now time.Time) ([]*models.ApprovalRecord, error) {
	query := `
		UPDATE approval_records
		SET status = 'expired', resolved_at = $1, resolved_by = $2
		WHERE status = 'pending' AND expires_at <= $1
		RETURNING ` + approvalColumns

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, now, models.SweepActor)
	if err != nil {
		return nil, fmt.Errorf("failed to expire approval records: %w", err)
	}
	defer rows.Close()

	expired, err := collectApprovals(rows)
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		r.logger.Debug("approval records expired", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// SetExecutedResource records the resource produced by executing an approved record
func (r *ApprovalRepository) SetExecutedResource(ctx context.Context, id uuid.UUID, resourceID string) error {
	query := `UPDATE approval_records SET executed_resource_id = $2 WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, id, resourceID); err != nil {
		return fmt.Errorf("failed to set executed resource: %w", err)
	}
	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *ApprovalRepository) WithTx(tx repositories.Transaction) repositories.ApprovalRepository {
	return &ApprovalRepository{
		db:     r.db,
		logger: r.logger,
	}
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApproval(row rowScanner) (*models.ApprovalRecord, error) {
	record := &models.ApprovalRecord{}
	var snapshot []byte
	var approvedBy pq.StringArray

	err := row.Scan(
		&record.ID,
		&record.CommandID,
		&record.CommandKind,
		&record.SubjectID,
		&snapshot,
		&record.Status,
		&record.ApproversRequired,
		&approvedBy,
		&record.CreatedAt,
		&record.ExpiresAt,
		&record.ResolvedAt,
		&record.ResolvedBy,
		&record.ResolutionNote,
		&record.ExecutedResourceID,
	)
	if err != nil {
		return nil, err
	}

	record.CommandSnapshot = snapshot
	record.ApprovedBy = approvedBy
	return record, nil
}

func collectApprovals(rows *sql.Rows) ([]*models.ApprovalRecord, error) {
	var records []*models.ApprovalRecord
	for rows.Next() {
		record, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval record rows: %w", err)
	}
	return records, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
