package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelane/governor/repositories"
)

// ExecutionRepository implements the repositories.ExecutionRepository interface
type ExecutionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewExecutionRepository creates a new execution repository
func NewExecutionRepository(db *DB, logger *zap.Logger) repositories.ExecutionRepository {
	return &ExecutionRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a completed execution. The primary key on command_id makes
// a duplicate insert fail, which the executor treats as a replay.
func (r *ExecutionRepository) Create(ctx context.Context, record *repositories.ExecutionRecord) error {
	query := `
		INSERT INTO executions (command_id, resource_id, approval_id, executed_at)
		VALUES ($1, $2, $3, $4)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.CommandID,
		record.ResourceID,
		record.ApprovalID,
		record.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution record: %w", err)
	}

	r.logger.Debug("execution recorded",
		zap.String("command_id", record.CommandID.String()),
		zap.String("resource_id", record.ResourceID))
	return nil
}

// GetByCommandID returns the prior execution for a command, or nil
func (r *ExecutionRepository) GetByCommandID(ctx context.Context, commandID uuid.UUID) (*repositories.ExecutionRecord, error) {
	query := `
		SELECT command_id, resource_id, approval_id, executed_at
		FROM executions
		WHERE command_id = $1
	`

	executor := GetExecutor(ctx, r.db)
	record := &repositories.ExecutionRecord{}
	err := executor.QueryRowContext(ctx, query, commandID).Scan(
		&record.CommandID,
		&record.ResourceID,
		&record.ApprovalID,
		&record.ExecutedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}
	return record, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *ExecutionRepository) WithTx(tx repositories.Transaction) repositories.ExecutionRepository {
	return &ExecutionRepository{
		db:     r.db,
		logger: r.logger,
	}
}
