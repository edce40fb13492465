package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carelane/governor/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Automatically commits if function succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ApprovalRepository owns approval-record persistence. All status mutations
// go through the conditional-update methods so that concurrent resolvers and
// sweepers cannot both win on the same record.
type ApprovalRepository interface {
	// Create persists a new pending record
	Create(ctx context.Context, record *models.ApprovalRecord) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ApprovalRecord, error)

	// GetByCommandID retrieves the record created for a command, if any
	GetByCommandID(ctx context.Context, commandID uuid.UUID) (*models.ApprovalRecord, error)

	// ListByStatus retrieves records by status with pagination, oldest first
	ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]*models.ApprovalRecord, error)

	// ResolveIfPending transitions the record to a terminal status only when
	// it is still pending. Returns the updated record, or (nil, nil) when the
	// conditional update matched no row (the record was already terminal or
	// does not exist).
	ResolveIfPending(ctx context.Context, id uuid.UUID, to models.ApprovalStatus, resolvedBy string, note string, resolvedAt time.Time) (*models.ApprovalRecord, error)

	// AddApproverIfPending appends a distinct approving actor while the
	// record stays pending (partial dual-approval state). Returns (nil, nil)
	// when the record is not pending or the actor already approved.
	AddApproverIfPending(ctx context.Context, id uuid.UUID, actor string) (*models.ApprovalRecord, error)

	// ExpireDue transitions every pending record whose expiry has passed to
	// expired, in one conditional update, and returns the records it expired.
	// Safe to call repeatedly and concurrently.
	ExpireDue(ctx context.Context, now time.Time) ([]*models.ApprovalRecord, error)

	// SetExecutedResource records the resource produced by executing an
	// approved record
	SetExecutedResource(ctx context.Context, id uuid.UUID, resourceID string) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ApprovalRepository
}

// AuditRepository handles the append-only audit trail
type AuditRepository interface {
	// Insert appends a new audit event
	Insert(ctx context.Context, event *models.AuditEvent) error

	// GetByID retrieves an audit event by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditEvent, error)

	// Query retrieves events matching the filter in timestamp order
	Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEvent, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// ExecutionRecord ties a command to the resource its execution produced.
// The unique command id is the idempotency key for retried executions.
type ExecutionRecord struct {
	CommandID  uuid.UUID  `json:"command_id" db:"command_id"`
	ResourceID string     `json:"resource_id" db:"resource_id"`
	ApprovalID *uuid.UUID `json:"approval_id,omitempty" db:"approval_id"`
	ExecutedAt time.Time  `json:"executed_at" db:"executed_at"`
}

// ExecutionRepository handles execution provenance and idempotency
type ExecutionRepository interface {
	// Create records a completed execution; fails on duplicate command id
	Create(ctx context.Context, record *ExecutionRecord) error

	// GetByCommandID returns the prior execution for a command, or nil
	GetByCommandID(ctx context.Context, commandID uuid.UUID) (*ExecutionRecord, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ExecutionRepository
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Approvals  ApprovalRepository
	AuditLogs  AuditRepository
	Executions ExecutionRepository
}
