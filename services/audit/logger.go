package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/repositories"
	"github.com/carelane/governor/services"
)

// Logger is the durable, append-only audit sink for the governance pipeline.
// Appends are synchronous: a failed append fails the enclosing operation, so
// no command transition can complete without its audit entry.
type Logger struct {
	auditRepo repositories.AuditRepository
	txManager repositories.TransactionManager
	logger    *zap.Logger
}

// NewLogger creates a new audit logger
func NewLogger(auditRepo repositories.AuditRepository, txManager repositories.TransactionManager, logger *zap.Logger) *Logger {
	return &Logger{
		auditRepo: auditRepo,
		txManager: txManager,
		logger:    logger,
	}
}

// Append appends one audit event
func (l *Logger) Append(ctx context.Context, event *models.AuditEvent) error {
	if err := l.auditRepo.Insert(ctx, event); err != nil {
		l.logger.Error("audit append failed",
			zap.Error(err),
			zap.String("event_type", string(event.EventType)),
			zap.String("command_id", event.CommandID.String()))
		return services.NewDomainError(services.ErrorTypeInternal, "audit append failed", err)
	}
	return nil
}

// AppendBatch appends a set of events all-or-nothing: every insert runs in
// one transaction, and any failure rolls back the whole batch.
func (l *Logger) AppendBatch(ctx context.Context, events []*models.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	err := l.txManager.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		repo := l.auditRepo.WithTx(tx)
		for _, event := range events {
			if err := repo.Insert(txCtx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.logger.Error("audit batch append failed",
			zap.Error(err),
			zap.Int("events", len(events)))
		return services.NewDomainError(services.ErrorTypeInternal, "audit batch append failed", err)
	}
	return nil
}

// Query retrieves events matching the filter in timestamp order
func (l *Logger) Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEvent, error) {
	events, err := l.auditRepo.Query(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("audit query failed", err)
	}
	return events, nil
}

// Convenience constructors for the pipeline's event vocabulary

// Received records a command entering the pipeline
func (l *Logger) Received(ctx context.Context, cmd *models.Command) error {
	event := models.NewAuditEvent(models.AuditEventReceived, cmd.ID, cmd.SubjectID, "accepted").
		WithDetail("kind", string(cmd.Kind)).
		WithDetail("source_model", cmd.SourceModel)
	return l.Append(ctx, event)
}

// Blocked records a policy rejection
func (l *Logger) Blocked(ctx context.Context, cmd *models.Command, reason, rule string) error {
	event := models.NewAuditEvent(models.AuditEventBlocked, cmd.ID, cmd.SubjectID, reason).
		WithDetail("kind", string(cmd.Kind)).
		WithDetail("rule", rule)
	return l.Append(ctx, event)
}

// Queued records a command enqueued for human approval
func (l *Logger) Queued(ctx context.Context, cmd *models.Command, approvalID uuid.UUID, approversRequired int) error {
	event := models.NewAuditEvent(models.AuditEventQueued, cmd.ID, cmd.SubjectID, "pending_approval").
		WithApproval(approvalID).
		WithDetail("kind", string(cmd.Kind)).
		WithDetail("approvers_required", strconv.Itoa(approversRequired))
	return l.Append(ctx, event)
}

// ApprovalProgress records a partial dual-approval (record still pending)
func (l *Logger) ApprovalProgress(ctx context.Context, record *models.ApprovalRecord, actor string) error {
	event := models.NewAuditEvent(models.AuditEventApprovalProgress, record.CommandID, record.SubjectID, "partial_approval").
		WithApproval(record.ID).
		WithActor(actor).
		WithDetail("approvals_outstanding", strconv.Itoa(record.ApprovalsOutstanding()))
	return l.Append(ctx, event)
}

// Approved records the terminal approval of a record
func (l *Logger) Approved(ctx context.Context, record *models.ApprovalRecord, actor string) error {
	event := models.NewAuditEvent(models.AuditEventApproved, record.CommandID, record.SubjectID, "approved").
		WithApproval(record.ID).
		WithActor(actor)
	return l.Append(ctx, event)
}

// Rejected records the terminal rejection of a record
func (l *Logger) Rejected(ctx context.Context, record *models.ApprovalRecord, actor, note string) error {
	event := models.NewAuditEvent(models.AuditEventRejected, record.CommandID, record.SubjectID, "rejected").
		WithApproval(record.ID).
		WithActor(actor)
	if note != "" {
		event.WithDetail("note", note)
	}
	return l.Append(ctx, event)
}

// ApprovalTimeout records a record expired by the sweeper
func (l *Logger) ApprovalTimeout(ctx context.Context, record *models.ApprovalRecord) error {
	event := models.NewAuditEvent(models.AuditEventApprovalTimeout, record.CommandID, record.SubjectID, "expired").
		WithApproval(record.ID).
		WithActor(models.SweepActor).
		WithDetail("expires_at", record.ExpiresAt.Format(time.RFC3339))
	return l.Append(ctx, event)
}

// Executed records a successful mutation against the record store
func (l *Logger) Executed(ctx context.Context, cmd *models.Command, approvalID *uuid.UUID, resourceID string) error {
	event := models.NewAuditEvent(models.AuditEventExecuted, cmd.ID, cmd.SubjectID, "executed").
		WithDetail("resource_id", resourceID).
		WithDetail("kind", string(cmd.Kind))
	if approvalID != nil {
		event.WithApproval(*approvalID)
	}
	return l.Append(ctx, event)
}

// ExecutionFailed records a terminal execution failure
func (l *Logger) ExecutionFailed(ctx context.Context, cmd *models.Command, approvalID *uuid.UUID, cause string) error {
	event := models.NewAuditEvent(models.AuditEventExecutionFailed, cmd.ID, cmd.SubjectID, "execution_failed").
		WithDetail("cause", cause).
		WithDetail("kind", string(cmd.Kind))
	if approvalID != nil {
		event.WithApproval(*approvalID)
	}
	return l.Append(ctx, event)
}

