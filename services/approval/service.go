package approval

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/repositories"
	"github.com/carelane/governor/services"
)

// Resolution is the result of applying a decision to a pending record
type Resolution struct {
	Record *models.ApprovalRecord
	// Terminal is true when the record reached approved/rejected; false for
	// a partial dual-approval that leaves it pending.
	Terminal bool
}

// Service owns the approval-record lifecycle. All status transitions go
// through the repository's conditional updates, so concurrent resolvers and
// sweepers race safely: exactly one wins and the rest observe a terminal
// state.
type Service struct {
	approvalRepo repositories.ApprovalRepository
	logger       *zap.Logger
}

// NewService creates a new approval service
func NewService(approvalRepo repositories.ApprovalRepository, logger *zap.Logger) *Service {
	return &Service{
		approvalRepo: approvalRepo,
		logger:       logger,
	}
}

// Create enqueues a validated command for human sign-off. The snapshot
// stored on the record, not the caller's command value, is what eventually
// executes.
func (s *Service) Create(ctx context.Context, cmd *models.Command, approversRequired int, ttl time.Duration) (*models.ApprovalRecord, error) {
	snapshot, err := json.Marshal(cmd)
	if err != nil {
		return nil, services.WrapInternal("failed to snapshot command", err)
	}

	record := models.NewApprovalRecord(cmd, snapshot, approversRequired, ttl)
	if err := s.approvalRepo.Create(ctx, record); err != nil {
		return nil, services.WrapInternal("failed to create approval record", err)
	}

	s.logger.Info("approval record created",
		zap.String("approval_id", record.ID.String()),
		zap.String("command_id", cmd.ID.String()),
		zap.String("kind", string(cmd.Kind)),
		zap.Int("approvers_required", approversRequired),
		zap.Time("expires_at", record.ExpiresAt))
	return record, nil
}

// Get retrieves a record by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.ApprovalRecord, error) {
	record, err := s.approvalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, services.WrapInternal("failed to load approval record", err)
	}
	if record == nil {
		return nil, services.ErrApprovalNotFound
	}
	return record, nil
}

// ListByStatus retrieves records by status, oldest first
func (s *Service) ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]*models.ApprovalRecord, error) {
	records, err := s.approvalRepo.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list approval records", err)
	}
	return records, nil
}

// Resolve applies a human decision to a pending record.
//
// Reject always terminates. Approve terminates once the record has enough
// distinct approvers; before that it records partial approval and the record
// stays pending. A second resolution attempt, or a repeat approval by the
// same actor, gets InvalidStateTransition — never a silent no-op.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, decision models.ApprovalDecision, actor, note string) (*Resolution, error) {
	if actor == "" {
		return nil, services.NewValidationError("actor", "is required")
	}
	if decision != models.DecisionApprove && decision != models.DecisionReject {
		return nil, services.NewValidationError("decision", "must be approve or reject")
	}

	current, err := s.approvalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, services.WrapInternal("failed to load approval record", err)
	}
	if current == nil {
		return nil, services.ErrApprovalNotFound
	}

	if decision == models.DecisionReject {
		return s.finalize(ctx, current, models.ApprovalStatusRejected, actor, note, decision)
	}

	if current.HasApprover(actor) {
		return nil, services.NewInvalidTransitionError(current.Status, decision).
			WithDetail("reason", "actor already approved this record")
	}

	// Record the approver under the pending guard. A zero-row update means a
	// racing resolve/sweep closed the record (or the actor raced itself).
	updated, err := s.approvalRepo.AddApproverIfPending(ctx, id, actor)
	if err != nil {
		return nil, services.WrapInternal("failed to record approver", err)
	}
	if updated == nil {
		return nil, s.transitionConflict(ctx, id, decision)
	}

	if updated.ApprovalsOutstanding() > 0 {
		s.logger.Info("partial approval recorded",
			zap.String("approval_id", id.String()),
			zap.String("actor", actor),
			zap.Int("outstanding", updated.ApprovalsOutstanding()))
		return &Resolution{Record: updated, Terminal: false}, nil
	}

	return s.finalize(ctx, updated, models.ApprovalStatusApproved, actor, note, decision)
}

// finalize performs the CAS transition to a terminal status
func (s *Service) finalize(ctx context.Context, record *models.ApprovalRecord, to models.ApprovalStatus, actor, note string, decision models.ApprovalDecision) (*Resolution, error) {
	resolved, err := s.approvalRepo.ResolveIfPending(ctx, record.ID, to, actor, note, time.Now().UTC())
	if err != nil {
		return nil, services.WrapInternal("failed to resolve approval record", err)
	}
	if resolved == nil {
		return nil, s.transitionConflict(ctx, record.ID, decision)
	}

	s.logger.Info("approval record resolved",
		zap.String("approval_id", record.ID.String()),
		zap.String("status", string(to)),
		zap.String("actor", actor))
	return &Resolution{Record: resolved, Terminal: true}, nil
}

// transitionConflict builds the error returned to the loser of a CAS race
func (s *Service) transitionConflict(ctx context.Context, id uuid.UUID, attempted models.ApprovalDecision) error {
	current, err := s.approvalRepo.GetByID(ctx, id)
	if err != nil {
		return services.WrapInternal("failed to load approval record after conflict", err)
	}
	if current == nil {
		return services.ErrApprovalNotFound
	}
	return services.NewInvalidTransitionError(current.Status, attempted)
}

// Sweep expires every pending record whose TTL has passed and returns the
// records it transitioned. Records resolved or expired by a racing caller
// are untouched, so repeated sweeps produce no duplicate transitions.
func (s *Service) Sweep(ctx context.Context, now time.Time) ([]*models.ApprovalRecord, error) {
	expired, err := s.approvalRepo.ExpireDue(ctx, now)
	if err != nil {
		return nil, services.WrapInternal("sweep failed", err)
	}
	if len(expired) > 0 {
		s.logger.Info("swept expired approval records", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// MarkExecuted records the resource produced by executing an approved record
func (s *Service) MarkExecuted(ctx context.Context, id uuid.UUID, resourceID string) error {
	if err := s.approvalRepo.SetExecutedResource(ctx, id, resourceID); err != nil {
		return services.WrapInternal("failed to record executed resource", err)
	}
	return nil
}
