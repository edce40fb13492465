package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/services"
	"github.com/carelane/governor/services/approval"
	"github.com/carelane/governor/services/audit"
	"github.com/carelane/governor/services/executor"
	"github.com/carelane/governor/services/safety"
	"github.com/carelane/governor/services/validation"
)

// OutcomeKind classifies what the pipeline did with a submitted command
type OutcomeKind string

const (
	OutcomeExecuted OutcomeKind = "executed"
	OutcomeBlocked  OutcomeKind = "blocked"
	OutcomeQueued   OutcomeKind = "queued"
)

// Outcome is the pipeline's answer to a submission
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	CommandID  uuid.UUID   `json:"command_id"`
	ResourceID string      `json:"resource_id,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	ApprovalID *uuid.UUID  `json:"approval_id,omitempty"`
	Message    string      `json:"message"`
}

// PolicySource yields the active safety policy snapshot per evaluation
type PolicySource interface {
	Current() *models.SafetyPolicy
}

// Service orchestrates the governance pipeline: validate, classify, then
// block, auto-execute, or enqueue — with every transition mirrored into the
// audit trail before the outcome is reported.
type Service struct {
	validator *validation.Validator
	policies  PolicySource
	approvals *approval.Service
	executor  *executor.Service
	audit     *audit.Logger
	logger    *zap.Logger
}

// NewService creates a new governance pipeline
func NewService(
	validator *validation.Validator,
	policies PolicySource,
	approvals *approval.Service,
	exec *executor.Service,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *Service {
	return &Service{
		validator: validator,
		policies:  policies,
		approvals: approvals,
		executor:  exec,
		audit:     auditLog,
		logger:    logger,
	}
}

// Submit runs a raw candidate command through the pipeline.
// Validation failures return before any audit entry: an unparseable
// candidate never "entered" the pipeline. Every validated command gets a
// received event first, and exactly one terminal event after.
func (s *Service) Submit(ctx context.Context, raw []byte) (*Outcome, error) {
	cmd, err := s.validator.Validate(raw)
	if err != nil {
		return nil, err
	}

	if err := s.audit.Received(ctx, cmd); err != nil {
		return nil, err
	}

	// Snapshot the policy once; a concurrent reload affects the next
	// submission, not this one.
	policy := s.policies.Current()
	routing := safety.Classify(cmd, policy, time.Now())

	switch routing.Decision {
	case safety.DecisionBlocked:
		if err := s.audit.Blocked(ctx, cmd, routing.Reason, routing.RuleName); err != nil {
			return nil, err
		}
		s.logger.Info("command blocked by policy",
			zap.String("command_id", cmd.ID.String()),
			zap.String("reason", routing.Reason))
		return &Outcome{
			Kind:      OutcomeBlocked,
			CommandID: cmd.ID,
			Reason:    routing.Reason,
			Message:   fmt.Sprintf("command blocked by safety policy: %s", routing.Reason),
		}, nil

	case safety.DecisionNeedsApproval:
		record, err := s.approvals.Create(ctx, cmd, routing.ApproversRequired, policy.ApprovalTTL)
		if err != nil {
			return nil, err
		}
		if err := s.audit.Queued(ctx, cmd, record.ID, record.ApproversRequired); err != nil {
			return nil, err
		}
		return &Outcome{
			Kind:       OutcomeQueued,
			CommandID:  cmd.ID,
			ApprovalID: &record.ID,
			Message:    fmt.Sprintf("command queued for approval, expires at %s", record.ExpiresAt.Format(time.RFC3339)),
		}, nil

	default: // safety.DecisionAutoExecute
		return s.executeAndAudit(ctx, cmd, nil)
	}
}

// ResolveApproval applies a human decision to a pending approval and, when
// the decision terminally approves the record, executes the embedded command
// snapshot immediately.
func (s *Service) ResolveApproval(ctx context.Context, id uuid.UUID, decision models.ApprovalDecision, actor, note string) (*models.ApprovalRecord, *Outcome, error) {
	res, err := s.approvals.Resolve(ctx, id, decision, actor, note)
	if err != nil {
		return nil, nil, err
	}
	record := res.Record

	if !res.Terminal {
		if err := s.audit.ApprovalProgress(ctx, record, actor); err != nil {
			return nil, nil, err
		}
		return record, nil, nil
	}

	switch record.Status {
	case models.ApprovalStatusRejected:
		if err := s.audit.Rejected(ctx, record, actor, note); err != nil {
			return nil, nil, err
		}
		return record, nil, nil

	case models.ApprovalStatusApproved:
		if err := s.audit.Approved(ctx, record, actor); err != nil {
			return nil, nil, err
		}

		cmd, err := record.Command()
		if err != nil {
			return nil, nil, services.WrapInternal("corrupt command snapshot", err)
		}

		outcome, err := s.executeAndAudit(ctx, cmd, record)
		if err != nil {
			// The approval stands: an execution failure never reverts the
			// human decision. The caller sees the approved record plus the
			// execution error.
			return record, nil, err
		}

		if err := s.approvals.MarkExecuted(ctx, record.ID, outcome.ResourceID); err != nil {
			return record, outcome, err
		}
		record.ExecutedResourceID = &outcome.ResourceID
		return record, outcome, nil

	default:
		return record, nil, nil
	}
}

// SweepExpired expires overdue pending approvals and audits each transition.
// Intended to be driven by a periodic caller.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) ([]*models.ApprovalRecord, error) {
	expired, err := s.approvals.Sweep(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, record := range expired {
		if err := s.audit.ApprovalTimeout(ctx, record); err != nil {
			return nil, err
		}
	}
	return expired, nil
}

// executeAndAudit runs the executor and emits the terminal audit event for
// the execution, regardless of outcome.
func (s *Service) executeAndAudit(ctx context.Context, cmd *models.Command, record *models.ApprovalRecord) (*Outcome, error) {
	var approvalID *uuid.UUID
	if record != nil {
		approvalID = &record.ID
	}

	resourceID, execErr := s.executor.Execute(ctx, cmd, record)
	if execErr != nil {
		if err := s.audit.ExecutionFailed(ctx, cmd, approvalID, execErr.Error()); err != nil {
			return nil, err
		}
		return nil, execErr
	}

	if err := s.audit.Executed(ctx, cmd, approvalID, resourceID); err != nil {
		return nil, err
	}

	return &Outcome{
		Kind:       OutcomeExecuted,
		CommandID:  cmd.ID,
		ResourceID: resourceID,
		ApprovalID: approvalID,
		Message:    fmt.Sprintf("command executed, resource %s", resourceID),
	}, nil
}
