package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/recordstore"
	"github.com/carelane/governor/repositories"
	"github.com/carelane/governor/services"
)

// Config bounds the executor's retry behavior
type Config struct {
	// MaxAttempts is the total attempt budget for retryable failures
	MaxAttempts int
	// Backoff is the base delay between attempts; attempt n waits n*Backoff
	Backoff time.Duration
}

// DefaultConfig returns the default executor configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

// Service performs governed mutations against the external record store.
// Executions are idempotent on command id: a retried execution for a command
// that already produced a resource returns the existing resource id.
type Service struct {
	store         recordstore.Client
	executionRepo repositories.ExecutionRepository
	config        Config
	logger        *zap.Logger
}

// NewService creates a new executor
func NewService(store recordstore.Client, executionRepo repositories.ExecutionRepository, config Config, logger *zap.Logger) *Service {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Service{
		store:         store,
		executionRepo: executionRepo,
		config:        config,
		logger:        logger,
	}
}

// Execute applies the command's mutation to the record store and records
// provenance. approval is nil for auto-executed commands.
func (s *Service) Execute(ctx context.Context, cmd *models.Command, approval *models.ApprovalRecord) (string, error) {
	// Idempotency check: replay returns the original resource
	prior, err := s.executionRepo.GetByCommandID(ctx, cmd.ID)
	if err != nil {
		return "", services.WrapInternal("failed to check prior execution", err)
	}
	if prior != nil {
		s.logger.Info("execution replayed, returning prior resource",
			zap.String("command_id", cmd.ID.String()),
			zap.String("resource_id", prior.ResourceID))
		return prior.ResourceID, nil
	}

	mutation := recordstore.Mutation{
		CommandID: cmd.ID,
		Kind:      cmd.Kind,
		SubjectID: cmd.SubjectID,
		Payload:   cmd.Payload,
		Provenance: recordstore.Provenance{
			SourceModel: cmd.SourceModel,
			Confidence:  cmd.Confidence,
		},
	}
	if approval != nil {
		mutation.Provenance.ApprovedBy = approval.ApprovedBy
	}

	resourceID, err := s.applyWithRetry(ctx, mutation)
	if err != nil {
		return "", err
	}

	record := &repositories.ExecutionRecord{
		CommandID:  cmd.ID,
		ResourceID: resourceID,
		ExecutedAt: time.Now().UTC(),
	}
	if approval != nil {
		record.ApprovalID = &approval.ID
	}
	if err := s.executionRepo.Create(ctx, record); err != nil {
		// The mutation landed; losing the provenance row would break the
		// idempotency key, so this is an internal failure, not a store one.
		return "", services.WrapInternal("failed to record execution", err)
	}

	s.logger.Info("command executed",
		zap.String("command_id", cmd.ID.String()),
		zap.String("kind", string(cmd.Kind)),
		zap.String("resource_id", resourceID))
	return resourceID, nil
}

// applyWithRetry calls the store with a bounded retry budget. Only errors
// the store classifies as retryable are retried; exhaustion escalates to a
// terminal execution error.
func (s *Service) applyWithRetry(ctx context.Context, mutation recordstore.Mutation) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		resourceID, err := s.store.Apply(ctx, mutation)
		if err == nil {
			return resourceID, nil
		}
		lastErr = err

		if !recordstore.IsRetryable(err) {
			return "", services.NewDomainError(services.ErrorTypeExecutionTerminal,
				"record store rejected mutation", err)
		}

		s.logger.Warn("retryable store failure",
			zap.String("command_id", mutation.CommandID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < s.config.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * s.config.Backoff):
			case <-ctx.Done():
				return "", services.NewDomainError(services.ErrorTypeExecutionTerminal,
					"execution cancelled", ctx.Err())
			}
		}
	}

	return "", services.NewDomainError(services.ErrorTypeExecutionTerminal,
		"retry budget exhausted", lastErr)
}
