package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/carelane/governor/config"
	"github.com/carelane/governor/middleware"
	"github.com/carelane/governor/recordstore"
	"github.com/carelane/governor/repositories"
	"github.com/carelane/governor/repositories/postgres"
	"github.com/carelane/governor/services/approval"
	"github.com/carelane/governor/services/audit"
	"github.com/carelane/governor/services/executor"
	"github.com/carelane/governor/services/pipeline"
	"github.com/carelane/governor/services/safety"
	"github.com/carelane/governor/services/validation"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Approvals  repositories.ApprovalRepository
	AuditLogs  repositories.AuditRepository
	Executions repositories.ExecutionRepository
	TxManager  repositories.TransactionManager

	// Domain services
	Validator       *validation.Validator
	PolicyProvider  *safety.Provider
	ApprovalService *approval.Service
	Executor        *executor.Service
	AuditLogger     *audit.Logger
	Pipeline        *pipeline.Service

	// Middleware
	ActorMiddleware *middleware.ActorMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.ActorMiddleware = middleware.NewActorMiddleware(cfg.Auth.SigningKey, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, schema and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	repos := factory.NewRepositories()
	d.Approvals = repos.Approvals
	d.AuditLogs = repos.AuditLogs
	d.Executions = repos.Executions
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices wires the governance services
func (d *Dependencies) initServices(cfg *config.Config) error {
	provider, err := safety.NewProvider(cfg.Governance.PolicyFile, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to load safety policy: %w", err)
	}
	d.PolicyProvider = provider

	d.Validator = validation.NewValidator()
	d.AuditLogger = audit.NewLogger(d.AuditLogs, d.TxManager, d.Logger)
	d.ApprovalService = approval.NewService(d.Approvals, d.Logger)

	store := recordstore.NewHTTPClient(cfg.RecordStore(), d.Logger)
	d.Executor = executor.NewService(store, d.Executions, executor.Config{
		MaxAttempts: cfg.Governance.ExecutorAttempts,
		Backoff:     cfg.Governance.ExecutorBackoff,
	}, d.Logger)

	d.Pipeline = pipeline.NewService(
		d.Validator,
		d.PolicyProvider,
		d.ApprovalService,
		d.Executor,
		d.AuditLogger,
		d.Logger,
	)

	d.Logger.Info("governance services initialized")
	return nil
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.RepoFactory != nil {
		return d.RepoFactory.Close()
	}
	return nil
}
