package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/carelane/governor/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Approval records table. Status transitions happen only through
		-- conditional updates on status = 'pending'.
		CREATE TABLE IF NOT EXISTS approval_records (
			id UUID PRIMARY KEY,
			command_id UUID NOT NULL UNIQUE,
			command_kind VARCHAR(64) NOT NULL,
			subject_id VARCHAR(255) NOT NULL,
			command_snapshot JSONB NOT NULL,
			status VARCHAR(20) NOT NULL,
			approvers_required INTEGER NOT NULL DEFAULT 1,
			approved_by TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ,
			resolved_by VARCHAR(255),
			resolution_note TEXT,
			executed_resource_id VARCHAR(255)
		);

		-- Audit events table: append-only, no updates or deletes.
		CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type VARCHAR(32) NOT NULL,
			command_id UUID NOT NULL,
			approval_id UUID,
			subject_id VARCHAR(255) NOT NULL,
			actor VARCHAR(255),
			outcome VARCHAR(255) NOT NULL,
			details JSONB NOT NULL DEFAULT '{}'
		);

		-- Execution provenance; command_id unique is the idempotency key.
		CREATE TABLE IF NOT EXISTS executions (
			command_id UUID PRIMARY KEY,
			resource_id VARCHAR(255) NOT NULL,
			approval_id UUID,
			executed_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_approval_records_status ON approval_records(status);
		CREATE INDEX IF NOT EXISTS idx_approval_records_expires_at ON approval_records(expires_at);
		CREATE INDEX IF NOT EXISTS idx_approval_records_subject_id ON approval_records(subject_id);

		CREATE INDEX IF NOT EXISTS idx_audit_events_command_id ON audit_events(command_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_approval_id ON audit_events(approval_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_subject_id ON audit_events(subject_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor);
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
