package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/repositories"
)

const auditColumns = `id, timestamp, event_type, command_id, approval_id, subject_id, actor, outcome, details`

// AuditRepository implements the repositories.AuditRepository interface.
// The table is append-only; there are no update or delete paths.
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a new audit event
func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, timestamp, event_type, command_id, approval_id, subject_id, actor, outcome, details
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.EventType,
		event.CommandID,
		event.ApprovalID,
		event.SubjectID,
		event.Actor,
		event.Outcome,
		details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	r.logger.Debug("audit event appended",
		zap.String("id", event.ID.String()),
		zap.String("event_type", string(event.EventType)),
		zap.String("command_id", event.CommandID.String()))
	return nil
}

// GetByID retrieves an audit event by ID
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditEvent, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_events WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	event, err := scanAuditEvent(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}
	return event, nil
}

// Query retrieves events matching the filter in timestamp order
func (r *AuditRepository) Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEvent, error) {
	var conditions []string
	var args []interface{}

	addArg := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.CommandID != nil {
		addArg("command_id = $%d", *filter.CommandID)
	}
	if filter.ApprovalID != nil {
		addArg("approval_id = $%d", *filter.ApprovalID)
	}
	if filter.SubjectID != "" {
		addArg("subject_id = $%d", filter.SubjectID)
	}
	if filter.Actor != "" {
		addArg("actor = $%d", filter.Actor)
	}
	if filter.From != nil {
		addArg("timestamp >= $%d", *filter.From)
	}
	if filter.To != nil {
		addArg("timestamp <= $%d", *filter.To)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + strconv.Itoa(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + strconv.Itoa(filter.Offset)
	}

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit event rows: %w", err)
	}
	return events, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *AuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	return &AuditRepository{
		db:     r.db,
		logger: r.logger,
	}
}

func scanAuditEvent(row rowScanner) (*models.AuditEvent, error) {
	event := &models.AuditEvent{}
	var details []byte

	err := row.Scan(
		&event.ID,
		&event.Timestamp,
		&event.EventType,
		&event.CommandID,
		&event.ApprovalID,
		&event.SubjectID,
		&event.Actor,
		&event.Outcome,
		&details,
	)
	if err != nil {
		return nil, err
	}

	if len(details) > 0 {
		if err := json.Unmarshal(details, &event.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
		}
	}
	return event, nil
}
