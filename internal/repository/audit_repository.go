package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-console/internal/models"
)

// AuditSchema creates the audit table when missing.
var AuditSchema = []string{
	`CREATE TABLE IF NOT EXISTS console_audit_logs (
	id UUID PRIMARY KEY,
	viewer_id TEXT NULL,
	viewer_name TEXT NOT NULL,
	action TEXT NOT NULL,
	schedule_id TEXT NULL,
	payload JSONB NULL,
	request_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_console_audit_logs_schedule ON console_audit_logs (schedule_id, created_at DESC)`,
}

// AuditRepository persists the console mutation trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository builds the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create stores an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO console_audit_logs (id, viewer_id, viewer_name, action, schedule_id, payload, request_id, created_at) VALUES (:id, :viewer_id, :viewer_name, :action, :schedule_id, :payload, :request_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListBySchedule returns the trail of a schedule, newest first.
func (r *AuditRepository) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, viewer_id, viewer_name, action, schedule_id, payload, request_id, created_at
FROM console_audit_logs WHERE schedule_id = $1 ORDER BY created_at DESC LIMIT $2`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, scheduleID, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
