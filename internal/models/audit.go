package models

import "time"

// Audit actions recorded for schedule mutations.
const (
	AuditActionScheduleCreate = "SCHEDULE_CREATE"
	AuditActionScheduleUpdate = "SCHEDULE_UPDATE"
	AuditActionScheduleDelete = "SCHEDULE_DELETE"
)

// AuditLog is one console mutation forwarded to the backend.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ViewerName string    `db:"viewer_name" json:"viewer_name"`
	ViewerID   *string   `db:"viewer_id" json:"viewer_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	ScheduleID *string   `db:"schedule_id" json:"schedule_id,omitempty"`
	Payload    []byte    `db:"payload" json:"payload,omitempty"`
	RequestID  string    `db:"request_id" json:"request_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
