package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/repository"
	"github.com/noah-isme/timetable-console/pkg/jobs"
)

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]models.AuditLog, error)
}

type auditQueue interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(job jobs.Job) error
}

// AuditConfig tunes the asynchronous audit writer.
type AuditConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// AuditService records schedule mutations off the request path. A nil
// service records nothing.
type AuditService struct {
	repo   auditRepository
	queue  auditQueue
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditService wires the repository behind a job queue.
func NewAuditService(repo auditRepository, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, logger: logger, now: time.Now}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the writers.
func (s *AuditService) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop flushes pending entries.
func (s *AuditService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// Record enqueues an entry. Failures are logged and never reach the caller.
func (s *AuditService) Record(ctx context.Context, viewer models.Viewer, action string, scheduleID models.ID, payload interface{}) {
	if s == nil {
		return
	}
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		ViewerName: viewer.Name,
		Action:     action,
		RequestID:  repository.RequestID(ctx),
		CreatedAt:  s.now().UTC(),
	}
	if !viewer.ID.IsZero() {
		id := viewer.ID.String()
		entry.ViewerID = &id
	}
	if !scheduleID.IsZero() {
		id := scheduleID.String()
		entry.ScheduleID = &id
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("audit payload not serialisable", zap.String("action", action), zap.Error(err))
		} else {
			entry.Payload = raw
		}
	}
	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: action, Payload: entry}); err != nil {
		s.logger.Warn("audit entry dropped", zap.String("action", action), zap.Error(err))
	}
}

// History returns the recorded mutations of a schedule, newest first.
func (s *AuditService) History(ctx context.Context, scheduleID models.ID, limit int) ([]models.AuditLog, error) {
	if s == nil {
		return []models.AuditLog{}, nil
	}
	logs, err := s.repo.ListBySchedule(ctx, scheduleID.String(), limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.Create(ctx, entry)
}
