package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
)

// ErrSubmissionInFlight rejects a submit identical to one still being processed.
var ErrSubmissionInFlight = appErrors.New("SUBMISSION_IN_FLIGHT", http.StatusConflict, "an identical submission is already in progress")

type scheduleEntryRepository interface {
	Find(ctx context.Context, id models.ID) (*models.ScheduleDetail, error)
	Create(ctx context.Context, payload dto.CreateSchedulePayload) (json.RawMessage, error)
	Update(ctx context.Context, id models.ID, payload dto.UpdateSchedulePayload) (json.RawMessage, error)
	Delete(ctx context.Context, id models.ID) error
}

type auditRecorder interface {
	Record(ctx context.Context, viewer models.Viewer, action string, scheduleID models.ID, payload interface{})
}

// ScheduleEntryBuilder turns an existing schedule back into an entry form.
type ScheduleEntryBuilder struct{}

type prefillField struct {
	name       string
	collection models.Collection
	id         models.ID
	label      string
	scope      func(models.Reference) bool
	assign     func(models.ID)
}

// Prefill resolves every form field of detail. Ids sent by the backend are
// kept as is; otherwise the name is matched exactly against refs, scoped to
// the already resolved parent when possible. Names that match nothing leave
// the field unset and are listed in unresolved.
func (ScheduleEntryBuilder) Prefill(detail models.ScheduleDetail, refs ReferenceLookup) (dto.ScheduleEntryForm, []string) {
	form := dto.ScheduleEntryForm{ID: detail.ID}
	var group models.ID
	var unresolved []string

	fields := []prefillField{
		{name: "faculty_id", collection: models.CollectionFaculties, id: detail.FacultyID, label: detail.FacultyName, assign: func(id models.ID) { form.FacultyID = id }},
		{name: "department_id", collection: models.CollectionDepartments, id: detail.DepartmentID, label: detail.DepartmentName,
			scope:  func(r models.Reference) bool { return form.FacultyID.IsZero() || r.FacultyID == form.FacultyID },
			assign: func(id models.ID) { form.DepartmentID = id }},
		{name: "group_id", collection: models.CollectionGroups, id: detail.GroupID, label: detail.GroupName,
			scope:  func(r models.Reference) bool { return form.FacultyID.IsZero() || r.FacultyID == form.FacultyID },
			assign: func(id models.ID) { group = id }},
		{name: "corp_id", collection: models.CollectionCorps, id: detail.CorpID, label: detail.CorpName, assign: func(id models.ID) { form.CorpID = id }},
		{name: "room_id", collection: models.CollectionRooms, id: detail.RoomID, label: detail.RoomName,
			scope:  func(r models.Reference) bool { return form.CorpID.IsZero() || r.CorpID == form.CorpID },
			assign: func(id models.ID) { form.RoomID = id }},
		{name: "lesson_type_id", collection: models.CollectionLessonTypes, id: detail.LessonTypeID, label: detail.LessonTypeName, assign: func(id models.ID) { form.LessonTypeID = id }},
		{name: "lesson_type_hour_id", collection: models.CollectionLessonTypeHours, id: detail.LessonTypeHourID, label: detail.LessonTypeHour, assign: func(id models.ID) { form.LessonTypeHourID = id }},
		{name: "hour_id", collection: models.CollectionHours, id: detail.HourID, label: detail.HourName, assign: func(id models.ID) { form.HourID = id }},
		{name: "semester_id", collection: models.CollectionSemesters, id: detail.SemesterID, label: detail.SemesterName, assign: func(id models.ID) { form.SemesterID = id }},
		{name: "week_type_id", collection: models.CollectionWeekTypes, id: detail.WeekTypeID, label: detail.WeekTypeName, assign: func(id models.ID) { form.WeekTypeID = id }},
		{name: "day_id", collection: models.CollectionDays, id: detail.DayID, label: detail.DayName, assign: func(id models.ID) { form.DayID = id }},
		{name: "user_id", collection: models.CollectionUsers, id: detail.UserID, label: detail.UserName,
			scope:  func(r models.Reference) bool { return form.DepartmentID.IsZero() || r.InDepartment(form.DepartmentID) },
			assign: func(id models.ID) { form.UserID = id }},
		{name: "discipline_id", collection: models.CollectionDisciplines, id: detail.DisciplineID, label: detail.DisciplineName,
			scope: func(r models.Reference) bool {
				return form.DepartmentID.IsZero() || r.DepartmentID == form.DepartmentID
			},
			assign: func(id models.ID) { form.DisciplineID = id }},
	}

	for _, f := range fields {
		if !f.id.IsZero() {
			f.assign(f.id)
			continue
		}
		if f.label == "" {
			continue
		}
		records := refs.List(f.collection)
		if f.scope != nil {
			if id, ok := models.FindByName(filterRefs(records, f.scope), f.label); ok {
				f.assign(id)
				continue
			}
		}
		if id, ok := models.FindByName(records, f.label); ok {
			f.assign(id)
			continue
		}
		unresolved = append(unresolved, f.name)
	}

	if !group.IsZero() {
		form.GroupIDs = dto.IDList{group}
	}
	return form, unresolved
}

// ScheduleEntryService validates and submits schedule entry forms.
type ScheduleEntryService struct {
	repo      scheduleEntryRepository
	cache     *CacheService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	builder   ScheduleEntryBuilder
	resolver  CascadeResolver

	inflight sync.Map
}

// NewScheduleEntryService constructs the service. audit may be nil.
func NewScheduleEntryService(repo scheduleEntryRepository, cache *CacheService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ScheduleEntryService {
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(jsonFieldName)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleEntryService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger}
}

// Validate checks minimal well-formedness. Slot exclusivity is left to the backend.
func (s *ScheduleEntryService) Validate(form dto.ScheduleEntryForm) error {
	if err := s.validator.Struct(form); err != nil {
		details := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		message := appErrors.ErrValidation.Message
		if _, missing := details["group_id"]; missing && len(details) == 1 {
			message = "at least one group is required"
		}
		e := appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), details)
		e.Err = err
		return e
	}
	if form.IsEdit() && len(form.GroupIDs) != 1 {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "editing supports exactly one group"),
			map[string]string{"group_id": "len=1"},
		)
	}
	return nil
}

// jsonFieldName reports validation failures under the field's JSON name.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Submit updates the schedule when the form carries an id and creates it otherwise.
// Both calls carry the full form snapshot; creation fans out over every selected group.
func (s *ScheduleEntryService) Submit(ctx context.Context, viewer models.Viewer, form dto.ScheduleEntryForm) (*dto.ScheduleEntryResult, error) {
	if err := s.Validate(form); err != nil {
		return nil, err
	}

	key := submissionKey(viewer, form)
	if _, busy := s.inflight.LoadOrStore(key, struct{}{}); busy {
		return nil, ErrSubmissionInFlight
	}
	defer s.inflight.Delete(key)

	var (
		raw    json.RawMessage
		err    error
		result = &dto.ScheduleEntryResult{Groups: len(form.GroupIDs)}
	)
	if form.IsEdit() {
		result.Mode = "update"
		result.ID = form.ID
		raw, err = s.repo.Update(ctx, form.ID, form.UpdatePayload())
	} else {
		result.Mode = "create"
		raw, err = s.repo.Create(ctx, form.CreatePayload())
	}
	if err != nil {
		s.logger.Info("schedule submit rejected",
			zap.String("mode", result.Mode),
			zap.String("schedule_id", form.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	result.Response = raw

	s.afterMutation(ctx)
	if s.audit != nil {
		if form.IsEdit() {
			s.audit.Record(ctx, viewer, models.AuditActionScheduleUpdate, form.ID, form)
		} else {
			for _, single := range form.FanOut() {
				s.audit.Record(ctx, viewer, models.AuditActionScheduleCreate, "", single)
			}
		}
	}
	return result, nil
}

// Delete removes a schedule entry.
func (s *ScheduleEntryService) Delete(ctx context.Context, viewer models.Viewer, id models.ID) error {
	if id.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.afterMutation(ctx)
	if s.audit != nil {
		s.audit.Record(ctx, viewer, models.AuditActionScheduleDelete, id, nil)
	}
	return nil
}

// Prefill loads an existing schedule and maps it onto the entry form.
func (s *ScheduleEntryService) Prefill(ctx context.Context, refs ReferenceLookup, id models.ID) (*dto.ScheduleEntryPrefill, error) {
	detail, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	form, unresolved := s.builder.Prefill(*detail, refs)
	if len(unresolved) > 0 {
		s.logger.Debug("schedule prefill left fields unset",
			zap.String("schedule_id", id.String()),
			zap.Strings("fields", unresolved),
		)
	}
	return &dto.ScheduleEntryPrefill{
		Form:       form,
		Options:    s.resolver.Resolve(refs, form.Selection()),
		Unresolved: unresolved,
	}, nil
}

// Options derives the dependent option lists for the given parent selections.
func (s *ScheduleEntryService) Options(refs ReferenceLookup, req dto.CascadeRequest) models.CascadeOptions {
	var sel models.FormSelection
	sel.SetFaculty(req.FacultyID)
	sel.SetDepartment(req.DepartmentID)
	sel.SetCorp(req.CorpID)
	return s.resolver.Resolve(refs, sel)
}

// afterMutation moves schedule reads to a new generation so the next grid
// read is fresh, then drops the lists of older generations.
func (s *ScheduleEntryService) afterMutation(ctx context.Context) {
	_ = s.cache.Bump(ctx, scheduleGenerationKey)
	_ = s.cache.Invalidate(ctx, "schedules:*")
}

func submissionKey(viewer models.Viewer, form dto.ScheduleEntryForm) string {
	payload, _ := json.Marshal(form)
	return viewer.ID.String() + "|" + viewer.Name + "|" + string(payload)
}
