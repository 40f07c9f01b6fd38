package dto

import (
	"bytes"
	"encoding/json"

	"github.com/noah-isme/timetable-console/internal/models"
)

// IDList decodes either a single id or an array of ids.
type IDList []models.ID

// UnmarshalJSON accepts "1", 1, [1, 2] and null.
func (l *IDList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ids []models.ID
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		out := make([]models.ID, 0, len(ids))
		for _, id := range ids {
			if !id.IsZero() {
				out = append(out, id)
			}
		}
		*l = out
		return nil
	}
	var id models.ID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	if id.IsZero() {
		*l = nil
		return nil
	}
	*l = IDList{id}
	return nil
}

// ScheduleEntryForm is the schedule entry being created or edited. A
// non-empty ID puts the form in edit mode.
type ScheduleEntryForm struct {
	ID               models.ID `json:"id,omitempty"`
	FacultyID        models.ID `json:"faculty_id"`
	DepartmentID     models.ID `json:"department_id"`
	GroupIDs         IDList    `json:"group_id" validate:"required,min=1,dive,required"`
	CorpID           models.ID `json:"corp_id"`
	RoomID           models.ID `json:"room_id"`
	LessonTypeID     models.ID `json:"lesson_type_id"`
	LessonTypeHourID models.ID `json:"lesson_type_hour_id"`
	HourID           models.ID `json:"hour_id"`
	SemesterID       models.ID `json:"semester_id"`
	WeekTypeID       models.ID `json:"week_type_id"`
	DayID            models.ID `json:"day_id"`
	UserID           models.ID `json:"user_id"`
	DisciplineID     models.ID `json:"discipline_id"`
}

// IsEdit reports whether the form targets an existing record.
func (f ScheduleEntryForm) IsEdit() bool { return !f.ID.IsZero() }

// FanOut splits a multi-group form into one form per group with every other field identical.
func (f ScheduleEntryForm) FanOut() []ScheduleEntryForm {
	out := make([]ScheduleEntryForm, 0, len(f.GroupIDs))
	for _, g := range f.GroupIDs {
		single := f
		single.GroupIDs = IDList{g}
		out = append(out, single)
	}
	return out
}

// entryFields is the snapshot shared by create and update calls.
type entryFields struct {
	FacultyID        models.ID `json:"faculty_id"`
	DepartmentID     models.ID `json:"department_id"`
	CorpID           models.ID `json:"corp_id"`
	RoomID           models.ID `json:"room_id"`
	LessonTypeID     models.ID `json:"lesson_type_id"`
	LessonTypeHourID models.ID `json:"lesson_type_hour_id"`
	HourID           models.ID `json:"hour_id"`
	SemesterID       models.ID `json:"semester_id"`
	WeekTypeID       models.ID `json:"week_type_id"`
	DayID            models.ID `json:"day_id"`
	UserID           models.ID `json:"user_id"`
	DisciplineID     models.ID `json:"discipline_id"`
}

// CreateSchedulePayload is the POST /api/schedules body. group_id carries every selected group.
type CreateSchedulePayload struct {
	entryFields
	GroupID []models.ID `json:"group_id"`
}

// UpdateSchedulePayload is the PUT /api/schedules/{id} body.
type UpdateSchedulePayload struct {
	entryFields
	GroupID models.ID `json:"group_id"`
}

func (f ScheduleEntryForm) fields() entryFields {
	return entryFields{
		FacultyID:        f.FacultyID,
		DepartmentID:     f.DepartmentID,
		CorpID:           f.CorpID,
		RoomID:           f.RoomID,
		LessonTypeID:     f.LessonTypeID,
		LessonTypeHourID: f.LessonTypeHourID,
		HourID:           f.HourID,
		SemesterID:       f.SemesterID,
		WeekTypeID:       f.WeekTypeID,
		DayID:            f.DayID,
		UserID:           f.UserID,
		DisciplineID:     f.DisciplineID,
	}
}

// CreatePayload snapshots the form for a create call.
func (f ScheduleEntryForm) CreatePayload() CreateSchedulePayload {
	groups := make([]models.ID, len(f.GroupIDs))
	copy(groups, f.GroupIDs)
	return CreateSchedulePayload{entryFields: f.fields(), GroupID: groups}
}

// UpdatePayload snapshots the form for an update call.
func (f ScheduleEntryForm) UpdatePayload() UpdateSchedulePayload {
	var group models.ID
	if len(f.GroupIDs) > 0 {
		group = f.GroupIDs[0]
	}
	return UpdateSchedulePayload{entryFields: f.fields(), GroupID: group}
}

// Selection projects the cascading levels of the form.
func (f ScheduleEntryForm) Selection() models.FormSelection {
	sel := models.FormSelection{
		Faculty:    models.Select(f.FacultyID),
		Department: models.Select(f.DepartmentID),
		Discipline: models.Select(f.DisciplineID),
		Teacher:    models.Select(f.UserID),
		Corp:       models.Select(f.CorpID),
		Room:       models.Select(f.RoomID),
	}
	if len(f.GroupIDs) > 0 {
		sel.Group = models.Select(f.GroupIDs[0])
	}
	return sel
}

// ScheduleEntryResult is returned after a successful submit.
type ScheduleEntryResult struct {
	Mode     string          `json:"mode"`
	ID       models.ID       `json:"id,omitempty"`
	Groups   int             `json:"groups"`
	Response json.RawMessage `json:"response,omitempty"`
}

// ScheduleEntryPrefill is the edit form recovered from an existing schedule.
type ScheduleEntryPrefill struct {
	Form       ScheduleEntryForm     `json:"form"`
	Options    models.CascadeOptions `json:"options"`
	Unresolved []string              `json:"unresolved,omitempty"`
}

// CascadeRequest carries the parent selections to derive options for.
type CascadeRequest struct {
	FacultyID    models.ID `json:"faculty_id"`
	DepartmentID models.ID `json:"department_id"`
	CorpID       models.ID `json:"corp_id"`
}
