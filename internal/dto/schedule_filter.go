package dto

import "net/url"

// ScheduleFilterQuery narrows the schedule list on the backend. Every field
// is optional and all set fields are combined with AND.
type ScheduleFilterQuery struct {
	FacultyID    string `form:"faculty_id" json:"faculty_id,omitempty"`
	DepartmentID string `form:"department_id" json:"department_id,omitempty"`
	GroupID      string `form:"group_id" json:"group_id,omitempty"`
	CorpID       string `form:"corp_id" json:"corp_id,omitempty"`
	RoomID       string `form:"room_id" json:"room_id,omitempty"`
	LessonTypeID string `form:"lesson_type_id" json:"lesson_type_id,omitempty"`
	HourID       string `form:"hour_id" json:"hour_id,omitempty"`
	SemesterID   string `form:"semester_id" json:"semester_id,omitempty"`
	WeekTypeID   string `form:"week_type_id" json:"week_type_id,omitempty"`
	DayID        string `form:"day_id" json:"day_id,omitempty"`
	UserID       string `form:"user_id" json:"user_id,omitempty"`
	DisciplineID string `form:"discipline_id" json:"discipline_id,omitempty"`
}

// Values encodes the set fields as backend query parameters.
func (q ScheduleFilterQuery) Values() url.Values {
	values := url.Values{}
	add := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	add("faculty_id", q.FacultyID)
	add("department_id", q.DepartmentID)
	add("group_id", q.GroupID)
	add("corp_id", q.CorpID)
	add("room_id", q.RoomID)
	add("lesson_type_id", q.LessonTypeID)
	add("hour_id", q.HourID)
	add("semester_id", q.SemesterID)
	add("week_type_id", q.WeekTypeID)
	add("day_id", q.DayID)
	add("user_id", q.UserID)
	add("discipline_id", q.DisciplineID)
	return values
}

// CacheKey is a stable key fragment for the filter.
func (q ScheduleFilterQuery) CacheKey() string {
	encoded := q.Values().Encode()
	if encoded == "" {
		return "all"
	}
	return encoded
}
