package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// Schedule anchors a group's timetable within a faculty and department.
type Schedule struct {
	ID             ID       `json:"id"`
	GroupName      string   `json:"group_name"`
	FacultyName    string   `json:"faculty_name"`
	DepartmentName string   `json:"department_name"`
	Lessons        []Lesson `json:"lessons"`
}

// Lesson is a single timetabled occurrence. A nil or empty WeekTypeName
// means the lesson happens every week.
type Lesson struct {
	ScheduleID     ID      `json:"schedule_id"`
	DayName        string  `json:"day_name"`
	HourName       string  `json:"hour_name"`
	DisciplineName string  `json:"discipline_name"`
	UserName       string  `json:"user_name"`
	CorpName       string  `json:"corp_name"`
	RoomName       string  `json:"room_name"`
	LessonTypeName string  `json:"lesson_type_name"`
	Year           string  `json:"year"`
	SemesterNum    string  `json:"semester_num"`
	WeekTypeName   *string `json:"week_type_name"`
}

// UnmarshalJSON tolerates numeric year and semester values.
func (l *Lesson) UnmarshalJSON(data []byte) error {
	type plain Lesson
	var aux struct {
		plain
		Year        ID `json:"year"`
		SemesterNum ID `json:"semester_num"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = Lesson(aux.plain)
	l.Year = aux.Year.String()
	l.SemesterNum = aux.SemesterNum.String()
	return nil
}

// WeekKind classifies a lesson's week type.
type WeekKind string

const (
	WeekEvery   WeekKind = "every"
	WeekUpper   WeekKind = "upper"
	WeekLower   WeekKind = "lower"
	WeekUnknown WeekKind = "unknown"
)

// WeekNames maps backend week type names onto the upper/lower split.
type WeekNames struct {
	Upper string
	Lower string
}

// Kind resolves the lesson's week kind. Names are compared case-insensitively.
func (n WeekNames) Kind(l Lesson) WeekKind {
	if l.WeekTypeName == nil {
		return WeekEvery
	}
	name := strings.TrimSpace(*l.WeekTypeName)
	switch {
	case name == "":
		return WeekEvery
	case strings.EqualFold(name, n.Upper):
		return WeekUpper
	case strings.EqualFold(name, n.Lower):
		return WeekLower
	default:
		return WeekUnknown
	}
}

// ScheduleDetail is the single-schedule payload used to pre-populate the
// edit form. Id fields are optional; when the backend sends them they are
// preferred over the denormalised names.
type ScheduleDetail struct {
	ID               ID     `json:"id"`
	FacultyID        ID     `json:"faculty_id"`
	FacultyName      string `json:"faculty_name"`
	DepartmentID     ID     `json:"department_id"`
	DepartmentName   string `json:"department_name"`
	GroupID          ID     `json:"group_id"`
	GroupName        string `json:"group_name"`
	CorpID           ID     `json:"corp_id"`
	CorpName         string `json:"corp_name"`
	RoomID           ID     `json:"room_id"`
	RoomName         string `json:"room_name"`
	LessonTypeID     ID     `json:"lesson_type_id"`
	LessonTypeName   string `json:"lesson_type_name"`
	LessonTypeHourID ID     `json:"lesson_type_hour_id"`
	LessonTypeHour   string `json:"lesson_type_hour_name"`
	HourID           ID     `json:"hour_id"`
	HourName         string `json:"hour_name"`
	SemesterID       ID     `json:"semester_id"`
	SemesterName     string `json:"semester_name"`
	WeekTypeID       ID     `json:"week_type_id"`
	WeekTypeName     string `json:"week_type_name"`
	DayID            ID     `json:"day_id"`
	DayName          string `json:"day_name"`
	UserID           ID     `json:"user_id"`
	UserName         string `json:"user_name"`
	DisciplineID     ID     `json:"discipline_id"`
	DisciplineName   string `json:"discipline_name"`
}

// ScheduleMap is the backend's keyed schedule listing.
type ScheduleMap map[string]Schedule

// List flattens the map into a slice ordered by id. Every entry appears
// exactly once; the map key fills in a missing schedule id.
func (m ScheduleMap) List() []Schedule {
	out := make([]Schedule, 0, len(m))
	for key, s := range m {
		if s.ID.IsZero() {
			s.ID = ID(key)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ID == out[j].ID {
			return false
		}
		return out[i].ID.Less(out[j].ID)
	})
	return out
}
