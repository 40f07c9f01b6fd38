package models

import (
	"encoding/json"
	"fmt"
)

// Collection identifies a reference list exposed by the backend.
type Collection string

const (
	CollectionFaculties       Collection = "faculties"
	CollectionDepartments     Collection = "departments"
	CollectionGroups          Collection = "groups"
	CollectionCorps           Collection = "corps"
	CollectionRooms           Collection = "rooms"
	CollectionLessonTypes     Collection = "lesson_types"
	CollectionLessonTypeHours Collection = "lesson-hours"
	CollectionHours           Collection = "hours"
	CollectionSemesters       Collection = "semesters"
	CollectionWeekTypes       Collection = "week_types"
	CollectionDays            Collection = "days"
	CollectionUsers           Collection = "users"
	CollectionDisciplines     Collection = "disciplines"

	// CollectionSchedules labels schedule list failures; it is not a reference collection.
	CollectionSchedules Collection = "schedules"
)

// AllCollections lists every collection loaded by a schedule editing session.
var AllCollections = []Collection{
	CollectionFaculties,
	CollectionDepartments,
	CollectionGroups,
	CollectionCorps,
	CollectionRooms,
	CollectionLessonTypes,
	CollectionLessonTypeHours,
	CollectionHours,
	CollectionSemesters,
	CollectionWeekTypes,
	CollectionDays,
	CollectionUsers,
	CollectionDisciplines,
}

// ParseCollection validates a collection identifier.
func ParseCollection(raw string) (Collection, error) {
	for _, c := range AllCollections {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", raw)
}

// Reference is a flat lookup record. Only the foreign keys used by the
// cascade are decoded; everything else the backend sends is ignored.
type Reference struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	FacultyID     ID     `json:"faculty_id,omitempty"`
	DepartmentID  ID     `json:"department_id,omitempty"`
	CorpID        ID     `json:"corp_id,omitempty"`
	DepartmentIDs []ID   `json:"department_ids,omitempty"`
}

// UnmarshalJSON additionally accepts users whose departments arrive as
// nested objects ("departments": [{"id": 1}]).
func (r *Reference) UnmarshalJSON(data []byte) error {
	type plain Reference
	var aux struct {
		plain
		Departments []struct {
			ID ID `json:"id"`
		} `json:"departments"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Reference(aux.plain)
	if len(r.DepartmentIDs) == 0 && len(aux.Departments) > 0 {
		r.DepartmentIDs = make([]ID, 0, len(aux.Departments))
		for _, d := range aux.Departments {
			if !d.ID.IsZero() {
				r.DepartmentIDs = append(r.DepartmentIDs, d.ID)
			}
		}
	}
	return nil
}

// InDepartment reports whether the record lists the department among its department ids.
func (r Reference) InDepartment(id ID) bool {
	for _, d := range r.DepartmentIDs {
		if d == id {
			return true
		}
	}
	return false
}

// FindByName returns the id of the first record whose name matches exactly.
func FindByName(records []Reference, name string) (ID, bool) {
	if name == "" {
		return "", false
	}
	for _, r := range records {
		if r.Name == name {
			return r.ID, true
		}
	}
	return "", false
}
