package models

import (
	"bytes"
	"encoding/json"
)

// Selection is one cascade level of the entry form: either unselected or
// holding an id. The zero value is unselected.
type Selection struct {
	id  ID
	set bool
}

// Select returns a selection holding id; an empty id yields an unselected value.
func Select(id ID) Selection {
	if id.IsZero() {
		return Selection{}
	}
	return Selection{id: id, set: true}
}

// Get returns the selected id and whether one is set.
func (s Selection) Get() (ID, bool) { return s.id, s.set }

// IsSet reports whether an id is selected.
func (s Selection) IsSet() bool { return s.set }

// ID returns the selected id or the empty id.
func (s Selection) ID() ID { return s.id }

// MarshalJSON encodes an unselected level as null.
func (s Selection) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(string(s.id))
}

// UnmarshalJSON decodes null, "" or a missing value as unselected.
func (s *Selection) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Selection{}
		return nil
	}
	var id ID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*s = Select(id)
	return nil
}

// FormSelection holds the cascading levels of the schedule entry form.
// Changing or clearing a parent clears every level that depends on it.
type FormSelection struct {
	Faculty    Selection `json:"faculty_id"`
	Department Selection `json:"department_id"`
	Group      Selection `json:"group_id"`
	Discipline Selection `json:"discipline_id"`
	Teacher    Selection `json:"user_id"`
	Corp       Selection `json:"corp_id"`
	Room       Selection `json:"room_id"`
}

// SetFaculty selects a faculty. A different faculty resets department and group.
func (f *FormSelection) SetFaculty(id ID) {
	next := Select(id)
	if next == f.Faculty {
		return
	}
	f.Faculty = next
	f.Group = Selection{}
	f.SetDepartment("")
}

// ClearFaculty unselects the faculty and its dependants.
func (f *FormSelection) ClearFaculty() { f.SetFaculty("") }

// SetDepartment selects a department. A different department resets discipline and teacher.
func (f *FormSelection) SetDepartment(id ID) {
	next := Select(id)
	if next == f.Department {
		return
	}
	f.Department = next
	f.Discipline = Selection{}
	f.Teacher = Selection{}
}

// ClearDepartment unselects the department and its dependants.
func (f *FormSelection) ClearDepartment() { f.SetDepartment("") }

// SetCorp selects a corps. A different corps resets the room.
func (f *FormSelection) SetCorp(id ID) {
	next := Select(id)
	if next == f.Corp {
		return
	}
	f.Corp = next
	f.Room = Selection{}
}

// ClearCorp unselects the corps and its room.
func (f *FormSelection) ClearCorp() { f.SetCorp("") }

// CascadeOptions are the option lists derived from the parent selections.
type CascadeOptions struct {
	DepartmentsForFaculty    []Reference `json:"departments_for_faculty"`
	GroupsForFaculty         []Reference `json:"groups_for_faculty"`
	DisciplinesForDepartment []Reference `json:"disciplines_for_department"`
	TeachersForDepartment    []Reference `json:"teachers_for_department"`
	RoomsForCorp             []Reference `json:"rooms_for_corp"`
}
