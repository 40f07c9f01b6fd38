package service

import "github.com/noah-isme/timetable-console/internal/models"

// ReferenceLookup exposes already-loaded reference collections.
type ReferenceLookup interface {
	List(collection models.Collection) []models.Reference
}

// CascadeResolver derives dependent option lists from parent selections.
// It only reads the lookup; it never performs I/O.
type CascadeResolver struct{}

// Resolve computes every dependent option list. Lists of an unselected
// parent are empty, never stale.
func (CascadeResolver) Resolve(refs ReferenceLookup, sel models.FormSelection) models.CascadeOptions {
	opts := models.CascadeOptions{
		DepartmentsForFaculty:    []models.Reference{},
		GroupsForFaculty:         []models.Reference{},
		DisciplinesForDepartment: []models.Reference{},
		TeachersForDepartment:    []models.Reference{},
		RoomsForCorp:             []models.Reference{},
	}

	if faculty, ok := sel.Faculty.Get(); ok {
		opts.DepartmentsForFaculty = filterRefs(refs.List(models.CollectionDepartments), func(r models.Reference) bool {
			return r.FacultyID == faculty
		})
		opts.GroupsForFaculty = filterRefs(refs.List(models.CollectionGroups), func(r models.Reference) bool {
			return r.FacultyID == faculty
		})
	}

	if department, ok := sel.Department.Get(); ok {
		opts.DisciplinesForDepartment = filterRefs(refs.List(models.CollectionDisciplines), func(r models.Reference) bool {
			return r.DepartmentID == department
		})
		opts.TeachersForDepartment = filterRefs(refs.List(models.CollectionUsers), func(r models.Reference) bool {
			return r.InDepartment(department)
		})
	}

	if corp, ok := sel.Corp.Get(); ok {
		opts.RoomsForCorp = filterRefs(refs.List(models.CollectionRooms), func(r models.Reference) bool {
			return r.CorpID == corp
		})
	}

	return opts
}

func filterRefs(records []models.Reference, keep func(models.Reference) bool) []models.Reference {
	out := make([]models.Reference, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
