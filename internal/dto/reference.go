package dto

import "github.com/noah-isme/timetable-console/internal/models"

// LoadFailure reports a reference collection that could not be fetched.
type LoadFailure struct {
	Collection models.Collection `json:"collection"`
	Message    string            `json:"message"`
}

// ReferenceSnapshot is the state of a reference cache after loading.
type ReferenceSnapshot struct {
	Collections map[models.Collection][]models.Reference `json:"collections"`
	Failures    []LoadFailure                            `json:"failures,omitempty"`
}
