package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/noah-isme/timetable-console/internal/models"
)

// ReferenceRepository reads lookup collections from the backend.
type ReferenceRepository struct {
	client *BackendClient
}

// NewReferenceRepository builds the repository.
func NewReferenceRepository(client *BackendClient) *ReferenceRepository {
	return &ReferenceRepository{client: client}
}

// List fetches GET /api/{collection}. Bare arrays and {"data": [...]} wrappers are both accepted.
func (r *ReferenceRepository) List(ctx context.Context, collection models.Collection) ([]models.Reference, error) {
	path := "/api/" + string(collection)
	var raw json.RawMessage
	if err := r.client.call(ctx, http.MethodGet, path, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	payload := unwrap(raw, "data", string(collection))
	var records []models.Reference
	if len(payload) == 0 || string(payload) == "null" {
		return records, nil
	}
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return records, nil
}
