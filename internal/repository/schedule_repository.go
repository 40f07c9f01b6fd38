package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
)

// ScheduleRepository reads and mutates schedules through the backend.
type ScheduleRepository struct {
	client *BackendClient
}

// NewScheduleRepository builds the repository.
func NewScheduleRepository(client *BackendClient) *ScheduleRepository {
	return &ScheduleRepository{client: client}
}

// List fetches GET /api/schedules and flattens the keyed response.
func (r *ScheduleRepository) List(ctx context.Context, filter url.Values) ([]models.Schedule, error) {
	var body struct {
		Schedules json.RawMessage `json:"schedules"`
	}
	if err := r.client.call(ctx, http.MethodGet, "/api/schedules", "/api/schedules", filter, nil, &body); err != nil {
		return nil, err
	}
	return decodeScheduleMap(body.Schedules)
}

// decodeScheduleMap accepts the keyed map; an empty map is serialised as [] by the backend.
func decodeScheduleMap(raw json.RawMessage) ([]models.Schedule, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.Schedule{}, nil
	}
	if trimmed[0] == '[' {
		var list []models.Schedule
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode schedules: %w", err)
		}
		return list, nil
	}
	var byID models.ScheduleMap
	if err := json.Unmarshal(trimmed, &byID); err != nil {
		return nil, fmt.Errorf("decode schedules: %w", err)
	}
	return byID.List(), nil
}

// Find fetches GET /api/schedules/{id}.
func (r *ScheduleRepository) Find(ctx context.Context, id models.ID) (*models.ScheduleDetail, error) {
	var body struct {
		Schedule *models.ScheduleDetail `json:"schedule"`
	}
	path := "/api/schedules/" + url.PathEscape(id.String())
	if err := r.client.call(ctx, http.MethodGet, "/api/schedules/{id}", path, nil, nil, &body); err != nil {
		return nil, err
	}
	if body.Schedule == nil {
		return nil, fmt.Errorf("schedule %s: empty response", id)
	}
	if body.Schedule.ID.IsZero() {
		body.Schedule.ID = id
	}
	return body.Schedule, nil
}

// Create issues POST /api/schedules.
func (r *ScheduleRepository) Create(ctx context.Context, payload dto.CreateSchedulePayload) (json.RawMessage, error) {
	var out json.RawMessage
	if err := r.client.call(ctx, http.MethodPost, "/api/schedules", "/api/schedules", nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update issues PUT /api/schedules/{id}.
func (r *ScheduleRepository) Update(ctx context.Context, id models.ID, payload dto.UpdateSchedulePayload) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/api/schedules/" + url.PathEscape(id.String())
	if err := r.client.call(ctx, http.MethodPut, "/api/schedules/{id}", path, nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete issues DELETE /api/schedules/{id}.
func (r *ScheduleRepository) Delete(ctx context.Context, id models.ID) error {
	path := "/api/schedules/" + url.PathEscape(id.String())
	return r.client.call(ctx, http.MethodDelete, "/api/schedules/{id}", path, nil, nil, nil)
}
