package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/noah-isme/timetable-console/internal/models"
)

// ProfileRepository resolves the authenticated backend user.
type ProfileRepository struct {
	client *BackendClient
}

// NewProfileRepository builds the repository.
func NewProfileRepository(client *BackendClient) *ProfileRepository {
	return &ProfileRepository{client: client}
}

// Current fetches GET /api/profile using the token attached to ctx.
func (r *ProfileRepository) Current(ctx context.Context) (*models.Profile, error) {
	var raw json.RawMessage
	if err := r.client.call(ctx, http.MethodGet, "/api/profile", "/api/profile", nil, nil, &raw); err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := json.Unmarshal(unwrap(raw, "data", "user"), &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}
