package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/repository"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
)

type profileRepoStub struct {
	profile *models.Profile
	err     error
	calls   atomic.Int32
	token   string
}

func (s *profileRepoStub) Current(ctx context.Context) (*models.Profile, error) {
	s.calls.Add(1)
	s.token = repository.AuthToken(ctx)
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func signedToken(t *testing.T, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "5",
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return signed
}

func newProfileStub() *profileRepoStub {
	return &profileRepoStub{profile: &models.Profile{
		ID:          "5",
		Name:        "Ivanov",
		Roles:       []models.NamedEntity{{Name: "teacher"}},
		Permissions: []models.NamedEntity{{Name: models.PermissionScheduleList}},
	}}
}

func TestSessionRejectsExpiredJWTWithoutBackendCall(t *testing.T) {
	repo := newProfileStub()
	svc := NewSessionService(repo, nil, time.Minute, "super-admin", nil)

	_, err := svc.Resolve(context.Background(), signedToken(t, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Equal(t, int32(0), repo.calls.Load())
}

func TestSessionResolvesValidJWT(t *testing.T) {
	repo := newProfileStub()
	svc := NewSessionService(repo, nil, time.Minute, "super-admin", nil)
	token := signedToken(t, time.Now().Add(time.Hour))

	viewer, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.ID("5"), viewer.ID)
	assert.Equal(t, "Ivanov", viewer.Name)
	assert.False(t, viewer.IsSuperAdmin)
	assert.True(t, viewer.Can(models.PermissionScheduleList))
	assert.False(t, viewer.Can(models.PermissionScheduleDelete))
	assert.Equal(t, token, repo.token)
}

func TestSessionOpaqueTokenGoesToBackend(t *testing.T) {
	repo := newProfileStub()
	repo.profile.Roles = []models.NamedEntity{{Name: "super-admin"}}
	svc := NewSessionService(repo, nil, time.Minute, "super-admin", nil)

	viewer, err := svc.Resolve(context.Background(), " 12|opaque-sanctum-token ")
	require.NoError(t, err)
	assert.True(t, viewer.IsSuperAdmin)
	assert.True(t, viewer.Can(models.PermissionScheduleDelete))
	assert.Equal(t, "12|opaque-sanctum-token", repo.token)

	repo.err = appErrors.ErrUnauthorized
	_, err = svc.Resolve(context.Background(), "revoked")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestSessionEmptyToken(t *testing.T) {
	repo := newProfileStub()
	svc := NewSessionService(repo, nil, time.Minute, "super-admin", nil)

	_, err := svc.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Equal(t, int32(0), repo.calls.Load())
}

func TestSessionCachesProfilesByTokenDigest(t *testing.T) {
	repo := newProfileStub()
	store := newMemoryCache()
	svc := NewSessionService(repo, NewCacheService(store, nil, time.Minute, nil, true), time.Minute, "super-admin", nil)

	for i := 0; i < 3; i++ {
		viewer, err := svc.Resolve(context.Background(), "opaque")
		require.NoError(t, err)
		assert.Equal(t, "Ivanov", viewer.Name)
	}
	assert.Equal(t, int32(1), repo.calls.Load())
	assert.Contains(t, store.entries, "profiles:"+tokenDigest("opaque"))
	for key := range store.entries {
		assert.NotContains(t, key, "opaque")
	}
}
