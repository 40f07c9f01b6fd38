package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/repository"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
)

type profileRepository interface {
	Current(ctx context.Context) (*models.Profile, error)
}

// SessionService turns a backend bearer token into a Viewer.
type SessionService struct {
	repo           profileRepository
	cache          *CacheService
	ttl            time.Duration
	superAdminRole string
	logger         *zap.Logger
	parser         *jwt.Parser
	now            func() time.Time
}

// NewSessionService constructs the service.
func NewSessionService(repo profileRepository, cache *CacheService, ttl time.Duration, superAdminRole string, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:           repo,
		cache:          cache,
		ttl:            ttl,
		superAdminRole: superAdminRole,
		logger:         logger,
		parser:         jwt.NewParser(),
		now:            time.Now,
	}
}

// Resolve returns the viewer owning token. JWTs that are already expired are
// rejected without a backend round trip; opaque tokens are always checked
// against the profile endpoint.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Viewer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.inspect(token); err != nil {
		return nil, err
	}

	key := "profiles:" + tokenDigest(token)
	var cached models.Viewer
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	profile, err := s.repo.Current(repository.WithAuthToken(ctx, token))
	if err != nil {
		return nil, err
	}
	viewer := models.NewViewer(*profile, s.superAdminRole)
	_ = s.cache.Set(ctx, key, viewer, s.ttl)
	return &viewer, nil
}

func (s *SessionService) inspect(token string) error {
	claims := jwt.RegisteredClaims{}
	if _, _, err := s.parser.ParseUnverified(token, &claims); err != nil {
		// not a JWT; the backend decides
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(s.now()) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	}
	return nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
