package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
)

// ErrLoadDiscarded is returned when a load finished after its cache was
// dismissed, its context was cancelled, or a newer load superseded it.
var ErrLoadDiscarded = errors.New("reference load discarded")

type referenceSource interface {
	List(ctx context.Context, collection models.Collection) ([]models.Reference, error)
}

type referenceFailureRecorder interface {
	RecordReferenceFailure(collection string)
}

// ReferenceCache holds the lookup collections of one schedule editing
// session. Collections are fetched concurrently and independently.
type ReferenceCache struct {
	source   referenceSource
	logger   *zap.Logger
	metrics  referenceFailureRecorder
	parallel int

	mu          sync.RWMutex
	generation  uint64
	dismissed   bool
	collections map[models.Collection][]models.Reference
	failures    map[models.Collection]string
}

// NewReferenceCache builds an empty cache. parallel bounds concurrent fetches; zero means unbounded.
func NewReferenceCache(source referenceSource, logger *zap.Logger, parallel int) *ReferenceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceCache{
		source:      source,
		logger:      logger,
		parallel:    parallel,
		collections: make(map[models.Collection][]models.Reference),
		failures:    make(map[models.Collection]string),
	}
}

type loadResult struct {
	records []models.Reference
	err     error
}

// Load fetches the collections (all of them when none are given). A failed
// collection is left empty and reported through Failures; it never blocks
// the others. Results are only applied if the load is still current.
func (c *ReferenceCache) Load(ctx context.Context, collections ...models.Collection) error {
	if len(collections) == 0 {
		collections = models.AllCollections
	}

	c.mu.Lock()
	if c.dismissed {
		c.mu.Unlock()
		return ErrLoadDiscarded
	}
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	results := make([]loadResult, len(collections))
	var g errgroup.Group
	if c.parallel > 0 {
		g.SetLimit(c.parallel)
	}
	for i, collection := range collections {
		i, collection := i, collection
		g.Go(func() error {
			records, err := c.source.List(ctx, collection)
			results[i] = loadResult{records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dismissed || c.generation != gen || ctx.Err() != nil {
		return ErrLoadDiscarded
	}
	for i, collection := range collections {
		res := results[i]
		if res.err != nil {
			c.collections[collection] = []models.Reference{}
			c.failures[collection] = res.err.Error()
			c.logger.Warn("reference collection load failed",
				zap.String("collection", string(collection)),
				zap.Error(res.err),
			)
			if c.metrics != nil {
				c.metrics.RecordReferenceFailure(string(collection))
			}
			continue
		}
		if res.records == nil {
			res.records = []models.Reference{}
		}
		c.collections[collection] = res.records
		delete(c.failures, collection)
	}
	return nil
}

// Dismiss ends the session; in-flight and later loads are discarded.
func (c *ReferenceCache) Dismiss() {
	c.mu.Lock()
	c.dismissed = true
	c.generation++
	c.mu.Unlock()
}

// List returns a copy of a loaded collection, empty when not loaded.
func (c *ReferenceCache) List(collection models.Collection) []models.Reference {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.collections[collection]
	out := make([]models.Reference, len(src))
	copy(out, src)
	return out
}

// Failures lists the collections that failed in the latest load, in collection order.
func (c *ReferenceCache) Failures() []dto.LoadFailure {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []dto.LoadFailure
	for _, collection := range models.AllCollections {
		if msg, ok := c.failures[collection]; ok {
			out = append(out, dto.LoadFailure{Collection: collection, Message: msg})
		}
	}
	return out
}

// Snapshot returns every loaded collection and the failures.
func (c *ReferenceCache) Snapshot() dto.ReferenceSnapshot {
	c.mu.RLock()
	loaded := make([]models.Collection, 0, len(c.collections))
	for collection := range c.collections {
		loaded = append(loaded, collection)
	}
	c.mu.RUnlock()

	snapshot := dto.ReferenceSnapshot{Collections: make(map[models.Collection][]models.Reference, len(loaded))}
	for _, collection := range loaded {
		snapshot.Collections[collection] = c.List(collection)
	}
	snapshot.Failures = c.Failures()
	return snapshot
}

type referenceRepository interface {
	List(ctx context.Context, collection models.Collection) ([]models.Reference, error)
}

// ReferenceService fronts the backend reference endpoints with the shared
// cache and hands out per-session ReferenceCaches.
type ReferenceService struct {
	repo     referenceRepository
	cache    *CacheService
	metrics  *MetricsService
	ttl      time.Duration
	parallel int
	logger   *zap.Logger
}

// NewReferenceService constructs the service.
func NewReferenceService(repo referenceRepository, cache *CacheService, metrics *MetricsService, ttl time.Duration, parallel int, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{repo: repo, cache: cache, metrics: metrics, ttl: ttl, parallel: parallel, logger: logger}
}

// List returns one collection, served from the shared cache when possible.
func (s *ReferenceService) List(ctx context.Context, collection models.Collection) ([]models.Reference, error) {
	key := "references:" + string(collection)
	var cached []models.Reference
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	records, err := s.repo.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, records, s.ttl)
	return records, nil
}

// NewSession returns an empty cache backed by this service.
func (s *ReferenceService) NewSession() *ReferenceCache {
	cache := NewReferenceCache(s, s.logger, s.parallel)
	if s.metrics != nil {
		cache.metrics = s.metrics
	}
	return cache
}

// Session returns a cache with the given collections (all when none) loaded.
func (s *ReferenceService) Session(ctx context.Context, collections ...models.Collection) (*ReferenceCache, error) {
	cache := s.NewSession()
	if err := cache.Load(ctx, collections...); err != nil {
		return nil, err
	}
	return cache, nil
}
