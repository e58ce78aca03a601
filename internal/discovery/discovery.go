// Package discovery merges the static model registry with the ids the
// upstream actually offers, caching the merge for a short interval.
package discovery

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"antigravity2api-go/internal/credential"
	"antigravity2api-go/internal/models"
	"antigravity2api-go/internal/upstream"
)

const defaultCacheTTL = 10 * time.Minute

// Service answers model list queries. Discovery is best-effort: any failure
// falls back to the cached merge or the static registry.
type Service struct {
	client *upstream.Client
	pool   *credential.Pool
	ttl    time.Duration

	mu        sync.Mutex
	cached    []models.Model
	fetchedAt time.Time

	group singleflight.Group
	now   func() time.Time
}

func New(client *upstream.Client, pool *credential.Pool, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{client: client, pool: pool, ttl: ttl, now: time.Now}
}

// Models returns the merged model list. Concurrent cache misses collapse to
// one upstream fetch.
func (s *Service) Models(ctx context.Context) []models.Model {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		out := s.cached
		s.mu.Unlock()
		return out
	}
	s.mu.Unlock()

	merged, _, _ := s.group.Do("models", func() (any, error) {
		return s.fetch(ctx), nil
	})
	return merged.([]models.Model)
}

func (s *Service) fetch(ctx context.Context) []models.Model {
	view, err := s.pool.Acquire(ctx)
	if err != nil {
		log.WithError(err).Debug("model discovery skipped, no credential")
		return s.fallback()
	}
	ids, err := s.client.FetchModels(ctx, view.AccessToken)
	if err != nil {
		log.WithError(err).Warn("upstream model discovery failed")
		return s.fallback()
	}

	merged := models.Merge(ids)
	s.mu.Lock()
	s.cached = merged
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return merged
}

// fallback prefers a stale cache over the bare registry.
func (s *Service) fallback() []models.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached
	}
	return models.DefaultRegistry()
}
