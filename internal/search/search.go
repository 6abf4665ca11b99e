package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// DefaultLimit bounds typeahead result pages.
const DefaultLimit = 10

// Upstream is the slice of the network API the search service needs.
type Upstream interface {
	SearchUsers(ctx context.Context, query string, limit int) ([]model.Profile, error)
}

// Service answers typeahead queries, consulting the cache before the
// upstream API.
type Service struct {
	upstream Upstream
	cache    *Cache
	logger   *slog.Logger
}

// NewService creates a search service. The cache is owned by the caller.
func NewService(upstream Upstream, cache *Cache, logger *slog.Logger) *Service {
	return &Service{upstream: upstream, cache: cache, logger: logger}
}

// Search returns profiles matching the query. Results are cached per
// normalized query; a cache hit never touches the upstream.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]model.Profile, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	if query == "" {
		return nil, nil
	}

	if profiles, ok := s.cache.Get(query); ok {
		s.logger.Debug("search cache hit", "query", query)
		return clamp(profiles, limit), nil
	}

	profiles, err := s.upstream.SearchUsers(ctx, query, DefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	s.cache.Put(query, profiles)
	return clamp(profiles, limit), nil
}

func clamp(profiles []model.Profile, limit int) []model.Profile {
	if len(profiles) > limit {
		return profiles[:limit]
	}
	return profiles
}
