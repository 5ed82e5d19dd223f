package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexivanou/geoquery/internal/cache"
	"github.com/alexivanou/geoquery/internal/config"
	"github.com/alexivanou/geoquery/internal/fuzzy"
	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/ranking"
	"github.com/alexivanou/geoquery/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service provides business logic for the API
type Service struct {
	cityRepo       repository.CityRepository
	cfg            config.SearchConfig
	storageTimeout time.Duration

	matcher *fuzzy.Matcher
	ranker  *ranking.Ranker
	cache   *cache.ResultCache // nil when caching is disabled
	flights singleflight.Group

	logger *zap.Logger
}

// NewService creates a new service instance.
// Every storage call is bounded by storageTimeout when it is positive.
func NewService(
	cityRepo repository.CityRepository,
	cfg config.SearchConfig,
	storageTimeout time.Duration,
	logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		cityRepo:       cityRepo,
		cfg:            cfg,
		storageTimeout: storageTimeout,
		matcher:        fuzzy.NewMatcher(cfg.FuzzyThreshold),
		ranker: ranking.NewRanker(ranking.Options{
			LocationAware:  cfg.LocationAwareEnabled,
			CountryBoost:   cfg.CountryBoost,
			DistanceWeight: cfg.DistanceWeight,
		}),
		logger: logger,
	}

	if cfg.MemoryCachingEnabled {
		c, err := cache.New(cfg.CacheSize, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		s.cache = c
	}

	return s, nil
}

// InvalidateCache drops every cached search result, e.g. after a data import
func (s *Service) InvalidateCache() {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateAll()
	s.logger.Info("Search cache invalidated")
}

// CacheStats returns cache counters; the bool is false when caching is disabled
func (s *Service) CacheStats() (cache.Stats, bool) {
	if s.cache == nil {
		return cache.Stats{}, false
	}
	return s.cache.Stats(), true
}

// Capabilities reports what the storage backend was built with
func (s *Service) Capabilities() repository.Capabilities {
	return s.cityRepo.Capabilities()
}

// storageContext bounds a single storage call
func (s *Service) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storageTimeout)
}

// storageError wraps a repository error, surfacing deadlines as model.ErrTimeout
func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, model.ErrTimeout) {
		return fmt.Errorf("failed to %s: %w: %w", op, model.ErrTimeout, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
