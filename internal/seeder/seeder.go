package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/repository"
	"go.uber.org/zap"
)

// Seeder imports parsed cities into a repository
type Seeder struct {
	parser *Parser
	repo   repository.CityRepository
	logger *zap.Logger
}

// New creates a seeder writing through repo
func New(parser *Parser, repo repository.CityRepository, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{parser: parser, repo: repo, logger: logger}
}

// Run parses the data file and upserts every accepted city
func (s *Seeder) Run(ctx context.Context) (ParseStats, error) {
	start := time.Now()
	imported := 0

	stats, err := s.parser.ParseCities(func(batch []model.City) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.repo.BulkInsertCities(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert cities: %w", err)
		}
		imported += len(batch)
		s.logger.Info("Imported batch", zap.Int("batch", len(batch)), zap.Int("total", imported))
		return nil
	})
	if err != nil {
		return stats, err
	}

	s.logger.Info("City import finished",
		zap.Int("rows", stats.Rows),
		zap.Int("imported", stats.Accepted),
		zap.Int("filtered", stats.Filtered),
		zap.Int("invalid", stats.Invalid),
		zap.Duration("duration", time.Since(start)),
	)
	return stats, nil
}

// SeedIfEmpty runs the import only when the repository holds no cities.
// It reports whether an import happened.
func (s *Seeder) SeedIfEmpty(ctx context.Context) (bool, error) {
	empty, err := repository.IsDatabaseEmpty(ctx, s.repo)
	if err != nil {
		return false, fmt.Errorf("failed to check database: %w", err)
	}
	if !empty {
		s.logger.Info("Database already contains data, skipping import")
		return false, nil
	}
	if _, err := s.Run(ctx); err != nil {
		return false, err
	}
	return true, nil
}
