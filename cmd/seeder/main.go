package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexivanou/geoquery/internal/config"
	"github.com/alexivanou/geoquery/internal/database"
	"github.com/alexivanou/geoquery/internal/repository"
	"github.com/alexivanou/geoquery/internal/seeder"
	"go.uber.org/zap"
)

func main() {
	var (
		file      = flag.String("file", "", "CSV or zip file to import (defaults to DATA_DIR/DATA_FILE)")
		batchSize = flag.Int("batch-size", 0, "Rows per insert batch (defaults to SEEDER_BATCH_SIZE)")
		force     = flag.Bool("force", false, "Import even when the database already has cities")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if *file != "" {
		cfg.Seeder.File = *file
	}
	if *batchSize > 0 {
		cfg.Seeder.BatchSize = *batchSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Connected to database", zap.String("type", string(cfg.DB.Type)))

	if err := database.Migrate(ctx, cfg.DB); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	repos := repository.NewRepositories(db, cfg.DB.Type, cfg.Search.AdvancedDBEnabled)
	s := seeder.New(seeder.NewParser(cfg.Seeder, logger), repos.City, logger)

	if !*force {
		if _, err := s.SeedIfEmpty(ctx); err != nil {
			logger.Fatal("Import failed", zap.Error(err))
		}
		return
	}

	if _, err := s.Run(ctx); err != nil {
		logger.Fatal("Import failed", zap.Error(err))
	}
	logger.Info("Data import completed successfully")
}
