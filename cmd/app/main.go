package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexivanou/geoquery/internal/api"
	"github.com/alexivanou/geoquery/internal/config"
	"github.com/alexivanou/geoquery/internal/database"
	"github.com/alexivanou/geoquery/internal/repository"
	"github.com/alexivanou/geoquery/internal/seeder"
	"github.com/alexivanou/geoquery/internal/service"
	"github.com/alexivanou/geoquery/internal/stats"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Connected to database",
		zap.String("type", string(cfg.DB.Type)),
		zap.String("mode", string(cfg.Mode)),
	)

	if err := database.Migrate(ctx, cfg.DB); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	repos := repository.NewRepositories(db, cfg.DB.Type, cfg.Search.AdvancedDBEnabled)
	logger.Info("Repository ready", zap.Any("capabilities", repos.City.Capabilities()))

	svc, err := service.NewService(repos.City, cfg.Search, cfg.DB.Pool.Timeout, logger)
	if err != nil {
		logger.Fatal("Failed to create service", zap.Error(err))
	}

	if cfg.Seeder.AutoSeed {
		s := seeder.New(seeder.NewParser(cfg.Seeder, logger), repos.City, logger)
		seeded, err := s.SeedIfEmpty(ctx)
		if err != nil {
			logger.Fatal("Failed to auto-seed database", zap.Error(err))
		}
		if seeded {
			svc.InvalidateCache()
			logger.Info("Database seeded successfully")
		}
	}

	statsCollector := stats.NewCollector(db, cfg.DB, svc)
	router := api.NewRouter(svc, statsCollector, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.DB.Pool.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
