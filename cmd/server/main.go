package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/api"
	"github.com/biomatch-server/internal/cache"
	"github.com/biomatch-server/internal/config"
	"github.com/biomatch-server/internal/database"
	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/metrics"
	"github.com/biomatch-server/internal/notify"
	"github.com/biomatch-server/internal/review"
	"github.com/biomatch-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	reviewStore, closeStore, err := openReviewStore(ctx, configManager, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var storeOpts []cache.StoreOption
	if cfg.Cache.RedisURL != "" {
		tier, err := cache.NewRedisTier(ctx, cfg.Cache)
		if err != nil {
			return fmt.Errorf("connecting result cache: %w", err)
		}
		defer tier.Close()
		storeOpts = append(storeOpts, cache.WithResultTier(tier))
	}
	store := cache.NewStore(cfg.Cache.MaxItems, cfg.Cache.DefaultTTL, logger, storeOpts...)

	notifier, err := notify.New(ctx, cfg.Notify, logger)
	if err != nil {
		return fmt.Errorf("creating notifier: %w", err)
	}
	if closer, ok := notifier.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	m := metrics.New()
	engine := service.NewEngine(cfg.Matching, logger, service.WithObserver(m))

	server := api.NewServer(cfg, api.Dependencies{
		Engine:   engine,
		Store:    store,
		Reviews:  review.NewService(reviewStore, logger),
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
	})

	logger.WithFields(logrus.Fields{
		"host":         cfg.Server.Host,
		"port":         cfg.Server.Port,
		"review_store": cfg.Review.Driver,
		"notifier":     cfg.Notify.Driver,
	}).Info("Starting biomatch server")

	return server.Start(ctx)
}

// openReviewStore opens the configured review queue store and returns its cleanup
func openReviewStore(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (review.Store, func(), error) {
	cfg := configManager.GetConfig()

	if cfg.Review.Driver != "postgres" {
		store, err := review.NewSQLiteStore(cfg.Review.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite review store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}

	if cfg.Review.AutoMigrate {
		if err := migrate(configManager.GetDatabaseURL(), cfg.Review, logger); err != nil {
			return nil, nil, err
		}
	}

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := review.NewPostgresStore(db.Pool, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

func migrate(databaseURL string, cfg domain.ReviewConfig, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(databaseURL, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up()
}
