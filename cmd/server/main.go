package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdimtricp/cinesearch/internal/api"
	"github.com/kdimtricp/cinesearch/internal/boltstore"
	"github.com/kdimtricp/cinesearch/internal/cachestore"
	"github.com/kdimtricp/cinesearch/internal/config"
	"github.com/kdimtricp/cinesearch/internal/database"
	"github.com/kdimtricp/cinesearch/internal/logging"
	"github.com/kdimtricp/cinesearch/internal/metrics"
	"github.com/kdimtricp/cinesearch/internal/search"
	"github.com/kdimtricp/cinesearch/internal/task"
	"github.com/kdimtricp/cinesearch/internal/tmdb"
	"github.com/kdimtricp/cinesearch/internal/trending"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, logCloser, err := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatal("Failed to set up logging:", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if !cfg.HasCredential() {
		logger.Warn("TMDB_API_KEY is not set; search fails and trending serves only cached entries")
	}

	m := metrics.New()
	client := tmdb.NewClient(cfg.TMDbAPIKey,
		tmdb.WithBaseURL(cfg.TMDbBaseURL),
		tmdb.WithImageBaseURL(cfg.TMDbImageBaseURL),
	)
	runner := task.NewRunner(logger,
		task.WithTimeout(cfg.TaskTimeout),
		task.WithObserver(m),
	)

	searchResolver := search.NewResolver(client, store, runner, logger, m)
	trendingResolver := trending.NewResolver(client, store, runner, logger,
		trending.WithLimit(cfg.TrendingLimit),
		trending.WithPersistLimit(cfg.PersistLimit),
		trending.WithMetrics(m),
	)

	app, err := api.NewApp(searchResolver, trendingResolver, client, m, logger)
	if err != nil {
		return err
	}
	app.CORSOrigins = cfg.CORSOrigins

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", cfg.DBType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	// Counter writes still in flight get the rest of the window to land.
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background tasks did not drain", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStore returns the configured cache store. Closing it releases the
// underlying database as well.
func openStore(cfg *config.Config, logger *slog.Logger) (cachestore.Store, error) {
	switch cfg.DBType {
	case "memory":
		logger.Info("using in-memory cache store")
		return cachestore.NewMemory(), nil

	case "bolt":
		logger.Info("using bolt cache store", "path", cfg.DBPath)
		store, err := boltstore.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return store, nil

	default:
		dbConfig := cfg.Database()
		db, err := database.NewDB(dbConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}

		if dbConfig.Type == "postgres" {
			logger.Info("using postgres cache store",
				"host", dbConfig.Host, "port", dbConfig.Port, "name", dbConfig.Name)
		} else {
			logger.Info("using sqlite cache store", "path", dbConfig.SQLitePath)
		}

		logger.Info("running database migrations", "path", cfg.MigrationsPath)
		if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return &dbStore{TrendingRepo: database.NewTrendingRepo(db), db: db}, nil
	}
}

// dbStore ties the repository to the connection it owns.
type dbStore struct {
	*database.TrendingRepo
	db *database.DB
}

func (s *dbStore) Close() error {
	return s.db.Close()
}
