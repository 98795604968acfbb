package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/guardquote/ml-engine/internal/api"
	"github.com/guardquote/ml-engine/internal/bus"
	"github.com/guardquote/ml-engine/internal/cache"
	"github.com/guardquote/ml-engine/internal/catalog"
	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/metrics"
	"github.com/guardquote/ml-engine/internal/predictor"
	"github.com/guardquote/ml-engine/internal/pricing"
	"github.com/guardquote/ml-engine/internal/quote"
	"github.com/guardquote/ml-engine/internal/repository"
	"github.com/guardquote/ml-engine/internal/rpc"
	"github.com/guardquote/ml-engine/internal/rules"
	"github.com/guardquote/ml-engine/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and RPC APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg, a.logger)
		},
	}
}

func serve(ctx context.Context, cfg *domain.Config, logger *slog.Logger) error {
	logger.Info("starting guardquote-ml",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	logger.Info("configuration loaded",
		"profile", cfg.Profile,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"event_bus", cfg.EventBus.Type,
		"tracing", cfg.Tracing.Enabled,
	)

	recorder := metrics.New()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	logger.Info("repository initialized", "driver", cfg.Repository.Driver)

	cat, err := loadCatalog(ctx, repo)
	if err != nil {
		return err
	}
	logger.Info("reference data loaded",
		"event_types", len(cat.EventTypes()),
		"locations", len(cat.Locations()),
	)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	logger.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	logger.Info("event bus initialized", "type", cfg.EventBus.Type)

	engine := pricing.NewEngine(cat)
	predictorOpts := []predictor.Option{
		predictor.WithLogger(logger),
		predictor.WithObserver(recorder),
	}
	var p quote.Predictor
	if cfg.Model.LazyLoad {
		p = predictor.NewLazy(cfg.Model.ArtifactPath, engine, predictorOpts...)
		logger.Info("model artifact will load on first use", "path", cfg.Model.ArtifactPath)
	} else {
		p = predictor.New(cfg.Model.ArtifactPath, engine, predictorOpts...)
	}

	recommendations, err := rules.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize recommendation engine: %w", err)
	}

	svc, err := quote.NewService(p, engine, recommendations,
		quote.WithRepository(repo),
		quote.WithCache(cacheImpl, cfg.Cache.PredictionTTL),
		quote.WithEventBus(busImpl),
		quote.WithRecorder(recorder),
		quote.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	count, err := svc.ReloadRecommendationRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load recommendation rules: %w", err)
	}
	logger.Info("recommendation engine initialized", "rules_count", count)

	var quoteWorker *worker.Worker
	if cfg.Worker.Enabled {
		quoteWorker = worker.NewWorker(busImpl, svc, logger)
		if err := quoteWorker.Start(cfg.Worker.Concurrency); err != nil {
			return fmt.Errorf("failed to start quote worker: %w", err)
		}
		logger.Info("quote worker started", "concurrency", cfg.Worker.Concurrency)
	}

	restOpts := []api.Option{
		api.WithLogger(logger),
		api.WithVersion(Version),
		api.WithMetrics(recorder),
		api.WithTracing(cfg.Tracing),
	}
	if cfg.RateLimit.Enabled {
		restOpts = append(restOpts, api.WithRateLimit(cfg.RateLimit))
	}
	restServer := api.NewServer(cfg.Server, svc, restOpts...)
	rpcServer := rpc.NewServer(cfg.RPC, svc,
		rpc.WithLogger(logger),
		rpc.WithVersion(Version),
		rpc.WithTracing(cfg.Tracing),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("rest server listening", "addr", restServer.Addr())
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rest server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := rpcServer.Start(); err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		// Stop taking bus work before the transports go away
		if quoteWorker != nil {
			if err := quoteWorker.Stop(); err != nil {
				logger.Error("failed to stop quote worker", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(restServer.Shutdown(shutdownCtx), rpcServer.Shutdown(shutdownCtx))
	})

	logger.Info("guardquote-ml is ready",
		"rest", restServer.Addr(),
		"rpc", rpcServer.Addr(),
		"model", modelMode(cfg.Model, svc),
	)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("guardquote-ml shutdown complete")
	return nil
}

// modelMode reports the serving mode for the startup log. A lazy predictor
// is reported as such rather than loaded early.
func modelMode(cfg domain.ModelConfig, svc *quote.Service) string {
	if cfg.LazyLoad {
		return "lazy"
	}
	return svc.Health().Mode
}

// loadCatalog seeds the built-in reference tables and reads back the stored
// rows, so operator edits in the database take effect.
func loadCatalog(ctx context.Context, repo domain.Repository) (*catalog.Catalog, error) {
	if err := repo.SeedReferenceData(ctx, domain.DefaultEventTypes(), domain.DefaultLocations()); err != nil {
		return nil, fmt.Errorf("failed to seed reference data: %w", err)
	}
	events, err := repo.ListEventTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list event types: %w", err)
	}
	locations, err := repo.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return catalog.New(events, locations), nil
}
