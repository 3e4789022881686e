package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trending-coordinator/internal/platform/metrics"
	"trending-coordinator/internal/trending"
	"trending-coordinator/internal/view"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trending coordinator and its live view server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	store, closeStore := openSession(ctx, cfg, log)
	defer closeStore()

	coord := trending.NewCoordinator(trending.Options{
		Fetcher:         buildFetcher(cfg, store, log, met),
		Locator:         buildLocator(cfg, store),
		Session:         store,
		CacheTTL:        cfg.CacheTTL,
		RefreshInterval: cfg.AutoRefresh,
		LocateTimeout:   cfg.LocateTimeout,
		RadiusKm:        cfg.DefaultRadiusKm,
		Limit:           cfg.DefaultLimit,
		Log:             log.With(slog.String("component", "coordinator")),
		Metrics:         met,
	})
	coord.Initialize()
	defer coord.Dispose()

	h := view.NewHandler(coord, log, met)
	router := view.NewRouter(h, view.RouterOptions{
		Log:                log,
		Metrics:            met,
		CORSOrigins:        cfg.CORSOrigins,
		MutationsPerMinute: cfg.RateLimitPerMinute,
		ScrapeHook:         func() { met.SetCacheEntries(coord.CacheLen()) },
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("trending_base_url", cfg.BaseURL),
			slog.String("location_mode", cfg.LocationMode),
			slog.Duration("cache_ttl", cfg.CacheTTL),
			slog.Duration("auto_refresh", cfg.AutoRefresh),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")

		// Closing subscriptions lets live view handlers return.
		coord.Dispose()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		return err
	}
	log.Info("server stopped")
	return nil
}
