package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"trending-coordinator/internal/platform/config"
	"trending-coordinator/internal/platform/logger"
	"trending-coordinator/internal/platform/metrics"
	"trending-coordinator/internal/session"
	"trending-coordinator/internal/trending"

	"github.com/spf13/cobra"
)

var (
	// envFile is the dotenv file loaded before reading the environment.
	envFile string

	// logLevel overrides LOG_LEVEL when set.
	logLevel string

	// logFormat overrides LOG_FORMAT when set.
	logFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "trendwatch",
	Short: "Location-aware trending videos client",
	Long: `trendwatch keeps a cached, auto-refreshing view of the trending videos
near you, fetched from the video platform's trending API.

Use "serve" to run the live view server, or "fetch" for a one-shot query.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and reports a failure once on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&envFile, "env-file", ".env",
		"Dotenv file to load; missing files are ignored",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default from LOG_LEVEL)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "",
		"Log format: json or text (default from LOG_FORMAT)",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
}

// loadConfig reads the dotenv file and environment, applying flag overrides.
func loadConfig() (config.Config, error) {
	_ = config.Load(envFile)
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return logger.NewWithWriter(w, cfg.LogLevel, cfg.LogFormat)
}

// openSession returns the Redis store when REDIS_ADDR is set and reachable,
// falling back to an in-memory store. The returned func releases it.
func openSession(ctx context.Context, cfg config.Config, log *slog.Logger) (session.Store, func()) {
	if cfg.RedisAddr == "" {
		return session.NewMemoryStore(), func() {}
	}
	store, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn("redis session store unavailable, using memory",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()))
		return session.NewMemoryStore(), func() {}
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn("close redis session store", slog.String("error", err.Error()))
		}
	}
}

// buildFetcher returns the HTTP client, behind a circuit breaker if enabled.
func buildFetcher(cfg config.Config, store session.Store, log *slog.Logger, m *metrics.Metrics) trending.Fetcher {
	var f trending.Fetcher = trending.NewClient(trending.ClientOptions{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.FetchTimeout,
		HTTPClient: &http.Client{},
		Session:    store,
		Log:        log,
	})
	if cfg.BreakerEnabled {
		f = trending.NewBreakerFetcher(f, log, m)
	}
	return f
}

// buildLocator maps LOCATION_MODE to a Locator; "none" yields nil, which the
// coordinator reports as Unavailable.
func buildLocator(cfg config.Config, store session.Store) trending.Locator {
	var loc trending.Locator
	switch cfg.LocationMode {
	case config.LocationStatic:
		loc = trending.StaticLocator{Position: trending.Location{Lat: cfg.LocationLat, Lon: cfg.LocationLon}}
	case config.LocationIP:
		loc = trending.IPLocator{URL: cfg.IPLocateURL, Client: &http.Client{}}
	case config.LocationSession:
		loc = trending.SessionLocator{Store: store}
	default:
		return nil
	}
	return trending.NewMaxAgeLocator(loc, cfg.LocateMaxAge)
}
