package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// Location modes for LOCATION_MODE.
const (
	LocationNone    = "none"
	LocationStatic  = "static"
	LocationIP      = "ip"
	LocationSession = "session"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	BaseURL         string
	FetchTimeout    time.Duration
	CacheTTL        time.Duration
	AutoRefresh     time.Duration
	DefaultRadiusKm int
	DefaultLimit    int
	BreakerEnabled  bool

	LocationMode  string
	LocationLat   float64
	LocationLon   float64
	IPLocateURL   string
	LocateTimeout time.Duration
	LocateMaxAge  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins        []string
	RateLimitPerMinute int
}

// FromEnv builds a Config from environment variables and validates it.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		BaseURL:         GetEnv("TRENDING_BASE_URL", "http://localhost:8080"),
		FetchTimeout:    GetEnvDuration("TRENDING_TIMEOUT", 8*time.Second),
		CacheTTL:        GetEnvDuration("CACHE_TTL", 5*time.Minute),
		AutoRefresh:     GetEnvDuration("AUTO_REFRESH", 5*time.Minute),
		DefaultRadiusKm: GetEnvInt("DEFAULT_RADIUS_KM", 10),
		DefaultLimit:    GetEnvInt("DEFAULT_LIMIT", 8),
		BreakerEnabled:  GetEnvBool("BREAKER_ENABLED", true),

		LocationMode:  strings.ToLower(GetEnv("LOCATION_MODE", LocationNone)),
		LocationLat:   GetEnvFloat("LOCATION_LAT", 0),
		LocationLon:   GetEnvFloat("LOCATION_LON", 0),
		IPLocateURL:   GetEnv("IP_LOCATE_URL", "http://ip-api.com/json"),
		LocateTimeout: GetEnvDuration("LOCATE_TIMEOUT", 5*time.Second),
		LocateMaxAge:  GetEnvDuration("LOCATE_MAX_AGE", 60*time.Second),

		RedisAddr:     GetEnv("REDIS_ADDR", ""),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),

		CORSOrigins:        GetEnvSlice("CORS_ORIGINS", []string{"*"}),
		RateLimitPerMinute: GetEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("TRENDING_BASE_URL must be set")
	}
	switch c.LocationMode {
	case LocationNone, LocationStatic, LocationIP, LocationSession:
	default:
		return fmt.Errorf("LOCATION_MODE %q: want none, static, ip or session", c.LocationMode)
	}
	if c.LocationMode == LocationStatic {
		if c.LocationLat < -90 || c.LocationLat > 90 || c.LocationLon < -180 || c.LocationLon > 180 {
			return fmt.Errorf("LOCATION_LAT/LOCATION_LON out of range: %v,%v", c.LocationLat, c.LocationLon)
		}
	}
	if c.CacheTTL <= 0 || c.AutoRefresh <= 0 || c.FetchTimeout <= 0 {
		return fmt.Errorf("CACHE_TTL, AUTO_REFRESH and TRENDING_TIMEOUT must be positive")
	}
	return nil
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat is GetEnvInt for float64 values.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvBool accepts the values understood by strconv.ParseBool.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration parses values like "90s" or "5m".
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// GetEnvSlice splits a comma-separated value, trimming blanks.
func GetEnvSlice(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
