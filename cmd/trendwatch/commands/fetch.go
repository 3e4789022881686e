package commands

import (
	"fmt"
	"log/slog"
	"os"

	"trending-coordinator/internal/trending"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	fetchLat    float64
	fetchLon    float64
	fetchRadius int
	fetchLimit  int
	fetchPage   int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one page of trending videos and print it as JSON",
	Long: `Fetch one page of trending videos and print it as JSON.

Without --lat/--lon the configured LOCATION_MODE is used; if that fails the
query is global.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Float64Var(&fetchLat, "lat", 0, "Latitude in decimal degrees")
	fetchCmd.Flags().Float64Var(&fetchLon, "lon", 0, "Longitude in decimal degrees")
	fetchCmd.Flags().IntVar(&fetchRadius, "radius", 0, "Search radius in km (default from DEFAULT_RADIUS_KM)")
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "Results per page (default from DEFAULT_LIMIT)")
	fetchCmd.Flags().IntVar(&fetchPage, "page", 0, "Zero-based page number")
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stderr)
	ctx := cmd.Context()

	store, closeStore := openSession(ctx, cfg, log)
	defer closeStore()

	var loc *trending.Location
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
			err := fmt.Errorf("--lat and --lon must be given together")
			return err
		}
		loc = &trending.Location{Lat: fetchLat, Lon: fetchLon}
	} else {
		res := trending.Resolve(ctx, buildLocator(cfg, store), cfg.LocateTimeout)
		log.Info("location resolved", slog.String("phase", res.Phase.String()))
		loc = res.Location
	}

	radius, limit := fetchRadius, fetchLimit
	if radius <= 0 {
		radius = cfg.DefaultRadiusKm
	}
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	q := trending.NewQuery(loc, radius, limit, fetchPage)

	fetcher := buildFetcher(cfg, store, log, nil)
	videos, err := fetcher.FetchTrending(ctx, q)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(videos)
}
