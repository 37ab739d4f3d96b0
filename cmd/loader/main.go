package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/logger"
	"github.com/woozymasta/parcelmap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string  `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file (defaults are used when empty)"`
	Lat         float64 `long:"lat"                   description:"Center latitude (defaults to the configured position)"`
	Lng         float64 `long:"lng"                   description:"Center longitude (defaults to the configured position)"`
	Radius      float64 `short:"r" long:"radius"      description:"Radius around the center in meters" default:"5000"`
	MinZoom     int     `long:"min-zoom"              description:"First zoom level" default:"10"`
	MaxZoom     int     `short:"z" long:"max-zoom"    env:"ZOOM_LIMIT"  description:"Last zoom level" default:"16"`
	Concurrency int     `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrency" default:"8"`
	Force       bool    `short:"f" long:"force"       description:"Force overwrite of existing files"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		cfg, err = config.Load(opts.ConfigFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
	}

	center := cfg.Position
	if opts.Lat != 0 || opts.Lng != 0 {
		center = geo.Position{Lat: opts.Lat, Lng: opts.Lng}
	}
	if opts.Radius <= 0 {
		log.Fatal().Float64("radius", opts.Radius).Msg("Radius must be positive")
	}
	if opts.MinZoom < 0 || opts.MinZoom > opts.MaxZoom {
		log.Fatal().Int("min_zoom", opts.MinZoom).Int("max_zoom", opts.MaxZoom).Msg("Invalid zoom range")
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: 15 * time.Second,
	}

	cache := tiles.NewCache(client, cfg.Tiles.Upstream, cfg.Tiles.CacheDir, cfg.Tiles.ZoomLimit)
	cache.UserAgent = cfg.Geocoder.UserAgent

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().
		Float64("lat", center.Lat).
		Float64("lng", center.Lng).
		Float64("radius_m", opts.Radius).
		Int("min_zoom", opts.MinZoom).
		Int("max_zoom", opts.MaxZoom).
		Str("dir", cfg.Tiles.CacheDir).
		Msg("Starting loader")

	start := time.Now()
	st := cache.Prefetch(ctx, center, opts.Radius, opts.MinZoom, opts.MaxZoom, opts.Concurrency, opts.Force)

	log.Info().
		Int("cached", st.Cached).
		Int("missing", st.Missing).
		Int("failed", st.Failed).
		Dur("duration", time.Since(start)).
		Msg("Loader finished")

	if st.Failed > 0 {
		os.Exit(1)
	}
}
