package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/parcelmap/internal/catalog"
	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/geocode"
	"github.com/woozymasta/parcelmap/internal/interaction"
	"github.com/woozymasta/parcelmap/internal/logger"
	"github.com/woozymasta/parcelmap/internal/server"
	"github.com/woozymasta/parcelmap/internal/session"
	"github.com/woozymasta/parcelmap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile      string `short:"c" long:"config"           env:"CONFIG_FILE"      description:"Path to configuration file (defaults are used when empty)"`
	Addr            string `short:"a" long:"addr"             env:"LISTEN_ADDRESS"   description:"Address to listen on"  default:"0.0.0.0"`
	CatalogEndpoint string `short:"e" long:"catalog-endpoint" env:"CATALOG_ENDPOINT" description:"Parcel catalog base URL (defaults to the built-in demo catalog)"`
	Port            int    `short:"p" long:"port"             env:"LISTEN_PORT"      description:"Port to listen on"     default:"8080"`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		cfg, err = config.Load(opts.ConfigFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
	}
	if opts.CatalogEndpoint != "" {
		cfg.Catalog.Endpoint = opts.CatalogEndpoint
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catalog
	var demo http.Handler
	if !cfg.Catalog.NoDemo {
		fixture, err := catalog.LoadFixture(cfg.Catalog.Fixture)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Catalog.Fixture).Msg("Failed to load parcel fixture")
		}
		if fixture.Stats.Dropped > 0 {
			log.Warn().
				Int("dropped", fixture.Stats.Dropped).
				Int("total", fixture.Stats.Total).
				Msg("Parcel fixture has unusable records")
		}
		demo = catalog.NewDemo(fixture, cfg.Catalog.Delay)
	}

	endpoint := cfg.Catalog.Endpoint
	if endpoint == "" {
		if demo == nil {
			log.Fatal().Msg("Catalog endpoint is required when the demo catalog is disabled")
		}
		endpoint = fmt.Sprintf("http://127.0.0.1:%d", opts.Port)
	}
	parcels := catalog.NewClient(endpoint, &http.Client{Timeout: cfg.Catalog.Timeout})

	// Geocoder
	var store geocode.Store = geocode.NewMemoryStore(cfg.Geocoder.CacheSize)
	if r := cfg.Geocoder.Redis; r.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", r.Addr).Msg("Redis unavailable, geocode cache stays in memory")
		} else {
			store = geocode.NewRedisStore(rdb, r.Prefix)
		}
		cancel()
	}
	geocoder := geocode.NewCached(
		geocode.NewNominatim(cfg.Geocoder.Endpoint, cfg.Geocoder.UserAgent, nil),
		store,
		cfg.Geocoder.CacheTTL)

	// Sessions
	sessions := session.NewManager(cfg.SessionTTL, func(id string) *interaction.Controller {
		return interaction.New(parcels, geocoder, cfg.Position, log.With().Str("session", id).Logger())
	})
	go sessions.Run(ctx)

	// Tiles
	var tileCache *tiles.Cache
	if !cfg.Tiles.Direct {
		tileCache = tiles.NewCache(&http.Client{Timeout: 15 * time.Second}, cfg.Tiles.Upstream, cfg.Tiles.CacheDir, cfg.Tiles.ZoomLimit)
		tileCache.UserAgent = cfg.Geocoder.UserAgent
	}

	srvCtx, err := server.NewServerContext(cfg, sessions, tileCache, demo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.RequestLogger(srvCtx.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", listenAddr).
		Str("catalog", parcels.Endpoint()).
		Bool("demo_catalog", demo != nil).
		Bool("tile_cache", tileCache != nil).
		Float64("lat", cfg.Position.Lat).
		Float64("lng", cfg.Position.Lng).
		Msg("Web server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Web server stopped")
}
