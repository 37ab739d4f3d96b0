package server

import (
	"net/http"

	"github.com/woozymasta/parcelmap/assets"
	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/session"
	"github.com/woozymasta/parcelmap/internal/tiles"
	"github.com/woozymasta/parcelmap/internal/view"

	"github.com/rs/zerolog/log"
)

// tileRoute is the local tile cache URL template handed to the page.
const tileRoute = "/tiles/{z}/{x}/{y}.webp"

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config          *config.Config
	Sessions        *session.Manager
	Tiles           *tiles.Cache
	Catalog         http.Handler
	View            view.Options
	IndexHTML       []byte
	Favicon         []byte
	TransparentTile []byte
}

// NewServerContext renders the page and prepares the handlers.
// tileCache may be nil when tiles are served straight from the upstream;
// demo may be nil when an external catalog is used.
func NewServerContext(cfg *config.Config, sessions *session.Manager, tileCache *tiles.Cache, demo http.Handler) (*ServerContext, error) {
	log.Info().
		Bool("tile_cache", tileCache != nil).
		Bool("demo_catalog", demo != nil).
		Msg("Initializing server context")

	opts := view.Options{
		TileURL:     tileRoute,
		Attribution: cfg.Tiles.Attribution,
		Zoom:        cfg.Zoom,
	}
	if tileCache == nil {
		opts.TileURL = cfg.Tiles.Upstream
	}

	index, err := BuildPage(cfg, opts)
	if err != nil {
		return nil, err
	}

	favicon, err := minifier().String("image/svg+xml", assets.Favicon)
	if err != nil {
		return nil, err
	}

	transparent, err := tiles.TransparentTile()
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("index_bytes", len(index)).
		Str("tile_url", opts.TileURL).
		Msg("Page rendered")

	return &ServerContext{
		Config:          cfg,
		Sessions:        sessions,
		Tiles:           tileCache,
		Catalog:         demo,
		View:            opts,
		IndexHTML:       index,
		Favicon:         []byte(favicon),
		TransparentTile: transparent,
	}, nil
}

// Routes registers every handler on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/state", s.HandleState)
	mux.HandleFunc("POST /api/search", s.HandleSearch)
	mux.HandleFunc("POST /api/click", s.HandleClick)
	mux.HandleFunc("POST /api/radius", s.HandleRadius)
	mux.HandleFunc("POST /api/search-radius", s.HandleSearchRadius)
	mux.HandleFunc("POST /api/select", s.HandleSelect)
	mux.HandleFunc("POST /api/close", s.HandleClose)

	if s.Catalog != nil {
		mux.Handle("/good-parcels", s.Catalog)
	}
	if s.Tiles != nil {
		mux.HandleFunc("GET /tiles/{z}/{x}/{y}", s.HandleTile)
	}

	mux.Handle("GET /metrics", metricsHandler())
	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.HandleFunc("GET /favicon.svg", s.HandleFavicon)
	mux.HandleFunc("/", s.HandleIndex)

	return mux
}
