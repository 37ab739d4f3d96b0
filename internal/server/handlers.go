// Package server handles HTTP requests and middleware.
package server

import (
	"fmt"
	"hash/crc32"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/woozymasta/parcelmap/internal/metrics"
	"github.com/woozymasta/parcelmap/internal/tiles"

	"github.com/rs/zerolog/log"
)

const etagCap = 64

func metricsHandler() http.Handler { return metrics.Handler() }

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleHealth reports liveness.
func (s *ServerContext) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "ok sessions=%d\n", s.Sessions.Len())
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"%x-%x"`, len(s.IndexHTML), crc32.ChecksumIEEE(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleTile serves a cached WebP tile, filling the cache from the upstream.
// Tiles the upstream does not have are answered with a transparent tile.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	coord, ok := parseTile(r.PathValue("z"), r.PathValue("x"), r.PathValue("y"))
	if !ok || !s.Tiles.Valid(coord) {
		http.NotFound(w, r)
		return
	}

	path, found, err := s.Tiles.Fetch(r.Context(), coord, false)
	if err != nil {
		log.Warn().
			Err(err).
			Int("z", coord.Z).
			Int("x", coord.X).
			Int("y", coord.Y).
			Msg("Tile fetch failed")
		http.Error(w, "tile unavailable", http.StatusBadGateway)
		return
	}

	if found && s.serveFile(w, r, path, "image/webp") {
		return
	}

	// cache transparent tile
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.TransparentTile)
}

func parseTile(z, x, y string) (tiles.TileCoordinate, bool) {
	y, ok := strings.CutSuffix(y, ".webp")
	if !ok {
		return tiles.TileCoordinate{}, false
	}

	var c tiles.TileCoordinate
	var err error
	if c.Z, err = strconv.Atoi(z); err != nil {
		return c, false
	}
	if c.X, err = strconv.Atoi(x); err != nil {
		return c, false
	}
	if c.Y, err = strconv.Atoi(y); err != nil {
		return c, false
	}

	return c, true
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}
