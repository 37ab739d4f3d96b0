// Package tiles keeps a local WebP cache of an upstream slippy-map tile layer.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/metrics"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// ErrOutOfRange is returned for coordinates outside the tile pyramid.
var ErrOutOfRange = errors.New("tile out of range")

// TileCoordinate represents a specific tile.
type TileCoordinate struct {
	Z, X, Y int
}

// Stats summarizes a prefetch run.
type Stats struct {
	Cached  int
	Missing int
	Failed  int
}

// Cache downloads upstream tiles on demand and stores them as WebP.
type Cache struct {
	client      *http.Client
	group       singleflight.Group
	URLTemplate string
	BaseDir     string
	UserAgent   string
	MaxZoom     int
	Quality     float32
}

// NewCache creates a tile cache rooted at baseDir.
func NewCache(client *http.Client, urlTemplate, baseDir string, maxZoom int) *Cache {
	if client == nil {
		client = http.DefaultClient
	}

	return &Cache{
		client:      client,
		URLTemplate: urlTemplate,
		BaseDir:     baseDir,
		MaxZoom:     maxZoom,
		Quality:     80,
	}
}

// Valid reports whether t lies inside the pyramid up to MaxZoom.
func (c *Cache) Valid(t TileCoordinate) bool {
	if t.Z < 0 || t.Z > c.MaxZoom {
		return false
	}
	n := 1 << t.Z

	return t.X >= 0 && t.Y >= 0 && t.X < n && t.Y < n
}

// Path returns the cache file of a tile.
func (c *Cache) Path(t TileCoordinate) string {
	return filepath.Join(c.BaseDir, strconv.Itoa(t.Z), strconv.Itoa(t.X), strconv.Itoa(t.Y)+".webp")
}

// Fetch makes sure a tile is cached and returns its path.
// ok is false when the upstream has no usable image for the tile.
func (c *Cache) Fetch(ctx context.Context, t TileCoordinate, force bool) (path string, ok bool, err error) {
	if !c.Valid(t) {
		return "", false, ErrOutOfRange
	}

	path = c.Path(t)
	if !force {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			metrics.TileCacheTotal.WithLabelValues("hit").Inc()
			return path, true, nil
		}
	}

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		return c.downloadAndConvert(ctx, t, path)
	})
	if err != nil {
		metrics.TileCacheTotal.WithLabelValues("error").Inc()
		return "", false, err
	}

	ok = v.(bool)
	if ok {
		metrics.TileCacheTotal.WithLabelValues("miss").Inc()
	} else {
		metrics.TileCacheTotal.WithLabelValues("empty").Inc()
	}

	return path, ok, nil
}

func (c *Cache) downloadAndConvert(ctx context.Context, t TileCoordinate, outPath string) (bool, error) {
	url := BuildURL(c.URLTemplate, t)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Trace().Str("url", url).Msg("Tile not found (404)")
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status code %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	img, _, err := image.Decode(bytes.NewReader(bodyBytes))
	if err != nil {
		log.Trace().Err(err).Str("url", url).Msg("Failed to decode image")
		return false, nil
	}

	// Filter out empty/1px tiles often returned by map servers for OOB areas
	if img.Bounds().Dx() <= 1 {
		log.Trace().Str("url", url).Msg("Filtered empty tile")
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".tile-*")
	if err != nil {
		return false, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := webp.Encode(tmp, img, &webp.Options{Lossless: false, Quality: c.Quality}); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return false, err
	}

	return true, nil
}

// Prefetch caches every tile covering the circle for zoom levels minZoom..maxZoom.
func (c *Cache) Prefetch(ctx context.Context, center geo.Position, radiusMeters float64, minZoom, maxZoom, concurrency int, force bool) Stats {
	if maxZoom > c.MaxZoom {
		maxZoom = c.MaxZoom
	}
	if concurrency <= 0 {
		concurrency = 8
	}

	var total Stats
	for z := minZoom; z <= maxZoom; z++ {
		if ctx.Err() != nil {
			break
		}

		minX, minY, maxX, maxY := geo.TileRange(center, radiusMeters, z)
		coords := make([]TileCoordinate, 0, (maxX-minX+1)*(maxY-minY+1))
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				coords = append(coords, TileCoordinate{Z: z, X: x, Y: y})
			}
		}

		log.Debug().Int("zoom", z).Int("count", len(coords)).Msg("Processing zoom level")

		st := c.processBatch(ctx, concurrency, coords, force)
		total.Cached += st.Cached
		total.Missing += st.Missing
		total.Failed += st.Failed
	}

	return total
}

type result struct {
	Coord TileCoordinate
	Valid bool
	Err   error
}

func (c *Cache) processBatch(ctx context.Context, concurrency int, tiles []TileCoordinate, force bool) Stats {
	jobs := make(chan TileCoordinate, len(tiles))
	results := make(chan result, len(tiles))

	for _, t := range tiles {
		jobs <- t
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				if ctx.Err() != nil {
					results <- result{Coord: t, Err: ctx.Err()}
					continue
				}
				_, ok, err := c.Fetch(ctx, t, force)
				if err != nil {
					log.Trace().
						Err(err).
						Str("url", BuildURL(c.URLTemplate, t)).
						Msg("Failed to download tile")
				}
				results <- result{Coord: t, Valid: ok, Err: err}
			}
		}()
	}
	wg.Wait()
	close(results)

	var st Stats
	for res := range results {
		switch {
		case res.Err != nil:
			st.Failed++
		case res.Valid:
			st.Cached++
		default:
			st.Missing++
		}
	}

	return st
}

// BuildURL expands {z}, {x}, {y}, {tms_y} and {s} in a tile URL template.
func BuildURL(tpl string, c TileCoordinate) string {
	s := strings.ReplaceAll(tpl, "{z}", strconv.Itoa(c.Z))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(c.X))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(c.Y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << c.Z) - 1
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(maxCoord-c.Y))
	}
	if strings.Contains(s, "{s}") {
		s = strings.ReplaceAll(s, "{s}", string(rune('a'+(c.X+c.Y)%3)))
	}

	return s
}

// TransparentTile returns an empty 256px WebP tile used for missing tiles.
func TransparentTile() ([]byte, error) {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
