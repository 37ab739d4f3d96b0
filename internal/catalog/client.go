// Package catalog talks to the parcel catalog service and serves the
// bundled demo catalog.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/metrics"

	"github.com/rs/zerolog/log"
)

// SearchPath is the catalog resource queried with a center and radius.
const SearchPath = "good-parcels"

// ErrRequestFailed marks every failed catalog round trip.
var ErrRequestFailed = errors.New("parcel request failed")

// SearchRequest is the body sent to the catalog.
type SearchRequest struct {
	Center geo.Position `json:"center"`
	Radius float64      `json:"radius"`
}

// Client queries a parcel catalog over HTTP. It keeps no state between calls.
type Client struct {
	client   *http.Client
	endpoint string
}

// NewClient creates a catalog client for the given base URL.
// A nil http.Client gets a 15s timeout default.
func NewClient(endpoint string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/") + "/" + SearchPath,
	}
}

// Endpoint returns the full search URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SearchByRadius fetches the parcels around center within radiusMeters.
func (c *Client) SearchByRadius(ctx context.Context, center geo.Position, radiusMeters float64) (geo.ParcelCollection, error) {
	start := time.Now()

	fc, err := c.search(ctx, center, radiusMeters)
	metrics.CatalogDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues("error").Inc()
		return geo.ParcelCollection{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	metrics.CatalogRequestsTotal.WithLabelValues("ok").Inc()
	return fc, nil
}

func (c *Client) search(ctx context.Context, center geo.Position, radiusMeters float64) (geo.ParcelCollection, error) {
	body, err := json.Marshal(SearchRequest{Center: center, Radius: radiusMeters})
	if err != nil {
		return geo.ParcelCollection{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return geo.ParcelCollection{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Debug().
		Str("url", c.endpoint).
		Float64("lat", center.Lat).
		Float64("lng", center.Lng).
		Float64("radius_m", radiusMeters).
		Msg("Querying parcel catalog")

	resp, err := c.client.Do(req)
	if err != nil {
		return geo.ParcelCollection{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return geo.ParcelCollection{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.ParcelCollection{}, err
	}

	fc, stats, err := Decode(data)
	if err != nil {
		return geo.ParcelCollection{}, err
	}

	if stats.Dropped > 0 {
		metrics.CatalogDroppedTotal.Add(float64(stats.Dropped))
		log.Warn().
			Int("total", stats.Total).
			Int("dropped", stats.Dropped).
			Msg("Dropped parcel records with missing fields")
	}

	log.Debug().Int("parcels", len(fc.Features)).Msg("Parcel catalog responded")
	return fc, nil
}
