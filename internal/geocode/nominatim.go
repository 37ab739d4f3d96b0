// Package geocode resolves place names into coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Result is one geocoding match. X is the longitude, Y the latitude.
type Result struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Geocoder looks up a free-text place name.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Nominatim queries an OpenStreetMap Nominatim search endpoint.
type Nominatim struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

// Internal structures for JSON parsing
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatim creates a Nominatim geocoder for the given base URL.
func NewNominatim(endpoint, userAgent string, client *http.Client) *Nominatim {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Nominatim{
		client:    client,
		endpoint:  strings.TrimRight(endpoint, "/") + "/search",
		userAgent: userAgent,
	}
}

// Search returns the places matching query in provider ranking order.
func (n *Nominatim) Search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("geocode decode: %w", err)
	}

	results := make([]Result, 0, len(places))
	for _, p := range places {
		lat, errLat := strconv.ParseFloat(p.Lat, 64)
		lon, errLon := strconv.ParseFloat(p.Lon, 64)
		if errLat != nil || errLon != nil {
			log.Trace().Str("label", p.DisplayName).Msg("Skipping place with invalid coordinates")
			continue
		}
		results = append(results, Result{X: lon, Y: lat, Label: p.DisplayName})
	}

	log.Debug().Str("query", query).Int("results", len(results)).Msg("Geocode lookup finished")
	return results, nil
}
