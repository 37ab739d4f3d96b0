package catalog

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/woozymasta/parcelmap/assets"
	"github.com/woozymasta/parcelmap/internal/geo"

	"github.com/rs/zerolog/log"
)

// Fixture is a static parcels document, kept both raw and decoded.
type Fixture struct {
	Raw     []byte
	Parcels geo.ParcelCollection
	Stats   Stats
}

// LoadFixture reads a parcels document from a file or an http(s) URL.
// An empty path selects the document bundled with the binary.
func LoadFixture(path string) (*Fixture, error) {
	if path == "" {
		return ParseFixture(assets.Parcels)
	}

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		data, err := fetchFixture(&http.Client{Timeout: 30 * time.Second}, path)
		if err != nil {
			return nil, fmt.Errorf("download fixture: %w", err)
		}
		return ParseFixture(data)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	return ParseFixture(data)
}

// ParseFixture decodes a parcels document held in memory.
func ParseFixture(data []byte) (*Fixture, error) {
	fc, stats, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	return &Fixture{Raw: data, Parcels: fc, Stats: stats}, nil
}

func fetchFixture(client *http.Client, url string) ([]byte, error) {
	log.Info().Str("source", url).Msg("Downloading parcel fixture")

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 64<<20))
}
