// Package config handles configuration loading and shared data structures.
package config

import (
	"os"
	"time"

	"github.com/woozymasta/parcelmap/internal/geo"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
type Config struct {
	Position   geo.Position  `yaml:"default_position"`
	Catalog    Catalog       `yaml:"catalog"`
	Geocoder   Geocoder      `yaml:"geocoder"`
	Marker     Marker        `yaml:"marker"`
	Tiles      Tiles         `yaml:"tiles"`
	Zoom       int           `yaml:"zoom,omitempty"`
	SessionTTL time.Duration `yaml:"session_ttl,omitempty"`
}

// Catalog configures the parcel catalog client and the bundled demo catalog.
type Catalog struct {
	// empty endpoint points the client at this server's demo catalog
	Endpoint string        `yaml:"endpoint,omitempty"`
	Fixture  string        `yaml:"fixture,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Delay    time.Duration `yaml:"delay,omitempty"`
	NoDemo   bool          `yaml:"no_demo,omitempty"`
}

// Geocoder configures place search and its cache.
type Geocoder struct {
	Endpoint  string        `yaml:"endpoint,omitempty"`
	UserAgent string        `yaml:"user_agent,omitempty"`
	Redis     Redis         `yaml:"redis,omitempty"`
	CacheTTL  time.Duration `yaml:"cache_ttl,omitempty"`
	CacheSize int           `yaml:"cache_size,omitempty"`
}

// Redis enables the shared geocode cache when Addr is set.
type Redis struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Tiles configures the base layer and the local tile cache.
type Tiles struct {
	Upstream    string `yaml:"upstream,omitempty"`
	CacheDir    string `yaml:"cache_dir,omitempty"`
	Attribution string `yaml:"attribution,omitempty"`
	// direct serves tiles from the upstream without the local cache
	Direct    bool `yaml:"direct,omitempty"`
	ZoomLimit int  `yaml:"zoom,omitempty"`
}

// Marker holds the position marker icon assets.
type Marker struct {
	IconURL       string `yaml:"icon_url,omitempty" json:"icon_url"`
	IconRetinaURL string `yaml:"icon_retina_url,omitempty" json:"icon_retina_url"`
	ShadowURL     string `yaml:"shadow_url,omitempty" json:"shadow_url"`
}

const leafletImages = "https://unpkg.com/leaflet@1.9.4/dist/images/"

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Position.Lat == 0 && c.Position.Lng == 0 {
		c.Position = geo.Position{Lat: 31.5497, Lng: 74.3436}
	}
	if c.Zoom <= 0 {
		c.Zoom = 13
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}

	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = 15 * time.Second
	}

	if c.Geocoder.Endpoint == "" {
		c.Geocoder.Endpoint = "https://nominatim.openstreetmap.org"
	}
	if c.Geocoder.UserAgent == "" {
		c.Geocoder.UserAgent = "parcelmap/1.0"
	}
	if c.Geocoder.CacheTTL <= 0 {
		c.Geocoder.CacheTTL = 24 * time.Hour
	}
	if c.Geocoder.CacheSize <= 0 {
		c.Geocoder.CacheSize = 1024
	}
	if c.Geocoder.Redis.Prefix == "" {
		c.Geocoder.Redis.Prefix = "parcelmap:geocode:"
	}

	if c.Tiles.Upstream == "" {
		c.Tiles.Upstream = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	}
	if c.Tiles.CacheDir == "" {
		c.Tiles.CacheDir = "tiles"
	}
	if c.Tiles.Attribution == "" {
		c.Tiles.Attribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`
	}
	if c.Tiles.ZoomLimit <= 0 {
		c.Tiles.ZoomLimit = 19
	}

	if c.Marker.IconURL == "" {
		c.Marker.IconURL = leafletImages + "marker-icon.png"
	}
	if c.Marker.IconRetinaURL == "" {
		c.Marker.IconRetinaURL = leafletImages + "marker-icon-2x.png"
	}
	if c.Marker.ShadowURL == "" {
		c.Marker.ShadowURL = leafletImages + "marker-shadow.png"
	}
}
