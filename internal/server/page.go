package server

import (
	"bytes"
	"encoding/json"
	"text/template"

	"github.com/woozymasta/parcelmap/assets"
	"github.com/woozymasta/parcelmap/internal/config"
	"github.com/woozymasta/parcelmap/internal/interaction"
	"github.com/woozymasta/parcelmap/internal/view"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// PageData fills the index template.
type PageData struct {
	CSS      string
	JS       string
	SVG      string
	Settings string
}

// pageSettings is the one-time client setup baked into the page.
type pageSettings struct {
	Marker        config.Marker      `json:"marker"`
	TileURL       string             `json:"tile_url"`
	Attribution   string             `json:"attribution"`
	Units         []interaction.Unit `json:"units"`
	RadiusOptions []int              `json:"radius_options"`
	MaxZoom       int                `json:"max_zoom"`
}

func minifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}

// BuildPage renders the minified single page application.
func BuildPage(cfg *config.Config, opts view.Options) ([]byte, error) {
	m := minifier()

	cssMin, err := m.String("text/css", assets.Style)
	if err != nil {
		return nil, err
	}

	jsMin, err := m.String("text/javascript", assets.Script)
	if err != nil {
		return nil, err
	}

	svgMin, err := m.String("image/svg+xml", assets.Favicon)
	if err != nil {
		return nil, err
	}

	settings, err := json.Marshal(pageSettings{
		Marker:        cfg.Marker,
		TileURL:       opts.TileURL,
		Attribution:   opts.Attribution,
		Units:         []interaction.Unit{interaction.UnitKm, interaction.UnitMile},
		RadiusOptions: interaction.RadiusOptions,
		MaxZoom:       cfg.Tiles.ZoomLimit,
	})
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("index").Parse(assets.IndexTemplate)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, PageData{
		CSS:      cssMin,
		JS:       jsMin,
		SVG:      svgMin,
		Settings: string(settings),
	})
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := m.Minify("text/html", &out, &buf); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
