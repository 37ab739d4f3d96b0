package view

import (
	"fmt"

	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/interaction"
)

// Overlay colors.
const (
	colorActive   = "orange"
	colorParcel   = "green"
	colorFill     = "lightgreen"
	colorCircle   = "orange"
	colorCircleBg = "white"
)

const hintPickCenter = "Click on the map to select a center point for your search"

// MapView drives the map surface.
type MapView struct {
	Marker      *Marker        `json:"marker,omitempty"`
	Circle      *CircleOverlay `json:"circle,omitempty"`
	Parcels     *ParcelOverlay `json:"parcels,omitempty"`
	TileURL     string         `json:"tile_url"`
	Attribution string         `json:"attribution"`
	Controls    Controls       `json:"controls"`
	Center      geo.Position   `json:"center"`
	Zoom        int            `json:"zoom"`
}

// Marker is the location pin.
type Marker struct {
	Label    string       `json:"label"`
	Coords   string       `json:"coords"`
	Position geo.Position `json:"position"`
}

// CircleOverlay is the search area drawn on the map.
type CircleOverlay struct {
	Style        PathStyle    `json:"style"`
	RadiusLabel  string       `json:"radius_label"`
	CenterLabel  string       `json:"center_label"`
	Center       geo.Position `json:"center"`
	RadiusMeters float64      `json:"radius_m"`
}

// ParcelOverlay is the fetched parcels with one style per feature.
type ParcelOverlay struct {
	Data   *geo.ParcelCollection `json:"data"`
	Styles []PathStyle           `json:"styles"`
}

// PathStyle mirrors Leaflet path options.
type PathStyle struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fillColor"`
	Weight      int     `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Controls describes the search form state.
type Controls struct {
	Unit          interaction.Unit `json:"unit"`
	Hint          string           `json:"hint,omitempty"`
	RadiusOptions []int            `json:"radius_options"`
	Radius        int              `json:"radius"`
	RadiusEnabled bool             `json:"radius_enabled"`
	SearchEnabled bool             `json:"search_enabled"`
}

// Map renders the map surface.
func Map(s interaction.State, opts Options) MapView {
	mv := MapView{
		Center:      s.Position,
		Zoom:        opts.Zoom,
		TileURL:     opts.TileURL,
		Attribution: opts.Attribution,
		Marker: &Marker{
			Position: s.Position,
			Label:    s.LocationLabel,
			Coords:   fmt.Sprintf("%v, %v", s.Position.Lat, s.Position.Lng),
		},
		Controls: controls(s),
	}

	if c := s.Circle; c != nil {
		mv.Circle = &CircleOverlay{
			Center:       c.Center,
			RadiusMeters: c.Meters(),
			RadiusLabel:  fmt.Sprintf("Radius: %d %s", c.Radius, c.Unit),
			CenterLabel:  fmt.Sprintf("Center: %.4f, %.4f", c.Center.Lat, c.Center.Lng),
			Style:        PathStyle{Color: colorCircle, FillColor: colorCircleBg, FillOpacity: 0.2, Weight: 2},
		}
	}

	if s.Parcels != nil {
		activeID := ""
		if s.ActiveIndex != nil && *s.ActiveIndex >= 0 && *s.ActiveIndex < s.Parcels.Len() {
			activeID = s.Parcels.Features[*s.ActiveIndex].ID()
		}

		styles := make([]PathStyle, len(s.Parcels.Features))
		for i, f := range s.Parcels.Features {
			color := colorParcel
			if activeID != "" && f.ID() == activeID {
				color = colorActive
			}
			styles[i] = PathStyle{Color: color, FillColor: colorFill, FillOpacity: 0.4, Weight: 2}
		}
		mv.Parcels = &ParcelOverlay{Data: s.Parcels, Styles: styles}
	}

	return mv
}

func controls(s interaction.State) Controls {
	c := Controls{
		RadiusOptions: interaction.RadiusOptions,
		Unit:          interaction.UnitKm,
	}

	if s.Circle == nil {
		c.Hint = hintPickCenter
		return c
	}

	c.Radius = s.Circle.Radius
	c.Unit = s.Circle.Unit
	c.RadiusEnabled = !s.Loading
	c.SearchEnabled = s.Circle.Radius != 0 && !s.Loading

	return c
}
