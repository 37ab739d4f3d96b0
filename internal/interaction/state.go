// Package interaction holds the per-session map interaction state machine:
// place search, search circle placement, radius search and parcel selection.
package interaction

import (
	"errors"

	"github.com/woozymasta/parcelmap/internal/catalog"
	"github.com/woozymasta/parcelmap/internal/geo"
)

// Unit is the linear unit of the search radius.
type Unit string

// Supported radius units.
const (
	UnitKm   Unit = "km"
	UnitMile Unit = "mile"
)

// Meters per radius unit.
const (
	metersPerKm   = 1000.0
	metersPerMile = 1609.34
)

// RadiusOptions are the selectable radius values. 0 means unselected.
var RadiusOptions = []int{1, 2, 3, 4, 5}

// User-visible conditions.
var (
	ErrEmptyQuery       = errors.New("enter a location to search")
	ErrLocationNotFound = errors.New("location not found")
	ErrNoCenter         = errors.New("click on the map to set a central point")
	ErrRadiusRequired   = errors.New("select a search radius")
	ErrInvalidRadius    = errors.New("radius must be one of 1-5")
	ErrInvalidUnit      = errors.New("unit must be km or mile")
	ErrSearchInProgress = errors.New("a search is already in progress")
	ErrSearchSuperseded = errors.New("search area changed while the search was running")
	ErrNoSuchParcel     = errors.New("no such parcel")
	ErrRequestFailed    = catalog.ErrRequestFailed
)

// NoticeOutsideCircle is shown after a click outside the search circle.
const NoticeOutsideCircle = "You clicked outside the circle. Please select a new radius to search."

// Phase is the conceptual state derived from the orthogonal flags.
type Phase string

// Phases of an interaction session.
const (
	PhaseNoCircle               Phase = "no_circle"
	PhaseCircleUnlockedNoRadius Phase = "circle_no_radius"
	PhaseCircleWithRadiusReady  Phase = "circle_ready"
	PhaseLoading                Phase = "loading"
	PhaseResultsShown           Phase = "results_shown"
)

// ClickOutcome tells how a map click was interpreted.
type ClickOutcome int

// Map click outcomes.
const (
	CircleEstablished ClickOutcome = iota
	ClickInside
	CircleReplaced
)

func (o ClickOutcome) String() string {
	switch o {
	case CircleEstablished:
		return "established"
	case ClickInside:
		return "inside"
	case CircleReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Circle is the user-defined search area.
type Circle struct {
	Center geo.Position `json:"center"`
	Unit   Unit         `json:"unit"`
	Radius int          `json:"radius"`
	Locked bool         `json:"locked"`
}

// Meters returns the radius in meters, 0 when no radius is selected.
func (c *Circle) Meters() float64 {
	if c == nil {
		return 0
	}

	return ToMeters(c.Radius, c.Unit)
}

// ToMeters converts a radius value in unit to meters.
func ToMeters(value int, unit Unit) float64 {
	if unit == UnitMile {
		return float64(value) * metersPerMile
	}

	return float64(value) * metersPerKm
}

// ValidRadius reports whether v is a selectable radius or the unselected sentinel.
func ValidRadius(v int) bool {
	if v == 0 {
		return true
	}
	for _, o := range RadiusOptions {
		if o == v {
			return true
		}
	}

	return false
}

// ValidUnit reports whether u is a supported unit.
func ValidUnit(u Unit) bool {
	return u == UnitKm || u == UnitMile
}

// State is the aggregate owned by a Controller.
type State struct {
	Circle        *Circle               `json:"circle,omitempty"`
	Parcels       *geo.ParcelCollection `json:"parcels,omitempty"`
	Selected      *geo.ParcelFeature    `json:"selected,omitempty"`
	ActiveIndex   *int                  `json:"active_index,omitempty"`
	LocationLabel string                `json:"location_label,omitempty"`
	Position      geo.Position          `json:"position"`
	Loading       bool                  `json:"loading"`
}

// Phase derives the conceptual phase of the state.
func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.Circle == nil:
		return PhaseNoCircle
	case s.Parcels != nil:
		return PhaseResultsShown
	case s.Circle.Radius == 0:
		return PhaseCircleUnlockedNoRadius
	default:
		return PhaseCircleWithRadiusReady
	}
}

// RadiusMeters returns the current circle radius in meters, 0 without circle or radius.
func (s State) RadiusMeters() float64 {
	return s.Circle.Meters()
}

// clone returns a copy that shares only immutable data.
func (s State) clone() State {
	out := s
	if s.Circle != nil {
		c := *s.Circle
		out.Circle = &c
	}
	if s.ActiveIndex != nil {
		i := *s.ActiveIndex
		out.ActiveIndex = &i
	}

	return out
}
