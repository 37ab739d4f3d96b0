package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/geocode"
	"github.com/woozymasta/parcelmap/internal/metrics"

	"github.com/rs/zerolog"
)

// Catalog fetches parcels inside a circle.
type Catalog interface {
	SearchByRadius(ctx context.Context, center geo.Position, radiusMeters float64) (geo.ParcelCollection, error)
}

// Geocoder resolves a place name.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Result, error)
}

// Controller owns one InteractionState and serializes every event on it.
// Only the radius search and the geocode lookup wait on the network; the
// lock is released while they do.
type Controller struct {
	catalog  Catalog
	geocoder Geocoder
	log      zerolog.Logger
	state    State
	unit     Unit
	epoch    uint64
	mu       sync.Mutex
}

// New creates a controller centered on start with no circle.
func New(catalog Catalog, geocoder Geocoder, start geo.Position, logger zerolog.Logger) *Controller {
	return &Controller{
		catalog:  catalog,
		geocoder: geocoder,
		log:      logger,
		unit:     UnitKm,
		state:    State{Position: start},
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.clone()
}

// RadiusMeters returns the selected radius converted to meters.
func (c *Controller) RadiusMeters() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.RadiusMeters()
}

// Search geocodes query and moves the map to the first match.
// A match discards the circle and any results; a miss leaves state untouched.
func (c *Controller) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}

	results, err := c.geocoder.Search(ctx, query)
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		c.log.Error().Err(err).Str("query", query).Msg("Geocode lookup failed")
		return fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(results) == 0 {
		metrics.GeocodeRequestsTotal.WithLabelValues("not_found").Inc()
		c.log.Info().Str("query", query).Msg("Location not found")
		return ErrLocationNotFound
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("found").Inc()

	first := results[0]

	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.state.Position = geo.Position{Lat: first.Y, Lng: first.X}
	c.state.LocationLabel = first.Label
	c.resetArea()
	c.state.Circle = nil

	c.log.Info().
		Str("query", query).
		Str("label", first.Label).
		Float64("lat", first.Y).
		Float64("lng", first.X).
		Msg("Moved to location")

	return nil
}

// Click handles a click on the map surface.
func (c *Controller) Click(pos geo.Position) ClickOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	circle := c.state.Circle
	if circle == nil {
		c.state.Circle = &Circle{Center: pos, Unit: c.unit, Locked: true}
		c.log.Debug().Float64("lat", pos.Lat).Float64("lng", pos.Lng).Msg("Search circle established")
		return CircleEstablished
	}

	if geo.PointInCircle(pos, &circle.Center, circle.Meters()) {
		return ClickInside
	}

	c.epoch++
	c.state.Circle = &Circle{Center: pos, Unit: circle.Unit, Locked: true}
	c.resetArea()

	c.log.Debug().Float64("lat", pos.Lat).Float64("lng", pos.Lng).Msg("Search circle replaced, results cleared")
	return CircleReplaced
}

// SelectRadius sets the radius value of the current circle.
func (c *Controller) SelectRadius(value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editable(); err != nil {
		return err
	}
	if value == 0 || !ValidRadius(value) {
		return ErrInvalidRadius
	}

	c.state.Circle.Radius = value
	return nil
}

// SelectUnit sets the radius unit of the current circle.
func (c *Controller) SelectUnit(unit Unit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editable(); err != nil {
		return err
	}
	if !ValidUnit(unit) {
		return ErrInvalidUnit
	}

	c.state.Circle.Unit = unit
	c.unit = unit
	return nil
}

// SearchByRadius fetches the parcels inside the current circle.
// Only one search runs at a time. Results that arrive after the area was
// invalidated are discarded.
func (c *Controller) SearchByRadius(ctx context.Context) error {
	c.mu.Lock()

	switch {
	case c.state.Circle == nil:
		c.mu.Unlock()
		metrics.RadiusSearchesTotal.WithLabelValues("rejected").Inc()
		return ErrNoCenter
	case c.state.Circle.Radius == 0:
		c.mu.Unlock()
		metrics.RadiusSearchesTotal.WithLabelValues("rejected").Inc()
		return ErrRadiusRequired
	case c.state.Loading:
		c.mu.Unlock()
		metrics.RadiusSearchesTotal.WithLabelValues("rejected").Inc()
		return ErrSearchInProgress
	}

	c.state.Loading = true
	epoch := c.epoch
	center := c.state.Circle.Center
	meters := c.state.Circle.Meters()
	c.mu.Unlock()

	c.log.Info().
		Float64("lat", center.Lat).
		Float64("lng", center.Lng).
		Float64("radius_m", meters).
		Msg("Radius search started")

	fc, err := c.catalog.SearchByRadius(ctx, center, meters)

	return c.finishSearch(epoch, fc, err)
}

func (c *Controller) finishSearch(epoch uint64, fc geo.ParcelCollection, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Loading = false

	if epoch != c.epoch {
		metrics.RadiusSearchesTotal.WithLabelValues("superseded").Inc()
		c.log.Debug().Msg("Discarded radius search result for an outdated area")
		return ErrSearchSuperseded
	}

	if err != nil {
		metrics.RadiusSearchesTotal.WithLabelValues("failed").Inc()
		c.log.Error().Err(err).Msg("Radius search failed")
		if !errors.Is(err, ErrRequestFailed) {
			err = fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		return err
	}

	metrics.RadiusSearchesTotal.WithLabelValues("ok").Inc()
	c.state.Parcels = &fc
	c.reconcileSelection()

	c.log.Info().Int("parcels", len(fc.Features)).Msg("Radius search finished")
	return nil
}

// SelectParcel makes feature the selected parcel. The active index is
// resolved by gml_id, so any copy of a feature matches.
func (c *Controller) SelectParcel(feature geo.ParcelFeature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selectLocked(feature)
}

// SelectIndex selects the parcel at index i of the current collection.
func (c *Controller) SelectIndex(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Parcels == nil || i < 0 || i >= len(c.state.Parcels.Features) {
		return ErrNoSuchParcel
	}

	c.selectLocked(c.state.Parcels.Features[i])
	return nil
}

func (c *Controller) selectLocked(feature geo.ParcelFeature) {
	c.state.Selected = &feature

	if i := c.state.Parcels.IndexOf(feature.ID()); i >= 0 {
		c.state.ActiveIndex = &i
	}

	pos, ok := geo.FirstCoordinate(feature.Shape())
	if !ok {
		c.log.Debug().Str("gml_id", feature.ID()).Msg("Parcel has no usable coordinate, map not moved")
		return
	}
	c.state.Position = pos
}

// ClearSelection closes the detail panel. The active index stays highlighted.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Selected = nil
}

// editable checks the preconditions shared by radius and unit changes.
func (c *Controller) editable() error {
	if c.state.Circle == nil {
		return ErrNoCenter
	}
	if c.state.Loading {
		return ErrSearchInProgress
	}

	return nil
}

// resetArea drops the radius, the results and the selection.
func (c *Controller) resetArea() {
	if c.state.Circle != nil {
		c.state.Circle.Radius = 0
	}
	c.state.Parcels = nil
	c.state.Selected = nil
	c.state.ActiveIndex = nil
}

// reconcileSelection keeps the active index pointing at the selected parcel
// after the collection was replaced.
func (c *Controller) reconcileSelection() {
	if c.state.Selected == nil {
		c.state.ActiveIndex = nil
		return
	}

	i := c.state.Parcels.IndexOf(c.state.Selected.ID())
	if i < 0 {
		c.state.Selected = nil
		c.state.ActiveIndex = nil
		return
	}
	c.state.ActiveIndex = &i
}
