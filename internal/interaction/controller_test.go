package interaction

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/woozymasta/parcelmap/internal/catalog"
	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/geocode"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
)

var lahore = geo.Position{Lat: 31.5497, Lng: 74.3436}

type fakeCatalog struct {
	onCall  func()
	err     error
	centers []geo.Position
	radii   []float64
	fc      geo.ParcelCollection
}

func (f *fakeCatalog) SearchByRadius(_ context.Context, center geo.Position, radius float64) (geo.ParcelCollection, error) {
	f.centers = append(f.centers, center)
	f.radii = append(f.radii, radius)
	if f.onCall != nil {
		f.onCall()
	}
	return f.fc, f.err
}

type blockingCatalog struct {
	started chan struct{}
	release chan struct{}
	fc      geo.ParcelCollection
}

func newBlockingCatalog(fc geo.ParcelCollection) *blockingCatalog {
	return &blockingCatalog{started: make(chan struct{}, 1), release: make(chan struct{}), fc: fc}
}

func (b *blockingCatalog) SearchByRadius(context.Context, geo.Position, float64) (geo.ParcelCollection, error) {
	b.started <- struct{}{}
	<-b.release
	return b.fc, nil
}

type fakeGeocoder struct {
	err     error
	results []geocode.Result
}

func (f *fakeGeocoder) Search(context.Context, string) ([]geocode.Result, error) {
	return f.results, f.err
}

func feature(id string, g orb.Geometry) geo.ParcelFeature {
	f := geo.ParcelFeature{Type: "Feature", Properties: geo.ParcelProperties{GmlID: id}}
	if g != nil {
		f.Geometry = geojson.NewGeometry(g)
	}
	return f
}

func square(lng, lat float64) orb.Polygon {
	return orb.Polygon{{{lng, lat}, {lng + 0.001, lat}, {lng + 0.001, lat + 0.001}, {lng, lat}}}
}

func sampleParcels() geo.ParcelCollection {
	return geo.NewParcelCollection([]geo.ParcelFeature{
		feature("PARCEL_40", square(74.30, 31.50)),
		feature("PARCEL_41", orb.MultiPolygon{square(74.31, 31.51)}),
		feature("PARCEL_42", square(74.32, 31.52)),
	})
}

func newController(cat Catalog, gc Geocoder) *Controller {
	if gc == nil {
		gc = &fakeGeocoder{}
	}
	return New(cat, gc, lahore, zerolog.Nop())
}

// northOf returns a point meters north of p.
func northOf(p geo.Position, meters float64) geo.Position {
	return geo.Position{Lat: p.Lat + meters/(geo.EarthRadius*math.Pi/180), Lng: p.Lng}
}

func TestController_InitialState(t *testing.T) {
	c := newController(&fakeCatalog{}, nil)
	s := c.Snapshot()

	if s.Position != lahore {
		t.Errorf("position = %+v", s.Position)
	}
	if s.Circle != nil || s.Parcels != nil || s.Selected != nil || s.ActiveIndex != nil || s.Loading {
		t.Errorf("unexpected initial state %+v", s)
	}
	if s.Phase() != PhaseNoCircle {
		t.Errorf("phase = %s", s.Phase())
	}
}

func TestController_FreshSessionScenario(t *testing.T) {
	fx, err := catalog.LoadFixture("")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	cat := &fakeCatalog{fc: fx.Parcels}
	c := newController(cat, nil)

	var loadingDuringCall bool
	cat.onCall = func() { loadingDuringCall = c.Snapshot().Loading }

	click := geo.Position{Lat: 31.55, Lng: 74.34}
	if got := c.Click(click); got != CircleEstablished {
		t.Fatalf("Click = %s, want established", got)
	}

	s := c.Snapshot()
	if s.Circle == nil || s.Circle.Center != click || !s.Circle.Locked || s.Circle.Radius != 0 {
		t.Fatalf("circle = %+v", s.Circle)
	}
	if s.Phase() != PhaseCircleUnlockedNoRadius {
		t.Fatalf("phase = %s", s.Phase())
	}

	if err := c.SelectRadius(2); err != nil {
		t.Fatalf("SelectRadius: %v", err)
	}
	if err := c.SelectUnit(UnitKm); err != nil {
		t.Fatalf("SelectUnit: %v", err)
	}
	if p := c.Snapshot().Phase(); p != PhaseCircleWithRadiusReady {
		t.Fatalf("phase = %s", p)
	}

	if err := c.SearchByRadius(context.Background()); err != nil {
		t.Fatalf("SearchByRadius: %v", err)
	}

	if !loadingDuringCall {
		t.Error("loading flag was not set during the catalog call")
	}

	s = c.Snapshot()
	if s.Loading {
		t.Error("loading flag still set after the search")
	}
	if len(cat.radii) != 1 || cat.radii[0] != 2000 || cat.centers[0] != click {
		t.Fatalf("catalog called with %+v / %+v", cat.centers, cat.radii)
	}
	if s.Parcels.Len() != len(fx.Parcels.Features) {
		t.Fatalf("parcels = %d, want %d", s.Parcels.Len(), len(fx.Parcels.Features))
	}
	for i := range fx.Parcels.Features {
		if s.Parcels.Features[i].ID() != fx.Parcels.Features[i].ID() {
			t.Fatalf("parcel %d = %s, want %s", i, s.Parcels.Features[i].ID(), fx.Parcels.Features[i].ID())
		}
	}
	if s.Phase() != PhaseResultsShown {
		t.Fatalf("phase = %s", s.Phase())
	}
}

func TestController_RadiusConversion(t *testing.T) {
	tests := []struct {
		unit  Unit
		value int
		want  float64
	}{
		{UnitKm, 3, 3000},
		{UnitKm, 1, 1000},
		{UnitMile, 1, 1609.34},
		{UnitMile, 5, 5 * 1609.34},
	}

	for _, tt := range tests {
		cat := &fakeCatalog{fc: sampleParcels()}
		c := newController(cat, nil)
		c.Click(lahore)
		if err := c.SelectUnit(tt.unit); err != nil {
			t.Fatalf("SelectUnit: %v", err)
		}
		if err := c.SelectRadius(tt.value); err != nil {
			t.Fatalf("SelectRadius: %v", err)
		}
		if got := c.RadiusMeters(); got != tt.want {
			t.Errorf("%d %s: RadiusMeters = %v, want %v", tt.value, tt.unit, got, tt.want)
		}
		if err := c.SearchByRadius(context.Background()); err != nil {
			t.Fatalf("SearchByRadius: %v", err)
		}
		if cat.radii[0] != tt.want {
			t.Errorf("%d %s: sent radius %v, want %v", tt.value, tt.unit, cat.radii[0], tt.want)
		}
	}
}

func TestController_ClickOutsideResetsEverything(t *testing.T) {
	c := newController(&fakeCatalog{fc: sampleParcels()}, nil)
	c.Click(lahore)
	_ = c.SelectRadius(2)
	if err := c.SearchByRadius(context.Background()); err != nil {
		t.Fatalf("SearchByRadius: %v", err)
	}
	if err := c.SelectIndex(1); err != nil {
		t.Fatalf("SelectIndex: %v", err)
	}

	far := northOf(lahore, 10000)
	if got := c.Click(far); got != CircleReplaced {
		t.Fatalf("Click = %s, want replaced", got)
	}

	s := c.Snapshot()
	if s.Circle.Center != far || !s.Circle.Locked {
		t.Errorf("circle = %+v", s.Circle)
	}
	if s.Circle.Radius != 0 {
		t.Errorf("radius = %d, want 0", s.Circle.Radius)
	}
	if s.Parcels != nil || s.Selected != nil || s.ActiveIndex != nil {
		t.Errorf("results not cleared: %+v", s)
	}
}

func TestController_ClickInsideIsNoop(t *testing.T) {
	c := newController(&fakeCatalog{fc: sampleParcels()}, nil)
	c.Click(lahore)
	_ = c.SelectRadius(2)
	_ = c.SearchByRadius(context.Background())
	before := c.Snapshot()

	if got := c.Click(northOf(lahore, 1500)); got != ClickInside {
		t.Fatalf("Click = %s, want inside", got)
	}

	after := c.Snapshot()
	if after.Circle.Center != before.Circle.Center || after.Circle.Radius != 2 || after.Parcels.Len() != 3 {
		t.Fatalf("state changed by inside click: %+v", after)
	}
}

func TestController_ClickWithoutRadiusUsesZeroFootprint(t *testing.T) {
	c := newController(&fakeCatalog{}, nil)
	c.Click(lahore)

	if got := c.Click(lahore); got != ClickInside {
		t.Fatalf("click on the center = %s, want inside", got)
	}

	next := northOf(lahore, 1)
	if got := c.Click(next); got != CircleReplaced {
		t.Fatalf("click 1m away = %s, want replaced", got)
	}
	if c.Snapshot().Circle.Center != next {
		t.Fatal("circle did not move")
	}
}

func TestController_FirstClickKeepsPreviousResults(t *testing.T) {
	c := newController(&fakeCatalog{}, nil)
	prev := sampleParcels()
	c.state.Parcels = &prev

	c.Click(lahore)

	if c.Snapshot().Parcels.Len() != 3 {
		t.Fatal("first click must not touch previous results")
	}
}

func TestController_UnitCarriesToReplacedCircle(t *testing.T) {
	c := newController(&fakeCatalog{}, nil)
	c.Click(lahore)
	_ = c.SelectUnit(UnitMile)
	c.Click(northOf(lahore, 50000))

	if u := c.Snapshot().Circle.Unit; u != UnitMile {
		t.Fatalf("unit = %s, want mile", u)
	}
}

func TestController_RadiusPreconditions(t *testing.T) {
	c := newController(&fakeCatalog{}, nil)

	if err := c.SelectRadius(2); !errors.Is(err, ErrNoCenter) {
		t.Errorf("SelectRadius without circle: %v", err)
	}
	if err := c.SelectUnit(UnitMile); !errors.Is(err, ErrNoCenter) {
		t.Errorf("SelectUnit without circle: %v", err)
	}
	if err := c.SearchByRadius(context.Background()); !errors.Is(err, ErrNoCenter) {
		t.Errorf("SearchByRadius without circle: %v", err)
	}

	c.Click(lahore)
	if err := c.SearchByRadius(context.Background()); !errors.Is(err, ErrRadiusRequired) {
		t.Errorf("SearchByRadius without radius: %v", err)
	}
	for _, v := range []int{0, 6, -1} {
		if err := c.SelectRadius(v); !errors.Is(err, ErrInvalidRadius) {
			t.Errorf("SelectRadius(%d): %v", v, err)
		}
	}
	if err := c.SelectUnit("furlong"); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("SelectUnit(furlong): %v", err)
	}
}

func TestController_SearchFailureKeepsPreviousResults(t *testing.T) {
	cat := &fakeCatalog{fc: sampleParcels()}
	c := newController(cat, nil)
	c.Click(lahore)
	_ = c.SelectRadius(1)
	if err := c.SearchByRadius(context.Background()); err != nil {
		t.Fatalf("SearchByRadius: %v", err)
	}

	cat.err = errors.New("connection refused")
	err := c.SearchByRadius(context.Background())
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}

	s := c.Snapshot()
	if s.Loading {
		t.Error("loading flag stuck after failure")
	}
	if s.Parcels.Len() != 3 {
		t.Errorf("previous results lost: %d", s.Parcels.Len())
	}

	// the controller stays usable
	cat.err = nil
	if err := c.SearchByRadius(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestController_ConcurrentSearchRejected(t *testing.T) {
	cat := newBlockingCatalog(sampleParcels())
	c := newController(cat, nil)
	c.Click(lahore)
	_ = c.SelectRadius(2)

	done := make(chan error, 1)
	go func() { done <- c.SearchByRadius(context.Background()) }()
	<-cat.started

	if p := c.Snapshot().Phase(); p != PhaseLoading {
		t.Errorf("phase = %s, want loading", p)
	}
	if err := c.SearchByRadius(context.Background()); !errors.Is(err, ErrSearchInProgress) {
		t.Errorf("second search: %v", err)
	}
	if err := c.SelectRadius(3); !errors.Is(err, ErrSearchInProgress) {
		t.Errorf("radius change while loading: %v", err)
	}

	close(cat.release)
	if err := <-done; err != nil {
		t.Fatalf("first search: %v", err)
	}
	if s := c.Snapshot(); s.Loading || s.Parcels.Len() != 3 {
		t.Fatalf("unexpected state after search: %+v", s)
	}
}

func TestController_StaleResultDiscarded(t *testing.T) {
	cat := newBlockingCatalog(sampleParcels())
	c := newController(cat, nil)
	c.Click(lahore)
	_ = c.SelectRadius(2)

	done := make(chan error, 1)
	go func() { done <- c.SearchByRadius(context.Background()) }()
	<-cat.started

	far := northOf(lahore, 10000)
	if got := c.Click(far); got != CircleReplaced {
		t.Fatalf("Click = %s", got)
	}

	close(cat.release)
	if err := <-done; !errors.Is(err, ErrSearchSuperseded) {
		t.Fatalf("err = %v, want ErrSearchSuperseded", err)
	}

	s := c.Snapshot()
	if s.Loading {
		t.Error("loading flag stuck")
	}
	if s.Parcels != nil {
		t.Error("stale results applied to the new area")
	}
	if s.Circle.Center != far {
		t.Error("new circle lost")
	}
}

func TestController_SelectParcelByIdentifier(t *testing.T) {
	c := newController(&fakeCatalog{fc: sampleParcels()}, nil)
	c.Click(lahore)
	_ = c.SelectRadius(2)
	_ = c.SearchByRadius(context.Background())

	// a separately built feature for the same parcel
	other := feature("PARCEL_42", square(74.32, 31.52))
	c.SelectParcel(other)

	s := c.Snapshot()
	if s.ActiveIndex == nil || *s.ActiveIndex != 2 {
		t.Fatalf("active index = %v, want 2", s.ActiveIndex)
	}
	if s.Selected == nil || s.Selected.ID() != "PARCEL_42" {
		t.Fatalf("selected = %+v", s.Selected)
	}
	if s.Position != (geo.Position{Lat: 31.52, Lng: 74.32}) {
		t.Fatalf("position = %+v", s.Position)
	}
}

func TestController_SelectMultiPolygonMovesToFirstCoordinate(t *testing.T) {
	c := newController(&fakeCatalog{fc: sampleParcels()}, nil)
	c.Click(lahore)
	_ = c.SelectRadius(2)
	_ = c.SearchByRadius(context.Background())

	if err := c.SelectIndex(1); err != nil {
		t.Fatalf("SelectIndex: %v", err)
	}
	if pos := c.Snapshot().Position; pos != (geo.Position{Lat: 31.51, Lng: 74.31}) {
		t.Fatalf("position = %+v", pos)
	}
}

func TestController_SelectMalformedGeometryKeepsPosition(t *testing.T) {
	parcels := geo.NewParcelCollection([]geo.ParcelFeature{
		feature("EMPTY", orb.Polygon{orb.Ring{}}),
		feature("NOGEOM", nil),
	})
	c := newController(&fakeCatalog{fc: parcels}, nil)
	c.Click(lahore)
	_ = c.SelectRadius(1)
	_ = c.SearchByRadius(context.Background())

	for i := 0; i < 2; i++ {
		if err := c.SelectIndex(i); err != nil {
			t.Fatalf("SelectIndex(%d): %v", i, err)
		}
		s := c.Snapshot()
		if s.Position != lahore {
			t.Fatalf("position moved to %+v", s.Position)
		}
		if s.ActiveIndex == nil || *s.ActiveIndex != i {
			t.Fatalf("active index = %v, want %d", s.ActiveIndex, i)
		}
	}
}

func TestController_SelectIndexOutOfRange(t *testing.T) {
	c := newController(&fakeCatalog{}, nil)
	if err := c.SelectIndex(0); !errors.Is(err, ErrNoSuchParcel) {
		t.Fatalf("err = %v, want ErrNoSuchParcel", err)
	}
}

func TestController_ClearSelectionKeepsActiveIndex(t *testing.T) {
	c := newController(&fakeCatalog{fc: sampleParcels()}, nil)
	c.Click(lahore)
	_ = c.SelectRadius(2)
	_ = c.SearchByRadius(context.Background())
	_ = c.SelectIndex(0)

	c.ClearSelection()

	s := c.Snapshot()
	if s.Selected != nil {
		t.Error("selection not cleared")
	}
	if s.ActiveIndex == nil || *s.ActiveIndex != 0 {
		t.Errorf("active index = %v, want 0", s.ActiveIndex)
	}
	if s.Parcels.Len() != 3 {
		t.Error("collection changed")
	}
}

func TestController_NewResultsReconcileSelection(t *testing.T) {
	cat := &fakeCatalog{fc: sampleParcels()}
	c := newController(cat, nil)
	c.Click(lahore)
	_ = c.SelectRadius(2)
	_ = c.SearchByRadius(context.Background())
	_ = c.SelectIndex(2)

	cat.fc = geo.NewParcelCollection([]geo.ParcelFeature{
		feature("PARCEL_42", square(74.32, 31.52)),
		feature("PARCEL_99", square(74.33, 31.53)),
	})
	_ = c.SearchByRadius(context.Background())

	s := c.Snapshot()
	if s.ActiveIndex == nil || *s.ActiveIndex != 0 || s.Selected.ID() != "PARCEL_42" {
		t.Fatalf("selection not re-resolved: %v %+v", s.ActiveIndex, s.Selected)
	}

	cat.fc = geo.NewParcelCollection(nil)
	_ = c.SearchByRadius(context.Background())

	s = c.Snapshot()
	if s.Selected != nil || s.ActiveIndex != nil {
		t.Fatalf("selection kept for a parcel that is gone: %v %+v", s.ActiveIndex, s.Selected)
	}
}

func TestController_GeocodeMatchResetsArea(t *testing.T) {
	gc := &fakeGeocoder{results: []geocode.Result{
		{X: 67.0011, Y: 24.8607, Label: "Karachi"},
		{X: 1, Y: 1, Label: "ignored"},
	}}
	c := newController(&fakeCatalog{fc: sampleParcels()}, gc)
	c.Click(lahore)
	_ = c.SelectRadius(2)
	_ = c.SearchByRadius(context.Background())
	_ = c.SelectIndex(0)

	if err := c.Search(context.Background(), "Karachi"); err != nil {
		t.Fatalf("Search: %v", err)
	}

	s := c.Snapshot()
	if s.Position != (geo.Position{Lat: 24.8607, Lng: 67.0011}) || s.LocationLabel != "Karachi" {
		t.Errorf("position = %+v label = %q", s.Position, s.LocationLabel)
	}
	if s.Circle != nil || s.Parcels != nil || s.Selected != nil || s.ActiveIndex != nil {
		t.Errorf("area not reset: %+v", s)
	}
}

func TestController_GeocodeMissLeavesState(t *testing.T) {
	gc := &fakeGeocoder{}
	c := newController(&fakeCatalog{}, gc)
	c.Click(lahore)
	before := c.Snapshot()

	if err := c.Search(context.Background(), "Atlantis"); !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("err = %v, want ErrLocationNotFound", err)
	}

	gc.err = errors.New("timeout")
	if err := c.Search(context.Background(), "Atlantis"); err == nil || errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("err = %v, want wrapped geocoder error", err)
	}

	if err := c.Search(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}

	after := c.Snapshot()
	if after.Position != before.Position || after.Circle == nil || after.Circle.Center != before.Circle.Center {
		t.Fatalf("state changed: %+v", after)
	}
}

func TestState_SnapshotIsACopy(t *testing.T) {
	c := newController(&fakeCatalog{}, nil)
	c.Click(lahore)

	s := c.Snapshot()
	s.Circle.Radius = 5

	if c.Snapshot().Circle.Radius != 0 {
		t.Fatal("snapshot shares the circle with the controller")
	}
}
