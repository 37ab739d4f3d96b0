// Package geo handles parcel geometry, positions and distance math.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Position is a WGS84 latitude/longitude pair.
type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Point converts the position into an orb point ([lng, lat]).
func (p Position) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromPoint converts an orb point ([lng, lat]) into a Position.
func FromPoint(pt orb.Point) Position {
	return Position{Lat: pt.Lat(), Lng: pt.Lon()}
}

// ParcelCollection is an ordered set of parcels.
// The order is the one received from the catalog and is never re-sorted.
type ParcelCollection struct {
	Type     string          `json:"type" yaml:"type"`
	Features []ParcelFeature `json:"features" yaml:"features"`
}

// ParcelFeature is a single land plot with its geometry and attributes.
type ParcelFeature struct {
	Geometry   *geojson.Geometry `json:"geometry" yaml:"-"`
	Type       string            `json:"type" yaml:"type"`
	Properties ParcelProperties  `json:"properties" yaml:"properties"`
}

// ParcelProperties are the descriptive attributes of a parcel.
type ParcelProperties struct {
	PlotName   string  `json:"plotName,omitempty" yaml:"plotName,omitempty"`
	GmlID      string  `json:"gml_id" yaml:"gml_id"`
	ParcelArea float64 `json:"parcelarea" yaml:"parcelarea"`
	FreeArea   float64 `json:"freearea" yaml:"freearea"`
	FreePct    float64 `json:"free_pct" yaml:"free_pct"`
}

// NewParcelCollection wraps features into a FeatureCollection.
func NewParcelCollection(features []ParcelFeature) ParcelCollection {
	if features == nil {
		features = []ParcelFeature{}
	}

	return ParcelCollection{Type: "FeatureCollection", Features: features}
}

// ID returns the unique parcel identifier.
func (f ParcelFeature) ID() string {
	return f.Properties.GmlID
}

// Shape returns the decoded geometry or nil when it is absent.
func (f ParcelFeature) Shape() orb.Geometry {
	if f.Geometry == nil {
		return nil
	}

	return f.Geometry.Geometry()
}

// GeometryType returns the GeoJSON type name of the geometry, or "" when absent.
func (f ParcelFeature) GeometryType() string {
	g := f.Shape()
	if g == nil {
		return ""
	}

	return g.GeoJSONType()
}

// IndexOf returns the position of the feature with the given id, or -1.
func (c *ParcelCollection) IndexOf(id string) int {
	if c == nil || id == "" {
		return -1
	}
	for i := range c.Features {
		if c.Features[i].Properties.GmlID == id {
			return i
		}
	}

	return -1
}

// Len returns the number of features, tolerating a nil collection.
func (c *ParcelCollection) Len() int {
	if c == nil {
		return 0
	}

	return len(c.Features)
}
