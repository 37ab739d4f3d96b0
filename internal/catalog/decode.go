package catalog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/woozymasta/parcelmap/internal/geo"

	"github.com/paulmach/orb/geojson"
)

// ErrMalformedResponse is returned when a body is neither a parcels
// document nor a GeoJSON FeatureCollection.
var ErrMalformedResponse = errors.New("malformed parcel response")

// Stats describes how many records a decoded document contained.
type Stats struct {
	Total   int
	Dropped int
}

// Internal structures for JSON parsing
type document struct {
	Type     string            `json:"type"`
	Parcels  []json.RawMessage `json:"parcels"`
	Features []json.RawMessage `json:"features"`
}

type parcelRecord struct {
	Geometry   json.RawMessage `json:"geometry"`
	PlotName   string          `json:"plotName"`
	GmlID      string          `json:"gml_id"`
	ParcelArea float64         `json:"parcelarea"`
	FreeArea   float64         `json:"freearea"`
	FreePct    float64         `json:"free_pct"`
}

type featureRecord struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties struct {
		PlotName   string  `json:"plotName"`
		GmlID      string  `json:"gml_id"`
		ParcelArea float64 `json:"parcelarea"`
		FreeArea   float64 `json:"freearea"`
		FreePct    float64 `json:"free_pct"`
	} `json:"properties"`
}

// Decode maps a catalog body into a ParcelCollection in document order.
// It accepts {"parcels": [...]} as well as a GeoJSON FeatureCollection.
// Records without a gml_id or without a Polygon/MultiPolygon geometry are
// dropped; they never fail the whole document.
func Decode(data []byte) (geo.ParcelCollection, Stats, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return geo.ParcelCollection{}, Stats{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	switch {
	case doc.Parcels != nil:
		return project(doc.Parcels, decodeParcel)
	case doc.Features != nil:
		return project(doc.Features, decodeFeature)
	default:
		return geo.ParcelCollection{}, Stats{}, fmt.Errorf("%w: no parcels or features", ErrMalformedResponse)
	}
}

func project(records []json.RawMessage, conv func(json.RawMessage) (geo.ParcelFeature, error)) (geo.ParcelCollection, Stats, error) {
	stats := Stats{Total: len(records)}
	features := make([]geo.ParcelFeature, 0, len(records))

	for _, rec := range records {
		f, err := conv(rec)
		if err != nil {
			stats.Dropped++
			continue
		}
		features = append(features, f)
	}

	return geo.NewParcelCollection(features), stats, nil
}

func decodeParcel(raw json.RawMessage) (geo.ParcelFeature, error) {
	var rec parcelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return geo.ParcelFeature{}, err
	}

	return newFeature(rec.Geometry, geo.ParcelProperties{
		PlotName:   rec.PlotName,
		GmlID:      rec.GmlID,
		ParcelArea: rec.ParcelArea,
		FreeArea:   rec.FreeArea,
		FreePct:    rec.FreePct,
	})
}

func decodeFeature(raw json.RawMessage) (geo.ParcelFeature, error) {
	var rec featureRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return geo.ParcelFeature{}, err
	}

	return newFeature(rec.Geometry, geo.ParcelProperties(rec.Properties))
}

func newFeature(rawGeom json.RawMessage, props geo.ParcelProperties) (geo.ParcelFeature, error) {
	if props.GmlID == "" {
		return geo.ParcelFeature{}, errors.New("missing gml_id")
	}
	if len(rawGeom) == 0 || string(rawGeom) == "null" {
		return geo.ParcelFeature{}, errors.New("missing geometry")
	}

	g, err := geojson.UnmarshalGeometry(rawGeom)
	if err != nil {
		return geo.ParcelFeature{}, err
	}

	shape := g.Geometry()
	if shape == nil {
		return geo.ParcelFeature{}, errors.New("empty geometry")
	}

	switch shape.GeoJSONType() {
	case "Polygon", "MultiPolygon":
	default:
		return geo.ParcelFeature{}, fmt.Errorf("unsupported geometry %q", g.Type)
	}

	return geo.ParcelFeature{Type: "Feature", Geometry: g, Properties: props}, nil
}
