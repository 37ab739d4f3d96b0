package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the mean radius in meters used by the Leaflet Earth CRS,
// so the inside/outside test matches the circle drawn on the page.
const EarthRadius = 6371000.0

// maxLat is the Web Mercator latitude limit.
const maxLat = 85.05112878

// Distance returns the great-circle (haversine) surface distance in meters.
func Distance(a, b Position) float64 {
	const rad = math.Pi / 180

	lat1 := a.Lat * rad
	lat2 := b.Lat * rad
	sinDLat := math.Sin((b.Lat - a.Lat) * rad / 2)
	sinDLon := math.Sin((b.Lng - a.Lng) * rad / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// PointInCircle reports whether point lies within radiusMeters of center.
// The boundary counts as inside. A nil center is never matched.
func PointInCircle(point Position, center *Position, radiusMeters float64) bool {
	if center == nil {
		return false
	}

	return Distance(*center, point) <= radiusMeters
}

// FirstCoordinate returns a representative coordinate of a parcel geometry:
// the first pair of the first ring (of the first polygon for MultiPolygon).
// It reports false for empty, unsupported or malformed geometries.
func FirstCoordinate(g orb.Geometry) (Position, bool) {
	var ring orb.Ring

	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return Position{}, false
		}
		ring = v[0]
	case orb.MultiPolygon:
		if len(v) == 0 || len(v[0]) == 0 {
			return Position{}, false
		}
		ring = v[0][0]
	default:
		return Position{}, false
	}

	if len(ring) == 0 {
		return Position{}, false
	}

	return FromPoint(ring[0]), true
}

// TileXY returns the slippy-map tile containing pos at the given zoom.
func TileXY(pos Position, zoom int) (x, y int) {
	lat := math.Max(-maxLat, math.Min(maxLat, pos.Lat))
	n := float64(int(1) << zoom)

	latRad := lat * math.Pi / 180
	fx := (pos.Lng + 180.0) / 360.0 * n
	fy := (1.0 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2.0 * n

	return clampTile(int(math.Floor(fx)), n), clampTile(int(math.Floor(fy)), n)
}

// TileRange returns the inclusive tile bounds covering a circle at the given zoom.
func TileRange(center Position, radiusMeters float64, zoom int) (minX, minY, maxX, maxY int) {
	dLat := radiusMeters / EarthRadius * 180 / math.Pi
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	dLng := 180.0
	if cosLat > 1e-9 {
		dLng = math.Min(180, dLat/cosLat)
	}

	minX, minY = TileXY(Position{Lat: center.Lat + dLat, Lng: center.Lng - dLng}, zoom)
	maxX, maxY = TileXY(Position{Lat: center.Lat - dLat, Lng: center.Lng + dLng}, zoom)

	return minX, minY, maxX, maxY
}

func clampTile(v int, n float64) int {
	limit := int(n) - 1
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}

	return v
}
