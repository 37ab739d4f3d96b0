// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelmap_http_requests_total",
		Help: "Total number of HTTP requests by method and status code",
	}, []string{"method", "status"})
	HTTPRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parcelmap_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
	CatalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelmap_catalog_requests_total",
		Help: "Parcel catalog requests by result (ok, error)",
	}, []string{"result"})
	CatalogDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parcelmap_catalog_duration_seconds",
		Help:    "Parcel catalog round trip in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	CatalogDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parcelmap_catalog_dropped_records_total",
		Help: "Parcel records dropped because required fields were missing",
	})
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelmap_geocode_requests_total",
		Help: "Geocoding lookups by result (found, not_found, error, cache_hit)",
	}, []string{"result"})
	RadiusSearchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelmap_radius_searches_total",
		Help: "Radius searches by outcome (ok, failed, superseded, rejected)",
	}, []string{"outcome"})
	TileCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelmap_tile_cache_total",
		Help: "Tile cache lookups by result (hit, miss, empty, error)",
	}, []string{"result"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parcelmap_sessions_active",
		Help: "Number of live interaction sessions",
	})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(CatalogRequestsTotal)
	prometheus.MustRegister(CatalogDuration)
	prometheus.MustRegister(CatalogDroppedTotal)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(RadiusSearchesTotal)
	prometheus.MustRegister(TileCacheTotal)
	prometheus.MustRegister(SessionsActive)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
