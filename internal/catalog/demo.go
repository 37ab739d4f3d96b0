package catalog

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Demo serves a Fixture as if it were the remote catalog.
// Every query gets the whole fixture in document order.
type Demo struct {
	fixture *Fixture
	delay   time.Duration
}

// NewDemo creates a demo catalog answering after delay.
func NewDemo(fixture *Fixture, delay time.Duration) *Demo {
	return &Demo{fixture: fixture, delay: delay}
}

// ServeHTTP handles POST /good-parcels.
func (d *Demo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Radius <= 0 {
		http.Error(w, "radius must be positive", http.StatusBadRequest)
		return
	}
	if req.Center.Lat < -90 || req.Center.Lat > 90 || req.Center.Lng < -180 || req.Center.Lng > 180 {
		http.Error(w, "center out of range", http.StatusBadRequest)
		return
	}

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-r.Context().Done():
			return
		}
	}

	log.Debug().
		Float64("lat", req.Center.Lat).
		Float64("lng", req.Center.Lng).
		Float64("radius_m", req.Radius).
		Int("parcels", len(d.fixture.Parcels.Features)).
		Msg("Demo catalog query served")

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(d.fixture.Raw)
}
