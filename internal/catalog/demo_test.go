package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/woozymasta/parcelmap/internal/geo"
)

func TestDemo_RoundTripThroughClient(t *testing.T) {
	fx, err := LoadFixture("")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/good-parcels", NewDemo(fx, 0))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fc, err := NewClient(srv.URL, nil).SearchByRadius(context.Background(), geo.Position{Lat: 31.55, Lng: 74.34}, 2000)
	if err != nil {
		t.Fatalf("SearchByRadius: %v", err)
	}

	if len(fc.Features) != len(fx.Parcels.Features) {
		t.Fatalf("got %d features, want %d", len(fc.Features), len(fx.Parcels.Features))
	}
	for i := range fc.Features {
		if fc.Features[i].ID() != fx.Parcels.Features[i].ID() {
			t.Fatalf("feature %d = %s, want %s", i, fc.Features[i].ID(), fx.Parcels.Features[i].ID())
		}
	}
}

func TestDemo_RejectsBadRequests(t *testing.T) {
	fx, err := ParseFixture([]byte(`{"parcels":[]}`))
	if err != nil {
		t.Fatalf("ParseFixture: %v", err)
	}
	demo := NewDemo(fx, 0)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"garbage", http.MethodPost, "{", http.StatusBadRequest},
		{"zero radius", http.MethodPost, `{"center":{"lat":1,"lng":1},"radius":0}`, http.StatusBadRequest},
		{"bad latitude", http.MethodPost, `{"center":{"lat":91,"lng":1},"radius":10}`, http.StatusBadRequest},
		{"valid", http.MethodPost, `{"center":{"lat":1,"lng":1},"radius":10}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			demo.ServeHTTP(rec, httptest.NewRequest(tt.method, "/good-parcels", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
