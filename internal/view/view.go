// Package view turns interaction state into the models rendered by the page:
// the map surface, the plot list and the parcel detail panel.
package view

import (
	"github.com/woozymasta/parcelmap/internal/interaction"
)

// Options are the static rendering settings.
type Options struct {
	TileURL     string
	Attribution string
	Zoom        int
}

// Page is everything the browser needs to redraw after an event.
type Page struct {
	Detail *ParcelDetailView `json:"detail"`
	Map    MapView           `json:"map"`
	List   PlotListView      `json:"list"`
	Phase  string            `json:"phase"`
}

// Compose renders all three views from one state snapshot.
func Compose(s interaction.State, opts Options) Page {
	return Page{
		Map:    Map(s, opts),
		List:   PlotList(s),
		Detail: ParcelDetail(s),
		Phase:  string(s.Phase()),
	}
}
