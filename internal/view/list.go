package view

import (
	"fmt"

	"github.com/woozymasta/parcelmap/internal/interaction"
)

const unnamedPlot = "Unnamed Plot"

// PlotListView is the list of parcels found by the last search.
type PlotListView struct {
	ScrollTo *int        `json:"scroll_to,omitempty"`
	Title    string      `json:"title,omitempty"`
	Entries  []PlotEntry `json:"entries"`
	Loading  bool        `json:"loading"`
}

// PlotEntry is one row of the list.
type PlotEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Area   string `json:"area"`
	Index  int    `json:"index"`
	Active bool   `json:"active"`
}

// PlotList renders the plot list. While loading only the spinner is shown;
// without a collection there are no entries at all.
func PlotList(s interaction.State) PlotListView {
	if s.Loading {
		return PlotListView{Loading: true}
	}
	if s.Parcels == nil {
		return PlotListView{}
	}

	lv := PlotListView{
		Title:   "Plots Found",
		Entries: make([]PlotEntry, len(s.Parcels.Features)),
	}

	for i, f := range s.Parcels.Features {
		name := f.Properties.PlotName
		if name == "" {
			name = unnamedPlot
		}

		lv.Entries[i] = PlotEntry{
			Index:  i,
			ID:     f.ID(),
			Name:   name,
			Area:   fmt.Sprintf("%.2f ha", f.Properties.ParcelArea),
			Active: s.ActiveIndex != nil && *s.ActiveIndex == i,
		}
	}

	if s.ActiveIndex != nil && *s.ActiveIndex >= 0 && *s.ActiveIndex < len(lv.Entries) {
		i := *s.ActiveIndex
		lv.ScrollTo = &i
	}

	return lv
}
