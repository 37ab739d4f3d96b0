package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/interaction"
)

const noValue = "—"

// ParcelDetailView is the side panel for the selected parcel.
type ParcelDetailView struct {
	Title string      `json:"title"`
	Rows  []DetailRow `json:"rows"`
}

// DetailRow is a label/value pair.
type DetailRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParcelDetail renders the detail panel, or nil when nothing is selected.
func ParcelDetail(s interaction.State) *ParcelDetailView {
	f := s.Selected
	if f == nil {
		return nil
	}

	title := f.Properties.GmlID
	if title == "" {
		title = "Parcel Details"
	}

	rows := make([]DetailRow, 0, 7)
	if f.Properties.PlotName != "" {
		rows = append(rows, row("plotName", f.Properties.PlotName))
	}
	rows = append(rows,
		row("gml_id", f.Properties.GmlID),
		row("parcelarea", formatNumber(f.Properties.ParcelArea)),
		row("freearea", formatNumber(f.Properties.FreeArea)),
		row("free_pct", formatNumber(f.Properties.FreePct)),
	)

	geomType := f.GeometryType()
	if geomType == "" {
		geomType = noValue
	}
	rows = append(rows, DetailRow{Key: "Geometry Type", Value: geomType})

	coords := noValue
	if pos, ok := geo.FirstCoordinate(f.Shape()); ok {
		coords = fmt.Sprintf("[%s,%s]", formatNumber(pos.Lng), formatNumber(pos.Lat))
	}
	rows = append(rows, DetailRow{Key: "Coordinates", Value: coords})

	return &ParcelDetailView{Title: title, Rows: rows}
}

// row renders a property key the way the panel labels it: FREE PCT.
func row(key, value string) DetailRow {
	return DetailRow{Key: strings.ToUpper(strings.ReplaceAll(key, "_", " ")), Value: value}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
