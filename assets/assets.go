// Package assets bundles the web page sources and the demo parcels document.
package assets

import _ "embed"

var (
	//go:embed index.html.tpl
	IndexTemplate string

	//go:embed style.css
	Style string

	//go:embed script.js
	Script string

	//go:embed favicon.svg
	Favicon string

	//go:embed data/serverData.geojson
	Parcels []byte
)
