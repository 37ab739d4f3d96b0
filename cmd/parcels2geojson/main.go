package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/parcelmap/internal/catalog"
	"github.com/woozymasta/parcelmap/internal/geo"

	"github.com/jessevdk/go-flags"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input  string `short:"i" long:"in" description:"Input file path ({\"parcels\": [...]} document). Reads from stdin if empty"`
	Output string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Format string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Strict bool   `short:"s" long:"strict" description:"Fail when any record is dropped"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Read Input
	var inputData []byte
	var err error

	if opts.Input != "" {
		inputData, err = os.ReadFile(opts.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
			os.Exit(1)
		}
	} else {
		inputData, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
	}

	parcels, stats, err := catalog.Decode(inputData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding parcels: %v\n", err)
		os.Exit(1)
	}
	if stats.Dropped > 0 {
		fmt.Fprintf(os.Stderr, "Dropped %d of %d records without gml_id or polygon geometry\n", stats.Dropped, stats.Total)
		if opts.Strict {
			os.Exit(1)
		}
	}

	fc := toFeatureCollection(parcels)

	// marshal
	var outputData []byte
	outputData, err = json.MarshalIndent(fc, "", "  ")
	if err == nil && opts.Format == "yaml" {
		outputData, err = toYAML(outputData)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully converted %d parcels to %s (format: %s)\n", len(fc.Features), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}

// toFeatureCollection converts parcels into a standard GeoJSON document
// with gml_id as the feature id.
func toFeatureCollection(parcels geo.ParcelCollection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, p := range parcels.Features {
		f := geojson.NewFeature(p.Shape())
		f.ID = p.ID()
		f.Properties["gml_id"] = p.Properties.GmlID
		f.Properties["parcelarea"] = p.Properties.ParcelArea
		f.Properties["freearea"] = p.Properties.FreeArea
		f.Properties["free_pct"] = p.Properties.FreePct
		if p.Properties.PlotName != "" {
			f.Properties["plotName"] = p.Properties.PlotName
		}

		fc.Append(f)
	}

	return fc
}

// toYAML re-encodes a JSON document so that both formats share one shape.
func toYAML(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return yaml.Marshal(doc)
}
