package processes

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"hydroproc/internal/geo"
	"hydroproc/internal/schema"
)

func init() {
	Register(&zonalStatsProcess{})
	Register(&rasterSubsetProcess{})
}

func rasterInputs() []schema.Input {
	return []schema.Input{
		{Name: "raster", Title: "Raster grid in ESRI ASCII layout", Required: true, File: true},
		{Name: "shape", Title: "GeoJSON polygon features", Required: true, File: true},
	}
}

// zonalStatsProcess summarizes raster cells per polygon feature.
type zonalStatsProcess struct{}

func (p *zonalStatsProcess) Descriptor() *schema.Descriptor {
	return &schema.Descriptor{
		ID:       "zonal-stats",
		Title:    "Raster zonal statistics",
		Abstract: "Computes count, min, max, mean, median and sum of the raster cells falling inside each polygon feature. Categorical rasters are tallied per class instead.",
		Version:  "0.1",
		Inputs: append(rasterInputs(),
			schema.Input{Name: "categorical", Title: "Treat cell values as class codes", Type: schema.TypeBoolean, Default: "false"},
			schema.Input{Name: "select_all_touching", Title: "Include every cell touched by the polygon", Abstract: "Counts cells whose extent intersects the polygon, not only those whose centre falls inside.", Type: schema.TypeBoolean, Default: "false"},
		),
		Outputs: []schema.Output{
			{Name: "statistics", Title: "Per-feature statistics", MediaType: "application/json"},
		},
	}
}

func (p *zonalStatsProcess) Execute(ctx context.Context, r *Run) error {
	g, err := geo.ReadAscFile(r.Files["raster"])
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(r.Files["shape"])
	if err != nil {
		return err
	}
	fc, err := geo.ParseFeatures(raw)
	if err != nil {
		return err
	}
	categorical, _ := strconv.ParseBool(r.Literals["categorical"])
	allTouched, _ := strconv.ParseBool(r.Literals["select_all_touching"])

	stats, err := geo.ZonalStats(g, fc, categorical, allTouched)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fp := r.Path("statistics.json")
	b, err := json.MarshalIndent(stats, "", " ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(fp, b, 0o644); err != nil {
		return err
	}
	r.AddOutput("statistics", fp, "application/json")
	return nil
}

// rasterSubsetProcess crops and masks the raster per polygon feature.
type rasterSubsetProcess struct{}

func (p *rasterSubsetProcess) Descriptor() *schema.Descriptor {
	return &schema.Descriptor{
		ID:       "raster-subset",
		Title:    "Raster subset by polygon",
		Abstract: "Clips the raster to each polygon feature's extent, masking cells outside the polygon, and returns the clipped grids as a zip archive.",
		Version:  "0.1",
		Inputs:   rasterInputs(),
		Outputs: []schema.Output{
			{Name: "subset", Title: "Clipped grids, one per feature", MediaType: "application/zip"},
		},
	}
}

func (p *rasterSubsetProcess) Execute(ctx context.Context, r *Run) error {
	g, err := geo.ReadAscFile(r.Files["raster"])
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(r.Files["shape"])
	if err != nil {
		return err
	}
	fc, err := geo.ParseFeatures(raw)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fp := r.Path("subset.zip")
	f, err := os.Create(fp)
	if err != nil {
		return err
	}
	if err := geo.SubsetZip(f, g, fc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	r.AddOutput("subset", fp, "application/zip")
	return nil
}
