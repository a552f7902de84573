package processes

import (
	"strconv"
	"time"

	"hydroproc/internal/hydro"
	"hydroproc/internal/schema"
)

// catchmentInputs are the basin attributes shared by every simulation-style
// process.
func catchmentInputs() []schema.Input {
	return []schema.Input{
		{Name: "ts", Title: "Forcing time series", Abstract: "Daily CSV with date, precip [mm], tmin, tmax and optional qobs [m³/s] columns.", Required: true, File: true},
		{Name: "area", Title: "Watershed area [km²]", Type: schema.TypeFloat, Required: true},
		{Name: "latitude", Title: "Watershed centroid latitude", Type: schema.TypeFloat, Required: true},
		{Name: "longitude", Title: "Watershed centroid longitude", Type: schema.TypeFloat, Required: true},
		{Name: "elevation", Title: "Mean watershed elevation [m]", Type: schema.TypeFloat, Required: true},
		{Name: "start_date", Title: "Simulation start", Abstract: "Defaults to the start of the forcing record.", Type: schema.TypeDate},
		{Name: "end_date", Title: "Simulation end", Abstract: "Defaults to the end of the forcing record.", Type: schema.TypeDate},
		{Name: "rain_snow_fraction", Title: "Rain/snow partitioning scheme", Type: schema.TypeString,
			Default: hydro.RainSnowDingman, Allowed: []string{hydro.RainSnowDingman, hydro.RainSnowThreshold}},
		{Name: "run_name", Title: "Run label used in artifacts", Type: schema.TypeString, Default: "raven"},
	}
}

// parseCatchment reads the basin attributes out of resolved literals.
func parseCatchment(lits map[string]string) hydro.Catchment {
	f := func(k string) float64 {
		v, _ := strconv.ParseFloat(lits[k], 64)
		return v
	}
	return hydro.Catchment{
		AreaKm2:   f("area"),
		Latitude:  f("latitude"),
		Longitude: f("longitude"),
		Elevation: f("elevation"),
	}
}

// parseRunOptions reads the shared window and partitioning literals.
// Resolve has already validated the date formats.
func parseRunOptions(lits map[string]string) hydro.RunOptions {
	opt := hydro.RunOptions{RainSnowFraction: lits["rain_snow_fraction"]}
	if v, ok := lits["start_date"]; ok {
		opt.StartDate, _ = schema.ParseDate(v)
	}
	if v, ok := lits["end_date"]; ok {
		opt.EndDate, _ = schema.ParseDate(v)
	}
	return opt
}

// writeHydrograph writes the simulated and, when present, observed flow.
func writeHydrograph(fp string, res *hydro.RunResult) error {
	cols := map[string][]float64{"q_sim": res.Qsim}
	order := []string{"q_sim"}
	if res.Qobs != nil {
		cols["q_obs"] = res.Qobs
		order = append(order, "q_obs")
	}
	return hydro.WriteSeries(fp, res.Dates, cols, order)
}

// writeStorage writes the water-balance state series.
func writeStorage(fp string, res *hydro.RunResult) error {
	return hydro.WriteSeries(fp, res.Dates,
		map[string][]float64{"aet": res.Aet, "storage": res.Sto},
		[]string{"aet", "storage"})
}

// writeEnsemble writes one column per member trace.
func writeEnsemble(fp string, dates []time.Time, members [][]float64, names []string) error {
	cols := make(map[string][]float64, len(members))
	for i, m := range members {
		cols[names[i]] = m
	}
	return hydro.WriteSeries(fp, dates, cols, names)
}
