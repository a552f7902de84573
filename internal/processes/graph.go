package processes

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/maseology/mmio"

	"hydroproc/internal/graphs"
	"hydroproc/internal/hydro"
	"hydroproc/internal/schema"
)

func init() {
	Register(&ensembleGraphProcess{})
	Register(&tsStatsProcess{})
}

// ensembleGraphProcess plots the uncertainty band of a previously produced
// forecast ensemble.
type ensembleGraphProcess struct{}

func (p *ensembleGraphProcess) Descriptor() *schema.Descriptor {
	return &schema.Descriptor{
		ID:       "graph-ensemble-uncertainty",
		Title:    "Forecast ensemble uncertainty graph",
		Abstract: "Plots the median and the 10th/90th percentile envelope of an ensemble forecast CSV, optionally overlaying observed flow.",
		Version:  "0.1",
		Inputs: []schema.Input{
			{Name: "fcst", Title: "Ensemble forecast CSV, one member per column", Required: true, File: true},
			{Name: "qobs", Title: "Observed flow CSV to overlay", File: true},
			{Name: "title", Title: "Figure title", Type: schema.TypeString, Default: "ensemble forecast"},
		},
		Outputs: []schema.Output{
			{Name: "graph_forecasts", Title: "Uncertainty figure", MediaType: "image/png"},
		},
	}
}

func (p *ensembleGraphProcess) Execute(ctx context.Context, r *Run) error {
	names, dates, cols, err := hydro.ReadSeries(r.Files["fcst"])
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("forecast file holds no member columns")
	}
	members := make([][]float64, len(names))
	for i, n := range names {
		members[i] = cols[n]
	}
	ens := &hydro.Ensemble{Dates: dates, Members: members}

	var qobs []float64
	if fp, ok := r.Files["qobs"]; ok {
		obsNames, obsDates, obsCols, err := hydro.ReadSeries(fp)
		if err != nil {
			return err
		}
		if len(obsNames) == 0 {
			return fmt.Errorf("observation file holds no columns")
		}
		qobs = alignSeries(dates, obsDates, obsCols[obsNames[0]])
	}

	fp := r.Path("graph_forecasts.png")
	err = graphs.EnsembleUncertainty(fp, r.Literals["title"], dates,
		ens.Median(), ens.Quantile(.1), ens.Quantile(.9), qobs)
	if err != nil {
		return err
	}
	r.AddOutput("graph_forecasts", fp, "image/png")
	return ctx.Err()
}

// tsStatsProcess fits a flood-frequency distribution to a discharge series.
type tsStatsProcess struct{}

func (p *tsStatsProcess) Descriptor() *schema.Descriptor {
	return &schema.Descriptor{
		ID:       "graph-ts-stats",
		Title:    "Discharge time-series statistics graph",
		Abstract: "Extracts annual extremes from a discharge CSV, fits an extreme-value distribution and plots the fit with return-period quantiles.",
		Version:  "0.1",
		Inputs: []schema.Input{
			{Name: "ts", Title: "Discharge CSV, first column is analyzed", Required: true, File: true},
			{Name: "op", Title: "Annual statistic to extract", Type: schema.TypeString,
				Default: "max", Allowed: []string{"max", "min"}},
			{Name: "title", Title: "Figure title", Type: schema.TypeString, Default: "flood frequency"},
		},
		Outputs: []schema.Output{
			{Name: "graph_ts_stats", Title: "Frequency-fit figure", MediaType: "image/png"},
			{Name: "return_periods", Title: "Fitted return-period quantiles", MediaType: "text/csv"},
		},
	}
}

func (p *tsStatsProcess) Execute(ctx context.Context, r *Run) error {
	names, dates, cols, err := hydro.ReadSeries(r.Files["ts"])
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("time-series file holds no columns")
	}
	extreme := graphs.AnnualMaxima
	if r.Literals["op"] == "min" {
		extreme = graphs.AnnualMinima
	}
	annual := extreme(dates, cols[names[0]])
	mu, beta, err := graphs.GumbelFit(annual)
	if err != nil {
		return err
	}

	fp := r.Path("graph_ts_stats.png")
	if err := graphs.FrequencyPlot(fp, r.Literals["title"], annual, mu, beta); err != nil {
		return err
	}
	r.AddOutput("graph_ts_stats", fp, "image/png")

	fp = r.Path("return_periods.csv")
	tw, err := mmio.NewTXTwriter(fp)
	if err != nil {
		return err
	}
	defer tw.Close()
	tw.WriteLine("return_period_years,discharge")
	for _, t := range []float64{2, 5, 10, 25, 50, 100} {
		tw.WriteLine(strings.Join([]string{
			strconv.FormatFloat(t, 'g', -1, 64),
			strconv.FormatFloat(graphs.GumbelQuantile(mu, beta, t), 'g', -1, 64),
		}, ","))
	}
	r.AddOutput("return_periods", fp, "text/csv")
	return ctx.Err()
}

// alignSeries maps obs onto the target date axis, NaN where unobserved.
func alignSeries(target, obsDates []time.Time, obs []float64) []float64 {
	byDay := make(map[string]float64, len(obsDates))
	for i, d := range obsDates {
		byDay[d.Format("2006-01-02")] = obs[i]
	}
	out := make([]float64, len(target))
	for i, d := range target {
		v, ok := byDay[d.Format("2006-01-02")]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
