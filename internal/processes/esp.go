package processes

import (
	"context"
	"fmt"
	"strconv"

	"hydroproc/internal/graphs"
	"hydroproc/internal/hydro"
	"hydroproc/internal/schema"
)

func init() { Register(&espProcess{}) }

// espProcess issues an ensemble streamflow prediction by resampling the
// historical forcing record past the forecast date.
type espProcess struct{}

func (p *espProcess) Descriptor() *schema.Descriptor {
	inputs := append(catchmentInputs(),
		schema.Input{Name: "model_name", Title: "Hydrological model", Type: schema.TypeString,
			Required: true, Allowed: hydro.ModelNames()},
		schema.Input{Name: "params", Title: "Model parameter vector, defaults to the model's published set",
			Type: schema.TypeFloatList},
		schema.Input{Name: "forecast_date", Title: "Forecast issue date", Type: schema.TypeDate, Required: true},
		schema.Input{Name: "forecast_duration", Title: "Forecast horizon [days]", Type: schema.TypeInteger, Default: "365"},
	)
	return &schema.Descriptor{
		ID:       "climatology-esp",
		Title:    "Climatology ensemble streamflow prediction",
		Abstract: "Warms the model to the forecast date and continues it once per historical year, yielding an ensemble of equally likely discharge traces.",
		Version:  "0.1",
		Inputs:   inputs,
		Outputs: []schema.Output{
			{Name: "forecast", Title: "Member discharge traces", MediaType: "text/csv"},
			{Name: "forecast_summary", Title: "Ensemble median and 10-90 envelope", MediaType: "text/csv"},
			{Name: "forecast_plot", Title: "Forecast uncertainty figure", MediaType: "image/png"},
		},
	}
}

func (p *espProcess) Execute(ctx context.Context, r *Run) error {
	frc, err := hydro.ReadForcingFile(r.Files["ts"])
	if err != nil {
		return err
	}
	m, ok := hydro.ModelByName(r.Literals["model_name"])
	if !ok {
		return fmt.Errorf("unknown model %q", r.Literals["model_name"])
	}
	params := m.Defaults
	if v, ok := r.Literals["params"]; ok && v != "" {
		if params, err = schema.ParseFloats(v); err != nil {
			return err
		}
	}
	fd, err := schema.ParseDate(r.Literals["forecast_date"])
	if err != nil {
		return err
	}
	duration, _ := strconv.Atoi(r.Literals["forecast_duration"])

	ens, err := hydro.ClimatologyESP(m, params, frc, parseCatchment(r.Literals), hydro.EspOptions{
		ForecastDate: fd,
		DurationDays: duration,
		Run:          parseRunOptions(r.Literals),
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	names := make([]string, len(ens.Members))
	for i, yr := range ens.Years {
		names[i] = fmt.Sprintf("q_%d", yr)
	}
	fp := r.Path("forecast.csv")
	if err := writeEnsemble(fp, ens.Dates, ens.Members, names); err != nil {
		return err
	}
	r.AddOutput("forecast", fp, "text/csv")

	med, q10, q90 := ens.Median(), ens.Quantile(.1), ens.Quantile(.9)

	fp = r.Path("forecast_summary.csv")
	err = hydro.WriteSeries(fp, ens.Dates,
		map[string][]float64{"q_median": med, "q10": q10, "q90": q90},
		[]string{"q_median", "q10", "q90"})
	if err != nil {
		return err
	}
	r.AddOutput("forecast_summary", fp, "text/csv")

	fp = r.Path("forecast.png")
	err = graphs.EnsembleUncertainty(fp, r.Literals["run_name"], ens.Dates, med, q10, q90, nil)
	if err != nil {
		return err
	}
	r.AddOutput("forecast_plot", fp, "image/png")
	return nil
}
