package processes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/maseology/mmio"

	"hydroproc/internal/graphs"
	"hydroproc/internal/hydro"
	"hydroproc/internal/schema"
)

func init() {
	for _, name := range hydro.ModelNames() {
		m, _ := hydro.ModelByName(name)
		Register(&calibrationProcess{model: m})
	}
}

// calibrationProcess searches a model's parameter space against observed
// flow in the uploaded forcing record.
type calibrationProcess struct {
	model *hydro.Model
}

func (p *calibrationProcess) Descriptor() *schema.Descriptor {
	inputs := append(catchmentInputs(),
		schema.Input{Name: "algorithm", Title: "Optimizer", Type: schema.TypeString,
			Default: hydro.AlgoSCE, Allowed: []string{hydro.AlgoSCE, hydro.AlgoRBF}},
		schema.Input{Name: "max_evals", Title: "Optimizer evaluation budget", Type: schema.TypeInteger, Default: "50"},
		schema.Input{Name: "random_seed", Title: "Optimizer seed, 0 draws from the clock", Type: schema.TypeInteger, Default: "0"},
		schema.Input{Name: "lower_bounds", Title: fmt.Sprintf("Lower parameter bounds (%d values)", p.model.NParams()),
			Type: schema.TypeFloatList, Default: schema.FormatFloats(p.model.Lower)},
		schema.Input{Name: "upper_bounds", Title: fmt.Sprintf("Upper parameter bounds (%d values)", p.model.NParams()),
			Type: schema.TypeFloatList, Default: schema.FormatFloats(p.model.Upper)},
	)
	return &schema.Descriptor{
		ID:       "ostrich-" + strings.TrimPrefix(processID(p.model.Name), "raven-"),
		Title:    fmt.Sprintf("%s calibration", p.model.Name),
		Abstract: fmt.Sprintf("Calibrates the %s emulation against observed flow, maximizing the Nash-Sutcliffe efficiency.", p.model.Name),
		Version:  "0.1",
		Inputs:   inputs,
		Outputs: []schema.Output{
			{Name: "calibrated_params", Title: "Optimized parameter vector", MediaType: "text/plain"},
			{Name: "hydrograph", Title: "Calibrated-run discharge", MediaType: "text/csv"},
			{Name: "diagnostics", Title: "Goodness-of-fit of the calibrated run", MediaType: "text/csv"},
			{Name: "calibration", Title: "Sampled parameter sets and their scores", MediaType: "text/csv"},
			{Name: "hydrograph_plot", Title: "Calibrated-run figure", MediaType: "image/png"},
		},
	}
}

func (p *calibrationProcess) Execute(ctx context.Context, r *Run) error {
	frc, err := hydro.ReadForcingFile(r.Files["ts"])
	if err != nil {
		return err
	}
	lower, err := schema.ParseFloats(r.Literals["lower_bounds"])
	if err != nil {
		return err
	}
	upper, err := schema.ParseFloats(r.Literals["upper_bounds"])
	if err != nil {
		return err
	}
	maxEvals, _ := strconv.Atoi(r.Literals["max_evals"])
	seed, _ := strconv.ParseInt(r.Literals["random_seed"], 10, 64)

	res, err := hydro.Calibrate(p.model, frc, parseCatchment(r.Literals), hydro.CalibOptions{
		Algorithm: r.Literals["algorithm"],
		MaxEvals:  maxEvals,
		Seed:      seed,
		Lower:     lower,
		Upper:     upper,
		Run:       parseRunOptions(r.Literals),
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	runName := r.Literals["run_name"]

	fp := r.Path("calibrated_params.txt")
	if err := p.writeParams(fp, res.Params); err != nil {
		return err
	}
	r.AddOutput("calibrated_params", fp, "text/plain")

	fp = r.Path("hydrograph.csv")
	if err := writeHydrograph(fp, res.Final); err != nil {
		return err
	}
	r.AddOutput("hydrograph", fp, "text/csv")

	fp = r.Path("diagnostics.csv")
	if err := hydro.WriteDiagnostics(fp, runName, res.Diagnostics); err != nil {
		return err
	}
	r.AddOutput("diagnostics", fp, "text/csv")

	fp = r.Path("calibration.csv")
	if err := p.writeTrace(fp, res.Trace); err != nil {
		return err
	}
	r.AddOutput("calibration", fp, "text/csv")

	fp = r.Path("hydrograph.png")
	if err := graphs.Hydrograph(fp, runName, res.Final.Dates, res.Final.Qsim, res.Final.Qobs); err != nil {
		return err
	}
	r.AddOutput("hydrograph_plot", fp, "image/png")
	return nil
}

// writeParams writes one name=value line per parameter.
func (p *calibrationProcess) writeParams(fp string, params []float64) error {
	tw, err := mmio.NewTXTwriter(fp)
	if err != nil {
		return err
	}
	defer tw.Close()
	for i, v := range params {
		tw.WriteLine(fmt.Sprintf("%s %g", p.model.ParamNames[i], v))
	}
	return nil
}

func (p *calibrationProcess) writeTrace(fp string, trace []hydro.TracePoint) error {
	tw, err := mmio.NewTXTwriter(fp)
	if err != nil {
		return err
	}
	defer tw.Close()
	tw.WriteLine(strings.Join(p.model.ParamNames, ",") + ",nse")
	for _, tp := range trace {
		row := make([]string, 0, len(tp.Params)+1)
		for _, v := range tp.Params {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row, strconv.FormatFloat(tp.NSE, 'g', -1, 64))
		tw.WriteLine(strings.Join(row, ","))
	}
	return nil
}
