package processes

import (
	"context"
	"fmt"
	"strings"

	"hydroproc/internal/graphs"
	"hydroproc/internal/hydro"
	"hydroproc/internal/schema"
)

func init() {
	for _, name := range hydro.ModelNames() {
		m, _ := hydro.ModelByName(name)
		Register(&simulationProcess{model: m})
	}
}

// processID maps a model name to its endpoint identifier, e.g. GR4JCN to
// raven-gr4j-cemaneige.
func processID(model string) string {
	switch model {
	case hydro.ModelGR4JCN:
		return "raven-gr4j-cemaneige"
	case hydro.ModelMOHYSE:
		return "raven-mohyse"
	case hydro.ModelHMETS:
		return "raven-hmets"
	case hydro.ModelHBVEC:
		return "raven-hbv-ec"
	}
	return "raven-" + strings.ToLower(model)
}

// simulationProcess runs one emulated model over an uploaded forcing record.
type simulationProcess struct {
	model *hydro.Model
}

func (p *simulationProcess) Descriptor() *schema.Descriptor {
	inputs := append(catchmentInputs(), schema.Input{
		Name:     "params",
		Title:    fmt.Sprintf("%s parameter vector (%d values)", p.model.Name, p.model.NParams()),
		Type:     schema.TypeFloatList,
		Default:  schema.FormatFloats(p.model.Defaults),
		Required: true,
	})
	return &schema.Descriptor{
		ID:       processID(p.model.Name),
		Title:    fmt.Sprintf("%s hydrological simulation", p.model.Name),
		Abstract: fmt.Sprintf("Runs the %s emulation over a daily forcing record and returns the simulated hydrograph, storage series and regression diagnostics.", p.model.Name),
		Version:  "0.1",
		Inputs:   inputs,
		Outputs: []schema.Output{
			{Name: "hydrograph", Title: "Simulated and observed discharge", MediaType: "text/csv"},
			{Name: "storage", Title: "Actual ET and storage series", MediaType: "text/csv"},
			{Name: "diagnostics", Title: "Goodness-of-fit scores", MediaType: "text/csv"},
			{Name: "hydrograph_plot", Title: "Hydrograph figure", MediaType: "image/png"},
		},
	}
}

func (p *simulationProcess) Execute(ctx context.Context, r *Run) error {
	frc, err := hydro.ReadForcingFile(r.Files["ts"])
	if err != nil {
		return err
	}
	params, err := schema.ParseFloats(r.Literals["params"])
	if err != nil {
		return err
	}

	res, err := hydro.Run(p.model, params, frc, parseCatchment(r.Literals), parseRunOptions(r.Literals))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	runName := r.Literals["run_name"]

	fp := r.Path("hydrograph.csv")
	if err := writeHydrograph(fp, res); err != nil {
		return err
	}
	r.AddOutput("hydrograph", fp, "text/csv")

	fp = r.Path("storage.csv")
	if err := writeStorage(fp, res); err != nil {
		return err
	}
	r.AddOutput("storage", fp, "text/csv")

	if d, err := hydro.Diagnose(res.Qobs, res.Qsim); err == nil {
		fp = r.Path("diagnostics.csv")
		if err := hydro.WriteDiagnostics(fp, runName, d); err != nil {
			return err
		}
		r.AddOutput("diagnostics", fp, "text/csv")
	} else if err != hydro.ErrNoObservations {
		return err
	}

	fp = r.Path("hydrograph.png")
	if err := graphs.Hydrograph(fp, runName, res.Dates, res.Qsim, res.Qobs); err != nil {
		return err
	}
	r.AddOutput("hydrograph_plot", fp, "image/png")
	return nil
}
