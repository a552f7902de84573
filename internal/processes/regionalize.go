package processes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"hydroproc/internal/graphs"
	"hydroproc/internal/hydro"
	"hydroproc/internal/hydro/regional"
	"hydroproc/internal/schema"
)

func init() { Register(&regionalisationProcess{}) }

// regionalisationProcess transfers calibrated parameters from gauged donors
// to the uploaded, ungauged basin.
type regionalisationProcess struct{}

func (p *regionalisationProcess) Descriptor() *schema.Descriptor {
	inputs := append(catchmentInputs(),
		schema.Input{Name: "model_name", Title: "Hydrological model", Type: schema.TypeString,
			Required: true, Allowed: hydro.ModelNames()},
		schema.Input{Name: "method", Title: "Parameter transfer method", Type: schema.TypeString,
			Default: regional.MethodSPIDW, Allowed: regional.Methods()},
		schema.Input{Name: "ndonors", Title: "Number of donor catchments", Type: schema.TypeInteger, Default: "5"},
		schema.Input{Name: "min_nse", Title: "Minimum donor calibration NSE", Type: schema.TypeFloat, Default: "0.6"},
		schema.Input{Name: "properties", Title: "Catchment properties",
			Abstract: fmt.Sprintf("JSON object of %s; regression and similarity methods require the full set.",
				strings.Join(regional.PropertyNames(), ", ")),
			Type: schema.TypeJSON, Required: true},
	)
	return &schema.Descriptor{
		ID:       "regionalisation",
		Title:    "Streamflow regionalisation for ungauged basins",
		Abstract: "Estimates the hydrograph of an ungauged basin from a calibrated donor-gauge catalogue, by regression on catchment properties or by transferring parameter sets from nearby or physically similar donors.",
		Version:  "0.1",
		Inputs:   inputs,
		Outputs: []schema.Output{
			{Name: "hydrograph", Title: "Regionalised discharge estimate", MediaType: "text/csv"},
			{Name: "ensemble", Title: "Per-donor discharge traces", MediaType: "text/csv"},
			{Name: "diagnostics", Title: "Goodness-of-fit, produced when the forcing carries observed flow", MediaType: "text/csv"},
			{Name: "hydrograph_plot", Title: "Regionalised hydrograph figure", MediaType: "image/png"},
		},
	}
}

func (p *regionalisationProcess) Execute(ctx context.Context, r *Run) error {
	frc, err := hydro.ReadForcingFile(r.Files["ts"])
	if err != nil {
		return err
	}
	m, ok := hydro.ModelByName(r.Literals["model_name"])
	if !ok {
		return fmt.Errorf("unknown model %q", r.Literals["model_name"])
	}
	var props map[string]float64
	if err := json.Unmarshal([]byte(r.Literals["properties"]), &props); err != nil {
		return fmt.Errorf("properties must be a JSON object of numbers: %w", err)
	}
	ndonors, _ := strconv.Atoi(r.Literals["ndonors"])
	minNSE, _ := strconv.ParseFloat(r.Literals["min_nse"], 64)

	res, err := regional.Regionalize(m, frc, parseCatchment(r.Literals), regional.Options{
		Method:     r.Literals["method"],
		NDonors:    ndonors,
		MinNSE:     minNSE,
		Properties: props,
		Run:        parseRunOptions(r.Literals),
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fp := r.Path("hydrograph.csv")
	if err := writeHydrograph(fp, res.Final); err != nil {
		return err
	}
	r.AddOutput("hydrograph", fp, "text/csv")

	if len(res.Members) > 0 {
		names := make([]string, len(res.Members))
		for i, id := range res.DonorIDs {
			names[i] = "q_" + id
		}
		fp = r.Path("ensemble.csv")
		if err := writeEnsemble(fp, res.Final.Dates, res.Members, names); err != nil {
			return err
		}
		r.AddOutput("ensemble", fp, "text/csv")
	}

	if d, err := hydro.Diagnose(res.Final.Qobs, res.Final.Qsim); err == nil {
		fp = r.Path("diagnostics.csv")
		if err := hydro.WriteDiagnostics(fp, r.Literals["run_name"], d); err != nil {
			return err
		}
		r.AddOutput("diagnostics", fp, "text/csv")
	} else if err != hydro.ErrNoObservations {
		return err
	}

	fp = r.Path("hydrograph.png")
	if err := graphs.Hydrograph(fp, r.Literals["run_name"], res.Final.Dates, res.Final.Qsim, res.Final.Qobs); err != nil {
		return err
	}
	r.AddOutput("hydrograph_plot", fp, "image/png")
	return nil
}
