package hydro

import (
	"fmt"
	"math"

	"github.com/maseology/mmio"
	"github.com/maseology/objfunc"
)

// Diagnostics carries the standard goodness-of-fit scores computed by the
// external statistics library.
type Diagnostics struct {
	NSE     float64
	KGE     float64
	RMSE    float64
	PctBias float64
}

// ErrNoObservations is returned when diagnostics are requested for a run
// without any observed flow.
var ErrNoObservations = fmt.Errorf("no observed flow available for diagnostics")

// Diagnose scores simulated against observed flow, skipping unobserved days.
func Diagnose(obs, sim []float64) (*Diagnostics, error) {
	fo := make([]float64, 0, len(obs))
	fs := make([]float64, 0, len(sim))
	for i := range obs {
		if math.IsNaN(obs[i]) || math.IsNaN(sim[i]) {
			continue
		}
		fo = append(fo, obs[i])
		fs = append(fs, sim[i])
	}
	if len(fo) == 0 {
		return nil, ErrNoObservations
	}
	return &Diagnostics{
		NSE:     objfunc.NSE(fo, fs),
		KGE:     objfunc.KGE(fo, fs),
		RMSE:    objfunc.RMSE(fo, fs),
		PctBias: objfunc.Bias(fo, fs) * 100.,
	}, nil
}

// WriteDiagnostics writes the two-line diagnostics CSV: header row of DIAG_*
// names, value row beneath.
func WriteDiagnostics(fp, runName string, d *Diagnostics) error {
	tw, err := mmio.NewTXTwriter(fp)
	if err != nil {
		return err
	}
	defer tw.Close()

	tw.WriteLine("run_name,DIAG_NASH_SUTCLIFFE,DIAG_KLING_GUPTA,DIAG_RMSE,DIAG_PCT_BIAS")
	tw.WriteLine(fmt.Sprintf("%s,%f,%f,%f,%f", runName, d.NSE, d.KGE, d.RMSE, d.PctBias))
	return nil
}
