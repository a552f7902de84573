package hydro

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/maseology/glbopt"
	"github.com/maseology/mmaths"
	"github.com/maseology/montecarlo/smpln"
	mrg63k3a "github.com/maseology/goRNG/MRG63k3a"
)

// Calibration optimizer names accepted by the calibration processes.
const (
	AlgoSCE = "SCE"
	AlgoRBF = "RBF"
)

// CalibOptions selects the optimizer and its sampling budget.
type CalibOptions struct {
	Algorithm string // AlgoSCE (default) or AlgoRBF
	MaxEvals  int
	Seed      int64 // 0 means time-seeded
	Lower     []float64
	Upper     []float64
	Run       RunOptions
}

// TracePoint is one presampled parameter set and its objective value.
type TracePoint struct {
	Params []float64
	NSE    float64
}

// CalibResult holds the optimized parameter set and its scores.
type CalibResult struct {
	Params      []float64
	Diagnostics *Diagnostics
	Final       *RunResult
	Trace       []TracePoint
}

// Calibrate searches the model's parameter space maximizing NSE against the
// observed flow in frc. The search itself is delegated to the external
// optimizer; bounds default to the model's published ranges.
func Calibrate(m *Model, frc *Forcing, c Catchment, opt CalibOptions) (*CalibResult, error) {
	if !frc.HasObs() {
		return nil, fmt.Errorf("calibration requires observed flow in the forcing record")
	}
	lo, hi := opt.Lower, opt.Upper
	if lo == nil {
		lo = m.Lower
	}
	if hi == nil {
		hi = m.Upper
	}
	if len(lo) != m.NParams() || len(hi) != m.NParams() {
		return nil, fmt.Errorf("model %s expects %d bounds, got %d lower and %d upper",
			m.Name, m.NParams(), len(lo), len(hi))
	}
	for i := range lo {
		if lo[i] > hi[i] {
			return nil, fmt.Errorf("parameter %s: lower bound %g above upper bound %g",
				m.ParamNames[i], lo[i], hi[i])
		}
	}
	nEval := opt.MaxEvals
	if nEval <= 0 {
		nEval = 50
	}

	ndim := m.NParams()
	toParams := func(u []float64) []float64 {
		x := make([]float64, ndim)
		for i := range u {
			x[i] = mmaths.LinearTransform(lo[i], hi[i], u[i])
		}
		return x
	}
	score := func(x []float64) float64 {
		res, err := Run(m, x, frc, c, opt.Run)
		if err != nil {
			return math.Inf(-1)
		}
		d, err := Diagnose(res.Qobs, res.Qsim)
		if err != nil {
			return math.Inf(-1)
		}
		return d.NSE
	}
	gen := func(u []float64) float64 { return 1. - score(toParams(u)) } // minimized

	rng := rand.New(mrg63k3a.New())
	if opt.Seed != 0 {
		rng.Seed(opt.Seed)
	} else {
		rng.Seed(time.Now().UnixNano())
	}

	// presample the space for the objective trace artifact
	nPre := nEval / 2
	if nPre > 64 {
		nPre = 64
	}
	if nPre < 4 {
		nPre = 4
	}
	trace := make([]TracePoint, 0, nPre)
	sp := smpln.NewLHC(rng, nPre, ndim, false)
	for k := 0; k < nPre; k++ {
		ut := make([]float64, ndim)
		for j := 0; j < ndim; j++ {
			ut[j] = sp.U[j][k]
		}
		x := toParams(ut)
		trace = append(trace, TracePoint{Params: x, NSE: score(x)})
	}

	var uFinal []float64
	switch opt.Algorithm {
	case AlgoRBF:
		uFinal, _ = glbopt.SurrogateRBF(nEval, ndim, rng, gen)
	default:
		ncmplx := runtime.GOMAXPROCS(0)
		if ncmplx < 2 {
			ncmplx = 2
		}
		uFinal, _ = glbopt.SCE(ncmplx, ndim, rng, gen, true)
	}

	params := toParams(uFinal)
	final, err := Run(m, params, frc, c, opt.Run)
	if err != nil {
		return nil, err
	}
	diag, err := Diagnose(final.Qobs, final.Qsim)
	if err != nil {
		return nil, err
	}

	// keep the best point seen, optimizer or presample
	best := &CalibResult{Params: params, Diagnostics: diag, Final: final, Trace: trace}
	for _, tp := range trace {
		if tp.NSE > best.Diagnostics.NSE {
			res, err := Run(m, tp.Params, frc, c, opt.Run)
			if err != nil {
				continue
			}
			d, err := Diagnose(res.Qobs, res.Qsim)
			if err != nil {
				continue
			}
			best.Params, best.Diagnostics, best.Final = tp.Params, d, res
		}
	}
	return best, nil
}
