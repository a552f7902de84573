// Package regional transfers calibrated parameters from gauged donor
// catchments to an ungauged target, either by multiple linear regression
// against catchment properties or by running the donors' parameter sets
// directly on the target.
package regional

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"hydroproc/internal/hydro"
)

// Regionalisation method names.
const (
	MethodMLR     = "MLR"
	MethodSP      = "SP"
	MethodPS      = "PS"
	MethodSPIDW   = "SP_IDW"
	MethodPSIDW   = "PS_IDW"
	MethodSPIDWRA = "SP_IDW_RA"
	MethodPSIDWRA = "PS_IDW_RA"
)

// Methods lists the supported method names in a stable order.
func Methods() []string {
	return []string{MethodMLR, MethodSP, MethodPS, MethodSPIDW, MethodPSIDW, MethodSPIDWRA, MethodPSIDWRA}
}

// PropertyNames are the catchment descriptors the donor catalogue carries
// and the regression operates on.
func PropertyNames() []string {
	return []string{"latitude", "longitude", "area", "elevation", "slope", "forest", "gravelius"}
}

// regressorNames excludes the coordinates, which drive spatial proximity
// but not the regression.
var regressorNames = []string{"area", "elevation", "slope", "forest", "gravelius"}

// Gauge is one donor catchment of the embedded catalogue.
type Gauge struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Properties map[string]float64   `json:"properties"`
	NSE        map[string]float64   `json:"nse"`
	Params     map[string][]float64 `json:"params"`
}

//go:embed gauges.json
var gaugesJSON []byte

var (
	catOnce sync.Once
	catal   []Gauge
	catErr  error
)

// Catalogue returns the embedded donor gauges.
func Catalogue() ([]Gauge, error) {
	catOnce.Do(func() {
		catErr = json.Unmarshal(gaugesJSON, &catal)
	})
	return catal, catErr
}

// Options selects the transfer method and donor pool.
type Options struct {
	Method     string
	NDonors    int     // donors used by the proximity methods, default 5
	MinNSE     float64 // donors below this calibration score are excluded, default 0.6
	Properties map[string]float64
	Run        hydro.RunOptions
}

// Result is a regionalised simulation: the transferred hydrograph plus the
// individual donor traces it was built from.
type Result struct {
	Final    *hydro.RunResult
	Members  [][]float64 // per-donor discharge traces, empty for MLR
	DonorIDs []string
	Params   [][]float64 // parameter set behind each member
	Weights  []float64
}

// Regionalize estimates the target's hydrograph from the donor catalogue.
func Regionalize(m *hydro.Model, frc *hydro.Forcing, c hydro.Catchment, opt Options) (*Result, error) {
	if opt.NDonors <= 0 {
		opt.NDonors = 5
	}
	if opt.MinNSE == 0 {
		opt.MinNSE = .6
	}
	donors, err := eligibleDonors(m.Name, opt.MinNSE)
	if err != nil {
		return nil, err
	}

	switch opt.Method {
	case MethodMLR:
		params, _, err := mlrParams(m, donors, opt.Properties)
		if err != nil {
			return nil, err
		}
		final, err := hydro.Run(m, params, frc, c, opt.Run)
		if err != nil {
			return nil, err
		}
		return &Result{Final: final, DonorIDs: donorIDs(donors), Params: [][]float64{params}, Weights: []float64{1.}}, nil

	case MethodSP, MethodPS, MethodSPIDW, MethodPSIDW, MethodSPIDWRA, MethodPSIDWRA:
		spatial := opt.Method == MethodSP || opt.Method == MethodSPIDW || opt.Method == MethodSPIDWRA
		idw := opt.Method != MethodSP && opt.Method != MethodPS
		ra := opt.Method == MethodSPIDWRA || opt.Method == MethodPSIDWRA

		ranked, dist, err := rankDonors(donors, opt.Properties, spatial)
		if err != nil {
			return nil, err
		}
		n := opt.NDonors
		if n > len(ranked) {
			n = len(ranked)
		}
		if n == 0 {
			return nil, fmt.Errorf("no donor passed the %.2f NSE screen for model %s", opt.MinNSE, m.Name)
		}
		ranked, dist = ranked[:n], dist[:n]

		weights := uniformWeights(n)
		if idw {
			weights = idwWeights(dist)
		}

		var mlr []float64
		var r2 []float64
		if ra {
			if mlr, r2, err = mlrParams(m, donors, opt.Properties); err != nil {
				return nil, err
			}
		}

		res := &Result{Weights: weights}
		var wsum []float64
		for k, g := range ranked {
			params := append([]float64(nil), g.Params[m.Name]...)
			if ra {
				// trust the regression only where it explains the donors
				for j := range params {
					if r2[j] > .5 {
						params[j] = mlr[j]
					}
				}
			}
			run, err := hydro.Run(m, params, frc, c, opt.Run)
			if err != nil {
				return nil, err
			}
			if wsum == nil {
				wsum = make([]float64, len(run.Qsim))
				res.Final = &hydro.RunResult{Dates: run.Dates, Qobs: run.Qobs, Qsim: wsum}
			}
			for i, q := range run.Qsim {
				wsum[i] += weights[k] * q
			}
			res.Members = append(res.Members, run.Qsim)
			res.DonorIDs = append(res.DonorIDs, g.ID)
			res.Params = append(res.Params, params)
		}
		return res, nil

	default:
		return nil, fmt.Errorf("unknown regionalisation method %q", opt.Method)
	}
}

func eligibleDonors(model string, minNSE float64) ([]Gauge, error) {
	cat, err := Catalogue()
	if err != nil {
		return nil, err
	}
	var out []Gauge
	for _, g := range cat {
		if _, ok := g.Params[model]; !ok {
			continue
		}
		if g.NSE[model] < minNSE {
			continue
		}
		out = append(out, g)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no donor passed the %.2f NSE screen for model %s", minNSE, model)
	}
	return out, nil
}

func donorIDs(gs []Gauge) []string {
	ids := make([]string, len(gs))
	for i, g := range gs {
		ids[i] = g.ID
	}
	return ids
}

// rankDonors orders donors by increasing distance to the target, either
// great-circle (spatial) or normalized property dissimilarity (physical).
func rankDonors(donors []Gauge, props map[string]float64, spatial bool) ([]Gauge, []float64, error) {
	dist := make([]float64, len(donors))
	if spatial {
		lat, ok1 := props["latitude"]
		lon, ok2 := props["longitude"]
		if !ok1 || !ok2 {
			return nil, nil, fmt.Errorf("spatial proximity requires latitude and longitude properties")
		}
		for i, g := range donors {
			dist[i] = haversineKm(lat, lon, g.Properties["latitude"], g.Properties["longitude"])
		}
	} else {
		// scale each property by its donor-pool spread so units cancel
		sd := map[string]float64{}
		for _, name := range regressorNames {
			vals := make([]float64, len(donors))
			for i, g := range donors {
				vals[i] = g.Properties[name]
			}
			sd[name] = stat.StdDev(vals, nil)
			if sd[name] == 0 {
				sd[name] = 1.
			}
		}
		for i, g := range donors {
			var s float64
			var n int
			for _, name := range regressorNames {
				v, ok := props[name]
				if !ok {
					continue
				}
				s += math.Abs(v-g.Properties[name]) / sd[name]
				n++
			}
			if n == 0 {
				return nil, nil, fmt.Errorf("physical similarity requires at least one of %v", regressorNames)
			}
			dist[i] = s / float64(n)
		}
	}

	idx := make([]int, len(donors))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })
	rg := make([]Gauge, len(donors))
	rd := make([]float64, len(donors))
	for k, i := range idx {
		rg[k] = donors[i]
		rd[k] = dist[i]
	}
	return rg, rd, nil
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1. / float64(n)
	}
	return w
}

// idwWeights converts distances to normalized inverse-distance weights.
func idwWeights(dist []float64) []float64 {
	w := make([]float64, len(dist))
	var sum float64
	for i, d := range dist {
		if d < 1e-6 {
			d = 1e-6
		}
		w[i] = 1. / d
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// mlrParams regresses each model parameter against the donor properties and
// evaluates the fit at the target. Estimates are clamped to the model's
// calibration bounds. Also returns the per-parameter r².
func mlrParams(m *hydro.Model, donors []Gauge, props map[string]float64) ([]float64, []float64, error) {
	nr := len(regressorNames)
	if len(donors) < nr+2 {
		return nil, nil, fmt.Errorf("regression needs at least %d donors, have %d", nr+2, len(donors))
	}
	for _, name := range regressorNames {
		if _, ok := props[name]; !ok {
			return nil, nil, fmt.Errorf("regression requires property %q", name)
		}
	}

	x := mat.NewDense(len(donors), nr+1, nil)
	for i, g := range donors {
		x.Set(i, 0, 1.)
		for j, name := range regressorNames {
			x.Set(i, j+1, g.Properties[name])
		}
	}
	var qr mat.QR
	qr.Factorize(x)

	xt := make([]float64, nr+1)
	xt[0] = 1.
	for j, name := range regressorNames {
		xt[j+1] = props[name]
	}

	np := m.NParams()
	est := make([]float64, np)
	r2 := make([]float64, np)
	y := mat.NewVecDense(len(donors), nil)
	for p := 0; p < np; p++ {
		for i, g := range donors {
			y.SetVec(i, g.Params[m.Name][p])
		}
		var beta mat.VecDense
		if err := qr.SolveVecTo(&beta, false, y); err != nil {
			return nil, nil, fmt.Errorf("regression failed for parameter %s: %w", m.ParamNames[p], err)
		}

		var v float64
		for j := 0; j <= nr; j++ {
			v += beta.AtVec(j) * xt[j]
		}
		if v < m.Lower[p] {
			v = m.Lower[p]
		}
		if v > m.Upper[p] {
			v = m.Upper[p]
		}
		est[p] = v
		r2[p] = rSquared(x, &beta, y)
	}
	return est, r2, nil
}

func rSquared(x mat.Matrix, beta mat.Vector, y *mat.VecDense) float64 {
	n, _ := x.Dims()
	ybar := stat.Mean(y.RawVector().Data, nil)
	var ssr, sst float64
	for i := 0; i < n; i++ {
		var yhat float64
		for j := 0; j < beta.Len(); j++ {
			yhat += x.At(i, j) * beta.AtVec(j)
		}
		d := y.AtVec(i) - yhat
		ssr += d * d
		dm := y.AtVec(i) - ybar
		sst += dm * dm
	}
	if sst == 0 {
		return 0
	}
	return 1. - ssr/sst
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const r = 6371.
	p1, p2 := lat1*math.Pi/180., lat2*math.Pi/180.
	dp, dl := (lat2-lat1)*math.Pi/180., (lon2-lon1)*math.Pi/180.
	a := math.Sin(dp/2.)*math.Sin(dp/2.) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2.)*math.Sin(dl/2.)
	return 2. * r * math.Asin(math.Sqrt(a))
}
