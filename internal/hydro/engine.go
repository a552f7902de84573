package hydro

import (
	"fmt"
	"math"
	"time"

	"github.com/maseology/goHydro/hru"
	"github.com/maseology/goHydro/pet"
	"github.com/maseology/goHydro/snowpack"
	"github.com/maseology/goHydro/solirrad"
)

// Prescott-type coefficients converting extraterrestrial to global radiation
// (Novák, 2012, pg.232).
const (
	prescottA = .27
	prescottB = .52
)

// Params configures the daily water-balance engine built from the goHydro
// primitives: a cold-content snowpack, Makkink potential evapotranspiration,
// an HRU soil-moisture store and two linear release reservoirs.
type Params struct {
	SoilCap   float64 // soil-moisture store capacity [m]
	DetCap    float64 // surface detention capacity [m]
	Fimp      float64 // impervious fraction [-]
	Perc      float64 // gravity percolation rate [m/d]
	BaseflowK float64 // groundwater linear release coefficient [1/d]
	RouteK    float64 // surface routing release coefficient [1/d]
	Tindex    float64 // cold-content temperature index
	DDF       float64 // degree-day melt factor [m/°C/d]
	DDFC      float64 // degree-day factor adjustment
	BaseT     float64 // melt base temperature [°C]
	TSF       float64 // temperature of snowfall factor
}

func defaultParams() Params {
	return Params{
		SoilCap:   .25,
		DetCap:    .001,
		Fimp:      0.,
		Perc:      .002,
		BaseflowK: .05,
		RouteK:    .5,
		Tindex:    .00035,
		DDF:       .0045,
		DDFC:      1.1,
		BaseT:     0.,
		TSF:       .3,
	}
}

// Catchment carries the basin attributes every simulation process accepts.
type Catchment struct {
	AreaKm2   float64
	Latitude  float64
	Longitude float64
	Elevation float64
}

// Simulator advances the engine one day at a time. Its state is held by
// value so a snapshot copy yields an independent continuation (used by the
// ensemble forecaster).
type Simulator struct {
	par     Params
	sp      snowpack.CCF
	si      solirrad.SolIrad
	ws      hru.HRU
	gw, rte float64
	areaKm2 float64
}

// NewSimulator builds an engine for one catchment.
func NewSimulator(par Params, c Catchment) *Simulator {
	return &Simulator{
		par:     par,
		sp:      snowpack.NewCCF(par.Tindex, par.DDF, par.DDFC, par.BaseT, par.TSF),
		si:      solirrad.New(c.Latitude, 0., 0.),
		ws:      hru.HRU{Sma: hru.Res{Cap: par.SoilCap}, Sdet: hru.Res{Cap: par.DetCap}, Fimp: par.Fimp, Perc: par.Perc},
		areaKm2: c.AreaKm2,
	}
}

// Snapshot returns an independent copy of the simulator state.
func (s *Simulator) Snapshot() *Simulator {
	cp := *s
	return &cp
}

// Step advances one day and returns simulated discharge [m³/s] along with
// actual ET and total storage depths [m].
func (s *Simulator) Step(d time.Time, rain, snow float64, tmin, tmax float64) (q, aet, sto float64) {
	tm := (tmin + tmax) / 2.

	y := s.sp.Update(rain, snow, tm) // snowmelt + rain yield [m]

	nN := 1. // sunshine-hour ratio; overcast on wet days
	if rain+snow > .001 {
		nN = 0.
	}
	kg := s.si.PSIdaily(d.YearDay()) * (prescottA + prescottB*nN)
	ep := pet.Makkink(kg, tm, 101300.)

	ro := s.ws.UpdateP(y)
	rch := s.ws.UpdatePerc()
	aet = s.ws.UpdateEp(ep)

	s.gw += rch
	qb := s.par.BaseflowK * s.gw
	s.gw -= qb

	s.rte += ro
	qr := s.par.RouteK * s.rte
	s.rte -= qr

	sto = s.ws.Storage() + s.gw + s.rte
	q = depthToCms(qr+qb, s.areaKm2)
	return q, aet, sto
}

// depthToCms converts a daily depth [m] over the catchment to m³/s.
func depthToCms(depth, areaKm2 float64) float64 {
	return depth * areaKm2 * 1e6 / 86400.
}

// RunResult is the outcome of a simulation over a forcing record.
type RunResult struct {
	Dates []time.Time
	Qsim  []float64 // [m³/s]
	Qobs  []float64 // [m³/s], NaN where unobserved
	Aet   []float64 // [m/d]
	Sto   []float64 // [m]
}

// RunOptions selects the simulation window and precipitation partitioning.
type RunOptions struct {
	StartDate        time.Time // zero value means start of record
	EndDate          time.Time // zero value means end of record
	RainSnowFraction string    // RainSnowDingman (default) or RainSnowThreshold
}

// Run simulates the full requested window.
func Run(m *Model, params []float64, frc *Forcing, c Catchment, opt RunOptions) (*RunResult, error) {
	if len(params) != m.NParams() {
		return nil, fmt.Errorf("model %s expects %d parameters, got %d", m.Name, m.NParams(), len(params))
	}
	if c.AreaKm2 <= 0 {
		return nil, fmt.Errorf("catchment area must be positive, got %g", c.AreaKm2)
	}

	win := frc
	if !opt.StartDate.IsZero() || !opt.EndDate.IsZero() {
		from, to := opt.StartDate, opt.EndDate
		if from.IsZero() {
			from = frc.Dates[0]
		}
		if to.IsZero() {
			to = frc.Dates[frc.Len()-1]
		}
		var err error
		if win, err = frc.Slice(from, to); err != nil {
			return nil, err
		}
	}

	sim := NewSimulator(m.Configure(params), c)
	n := win.Len()
	res := &RunResult{
		Dates: win.Dates,
		Qsim:  make([]float64, n),
		Qobs:  win.Qobs,
		Aet:   make([]float64, n),
		Sto:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		rain, snow := win.RainSnow(opt.RainSnowFraction, i)
		q, aet, sto := sim.Step(win.Dates[i], rain, snow, win.Tmin[i], win.Tmax[i])
		if math.IsNaN(q) {
			return nil, fmt.Errorf("simulation produced NaN discharge at %s", win.Dates[i].Format("2006-01-02"))
		}
		res.Qsim[i], res.Aet[i], res.Sto[i] = q, aet, sto
	}
	return res, nil
}
