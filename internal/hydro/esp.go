package hydro

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Ensemble is a set of equally likely forecast traces sharing one date axis.
type Ensemble struct {
	Dates   []time.Time
	Members [][]float64 // [m³/s], one slice per member
	Years   []int       // source year of each member
}

// EspOptions configures a climatology-based ensemble streamflow prediction.
type EspOptions struct {
	ForecastDate time.Time
	DurationDays int
	Run          RunOptions
}

// ClimatologyESP warms the engine over the record up to the forecast date and
// then continues it once per historical year, resampling that year's forcings
// from the same day of year. The forecast year itself is excluded.
func ClimatologyESP(m *Model, params []float64, frc *Forcing, c Catchment, opt EspOptions) (*Ensemble, error) {
	if len(params) != m.NParams() {
		return nil, fmt.Errorf("model %s expects %d parameters, got %d", m.Name, m.NParams(), len(params))
	}
	if opt.DurationDays <= 0 {
		opt.DurationDays = 365
	}
	fd := opt.ForecastDate
	if fd.Before(frc.Dates[0]) || fd.After(frc.Dates[frc.Len()-1]) {
		return nil, fmt.Errorf("forecast date %s outside forcing record", fd.Format("2006-01-02"))
	}

	// spin-up to the forecast date
	warm := NewSimulator(m.Configure(params), c)
	iFcst := -1
	for i, d := range frc.Dates {
		if !d.Before(fd) {
			iFcst = i
			break
		}
		rain, snow := frc.RainSnow(opt.Run.RainSnowFraction, i)
		warm.Step(d, rain, snow, frc.Tmin[i], frc.Tmax[i])
	}
	if iFcst < 0 {
		return nil, fmt.Errorf("forecast date %s outside forcing record", fd.Format("2006-01-02"))
	}

	dates := make([]time.Time, opt.DurationDays)
	for i := range dates {
		dates[i] = fd.AddDate(0, 0, i)
	}

	ens := &Ensemble{Dates: dates}
	for yr := frc.Dates[0].Year(); yr <= frc.Dates[frc.Len()-1].Year(); yr++ {
		if yr == fd.Year() {
			continue
		}
		i0 := indexOf(frc, time.Date(yr, fd.Month(), fd.Day(), 0, 0, 0, 0, time.UTC))
		if i0 < 0 || i0+opt.DurationDays > frc.Len() {
			continue // member year does not fully cover the forecast horizon
		}

		sim := warm.Snapshot()
		member := make([]float64, opt.DurationDays)
		for k := 0; k < opt.DurationDays; k++ {
			i := i0 + k
			rain, snow := frc.RainSnow(opt.Run.RainSnowFraction, i)
			q, _, _ := sim.Step(dates[k], rain, snow, frc.Tmin[i], frc.Tmax[i])
			member[k] = q
		}
		ens.Members = append(ens.Members, member)
		ens.Years = append(ens.Years, yr)
	}
	if len(ens.Members) == 0 {
		return nil, fmt.Errorf("no historical year fully covers a %d-day horizon from %s",
			opt.DurationDays, fd.Format("01-02"))
	}
	return ens, nil
}

func indexOf(frc *Forcing, d time.Time) int {
	for i, fd := range frc.Dates {
		if fd.Equal(d) {
			return i
		}
	}
	return -1
}

// Quantile returns the per-day empirical quantile across members.
func (e *Ensemble) Quantile(p float64) []float64 {
	out := make([]float64, len(e.Dates))
	vals := make([]float64, len(e.Members))
	for i := range e.Dates {
		for j, m := range e.Members {
			vals[j] = m[i]
		}
		sort.Float64s(vals)
		out[i] = stat.Quantile(p, stat.Empirical, vals, nil)
	}
	return out
}

// Median returns the per-day ensemble median.
func (e *Ensemble) Median() []float64 { return e.Quantile(.5) }
