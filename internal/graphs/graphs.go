// Package graphs renders the PNG artifacts of the graphing processes:
// hydrograph comparisons, ensemble uncertainty bands and flood-frequency
// fits.
package graphs

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	colObs    = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	colSim    = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	colBand   = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
	colMedian = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
)

func newTimePlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "date"
	p.Y.Label.Text = "discharge [m³/s]"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Legend.Top = true
	return p
}

func timeXYs(dates []time.Time, vals []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(dates[i].Unix()), Y: v})
	}
	return xys
}

func addLine(p *plot.Plot, name string, xys plotter.XYs, c color.Color, dashed bool) error {
	if len(xys) == 0 {
		return nil
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	l.Color = c
	if dashed {
		l.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
	}
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

// Hydrograph plots simulated against observed flow.
func Hydrograph(fp, title string, dates []time.Time, qsim, qobs []float64) error {
	p := newTimePlot(title)
	if err := addLine(p, "simulated", timeXYs(dates, qsim), colSim, false); err != nil {
		return err
	}
	if qobs != nil {
		if err := addLine(p, "observed", timeXYs(dates, qobs), colObs, false); err != nil {
			return err
		}
	}
	return p.Save(8*vg.Inch, 4*vg.Inch, fp)
}

// EnsembleUncertainty plots the member envelope as 10th/90th percentile
// bounds around the median, with observations overlaid when available.
func EnsembleUncertainty(fp, title string, dates []time.Time, median, q10, q90, qobs []float64) error {
	p := newTimePlot(title)
	if err := addLine(p, "10th pctl", timeXYs(dates, q10), colBand, true); err != nil {
		return err
	}
	if err := addLine(p, "90th pctl", timeXYs(dates, q90), colBand, true); err != nil {
		return err
	}
	if err := addLine(p, "median", timeXYs(dates, median), colMedian, false); err != nil {
		return err
	}
	if qobs != nil {
		if err := addLine(p, "observed", timeXYs(dates, qobs), colObs, false); err != nil {
			return err
		}
	}
	return p.Save(8*vg.Inch, 4*vg.Inch, fp)
}

// AnnualMaxima extracts the largest flow of each calendar year, skipping
// years without a single valid value.
func AnnualMaxima(dates []time.Time, q []float64) []float64 {
	return annualExtreme(dates, q, func(v, cur float64) bool { return v > cur })
}

// AnnualMinima extracts the smallest flow of each calendar year, skipping
// years without a single valid value.
func AnnualMinima(dates []time.Time, q []float64) []float64 {
	return annualExtreme(dates, q, func(v, cur float64) bool { return v < cur })
}

func annualExtreme(dates []time.Time, q []float64, better func(v, cur float64) bool) []float64 {
	byYear := map[int]float64{}
	for i, v := range q {
		if math.IsNaN(v) {
			continue
		}
		y := dates[i].Year()
		if cur, ok := byYear[y]; !ok || better(v, cur) {
			byYear[y] = v
		}
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	out := make([]float64, len(years))
	for i, y := range years {
		out[i] = byYear[y]
	}
	return out
}

// GumbelFit fits an extreme-value type I distribution to the sample by the
// method of moments.
func GumbelFit(maxima []float64) (mu, beta float64, err error) {
	if len(maxima) < 3 {
		return 0, 0, fmt.Errorf("frequency fit needs at least 3 annual maxima, have %d", len(maxima))
	}
	mean := stat.Mean(maxima, nil)
	sd := stat.StdDev(maxima, nil)
	beta = sd * math.Sqrt(6.) / math.Pi
	mu = mean - 0.5772156649*beta
	return mu, beta, nil
}

// GumbelQuantile returns the fitted flow of the given return period [years].
func GumbelQuantile(mu, beta, returnPeriod float64) float64 {
	return mu - beta*math.Log(-math.Log(1.-1./returnPeriod))
}

// FrequencyPlot renders the annual maxima against their fitted Gumbel curve
// on a reduced-variate axis.
func FrequencyPlot(fp, title string, maxima []float64, mu, beta float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "reduced variate -ln(-ln(F))"
	p.Y.Label.Text = "annual maximum discharge [m³/s]"
	p.Legend.Top = true
	p.Legend.Left = true

	// empirical points at Weibull plotting positions
	sorted := append([]float64(nil), maxima...)
	sort.Float64s(sorted)
	n := len(sorted)
	pts := make(plotter.XYs, n)
	for i, v := range sorted {
		f := float64(i+1) / float64(n+1)
		pts[i] = plotter.XY{X: -math.Log(-math.Log(f)), Y: v}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.Color = colObs
	p.Add(sc)
	p.Legend.Add("annual maxima", sc)

	fitted := make(plotter.XYs, 0, 64)
	x0, x1 := pts[0].X-.5, pts[n-1].X+1.5
	for x := x0; x <= x1; x += (x1 - x0) / 63. {
		fitted = append(fitted, plotter.XY{X: x, Y: mu + beta*x})
	}
	l, err := plotter.NewLine(fitted)
	if err != nil {
		return err
	}
	l.Color = colSim
	p.Add(l)
	p.Legend.Add("Gumbel fit", l)

	return p.Save(6*vg.Inch, 4*vg.Inch, fp)
}
