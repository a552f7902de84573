package hydro

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthForcing builds a multi-year daily record with seasonal temperature and
// periodic precipitation. When withObs is true the observed flow is the
// engine's own GR4JCN default run, giving a known perfect-fit target.
func synthForcing(t *testing.T, years int, withObs bool) *Forcing {
	t.Helper()
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	n := years * 365
	frc := &Forcing{
		Dates:  make([]time.Time, n),
		Precip: make([]float64, n),
		Tmin:   make([]float64, n),
		Tmax:   make([]float64, n),
		Qobs:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		frc.Dates[i] = d
		doy := float64(d.YearDay())
		tm := 8. - 18.*math.Cos(2.*math.Pi*doy/365.25)
		frc.Tmin[i] = tm - 4.
		frc.Tmax[i] = tm + 4.
		if i%3 == 0 {
			frc.Precip[i] = .004 + .003*math.Sin(2.*math.Pi*doy/365.25) // [m]
		}
		frc.Qobs[i] = math.NaN()
	}
	if withObs {
		m, _ := ModelByName(ModelGR4JCN)
		res, err := Run(m, m.Defaults, frc, testCatchment(), RunOptions{})
		require.NoError(t, err)
		copy(frc.Qobs, res.Qsim)
	}
	return frc
}

func testCatchment() Catchment {
	return Catchment{AreaKm2: 4250.6, Latitude: 54.48, Longitude: -123.37, Elevation: 843.}
}

func TestReadForcingFile(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "met.csv")
	data := "date,precip,tmin,tmax,qobs\n" +
		"2000-01-01,0.0,-10.0,-2.0,12.5\n" +
		"2000-01-02,5.2,-8.0,0.5,\n" +
		"2000-01-03,1.1,2.0,9.0,14.0\n"
	require.NoError(t, os.WriteFile(fp, []byte(data), 0o644))

	frc, err := ReadForcingFile(fp)
	require.NoError(t, err)
	require.Equal(t, 3, frc.Len())
	assert.InDelta(t, .0052, frc.Precip[1], 1e-12) // mm on disk, metres in memory
	assert.True(t, math.IsNaN(frc.Qobs[1]))
	assert.Equal(t, 12.5, frc.Qobs[0])
	assert.True(t, frc.HasObs())
}

func TestReadForcingFileRejectsUnorderedDates(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "met.csv")
	data := "date,precip,tmin,tmax\n" +
		"2000-01-02,0.0,-10.0,-2.0\n" +
		"2000-01-01,5.2,-8.0,0.5\n"
	require.NoError(t, os.WriteFile(fp, []byte(data), 0o644))

	_, err := ReadForcingFile(fp)
	assert.Error(t, err)
}

func TestWriteReadSeriesRoundTrip(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "q.csv")
	dates := []time.Time{
		time.Date(2001, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, WriteSeries(fp, dates, map[string][]float64{
		"q_sim": {1.25, 2.5},
		"q_obs": {3., math.NaN()},
	}, []string{"q_sim", "q_obs"}))

	names, rdates, cols, err := ReadSeries(fp)
	require.NoError(t, err)
	assert.Equal(t, []string{"q_sim", "q_obs"}, names)
	require.Len(t, rdates, 2)
	assert.True(t, dates[1].Equal(rdates[1]))
	assert.Equal(t, 2.5, cols["q_sim"][1])
	assert.True(t, math.IsNaN(cols["q_obs"][1]))
}

func TestRainSnowPartition(t *testing.T) {
	frc := &Forcing{
		Dates:  []time.Time{time.Now(), time.Now(), time.Now()},
		Precip: []float64{.01, .01, .01},
		Tmin:   []float64{-12., -2., 6.},
		Tmax:   []float64{-4., 4., 14.},
	}
	rain, snow := frc.RainSnow(RainSnowDingman, 0)
	assert.Zero(t, rain)
	assert.Equal(t, .01, snow)

	rain, snow = frc.RainSnow(RainSnowDingman, 1)
	assert.Greater(t, rain, 0.)
	assert.Greater(t, snow, 0.)
	assert.InDelta(t, .01, rain+snow, 1e-12)

	rain, snow = frc.RainSnow(RainSnowThreshold, 2)
	assert.Equal(t, .01, rain)
	assert.Zero(t, snow)
}

func TestModelCatalogue(t *testing.T) {
	wantParams := map[string]int{
		ModelGR4JCN: 6,
		ModelMOHYSE: 10,
		ModelHMETS:  21,
		ModelHBVEC:  21,
	}
	for _, name := range ModelNames() {
		m, ok := ModelByName(name)
		require.True(t, ok, name)
		assert.Equal(t, wantParams[name], m.NParams(), name)
		require.Len(t, m.Defaults, m.NParams(), name)
		require.Len(t, m.Lower, m.NParams(), name)
		require.Len(t, m.Upper, m.NParams(), name)
		for i := range m.Lower {
			assert.LessOrEqual(t, m.Lower[i], m.Upper[i], "%s %s", name, m.ParamNames[i])
		}
	}
	_, ok := ModelByName("TOPMODEL")
	assert.False(t, ok)
}

func TestRunShapesAndNonNegativity(t *testing.T) {
	frc := synthForcing(t, 2, false)
	for _, name := range ModelNames() {
		m, _ := ModelByName(name)
		res, err := Run(m, m.Defaults, frc, testCatchment(), RunOptions{})
		require.NoError(t, err, name)
		require.Len(t, res.Qsim, frc.Len(), name)
		for i, q := range res.Qsim {
			require.GreaterOrEqual(t, q, 0., "%s day %d", name, i)
		}
	}
}

func TestRunWindow(t *testing.T) {
	frc := synthForcing(t, 2, false)
	m, _ := ModelByName(ModelGR4JCN)
	from := time.Date(2000, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2000, 8, 31, 0, 0, 0, 0, time.UTC)
	res, err := Run(m, m.Defaults, frc, testCatchment(), RunOptions{StartDate: from, EndDate: to})
	require.NoError(t, err)
	assert.Len(t, res.Qsim, 92)
	assert.True(t, res.Dates[0].Equal(from))
}

func TestRunRejectsBadInputs(t *testing.T) {
	frc := synthForcing(t, 1, false)
	m, _ := ModelByName(ModelGR4JCN)

	_, err := Run(m, []float64{1., 2.}, frc, testCatchment(), RunOptions{})
	assert.Error(t, err)

	_, err = Run(m, m.Defaults, frc, Catchment{AreaKm2: -5.}, RunOptions{})
	assert.Error(t, err)
}

func TestDiagnosePerfectFit(t *testing.T) {
	obs := []float64{1., 2., 3., 4., math.NaN(), 6.}
	sim := []float64{1., 2., 3., 4., 5., 6.}
	d, err := Diagnose(obs, sim)
	require.NoError(t, err)
	assert.InDelta(t, 1., d.NSE, 1e-9)
	assert.InDelta(t, 0., d.RMSE, 1e-9)
	assert.InDelta(t, 0., d.PctBias, 1e-9)
}

func TestDiagnoseNoObservations(t *testing.T) {
	_, err := Diagnose([]float64{math.NaN()}, []float64{1.})
	assert.ErrorIs(t, err, ErrNoObservations)
}

func TestWriteDiagnostics(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "diagnostics.csv")
	require.NoError(t, WriteDiagnostics(fp, "raven-gr4j-cemaneige", &Diagnostics{NSE: .83, KGE: .8, RMSE: 12.4, PctBias: -3.1}))

	b, err := os.ReadFile(fp)
	require.NoError(t, err)
	assert.Contains(t, string(b), "DIAG_NASH_SUTCLIFFE")
	assert.Contains(t, string(b), "raven-gr4j-cemaneige")
}

func TestCalibrateRecoversSkill(t *testing.T) {
	frc := synthForcing(t, 3, true)
	m, _ := ModelByName(ModelGR4JCN)

	res, err := Calibrate(m, frc, testCatchment(), CalibOptions{
		Algorithm: AlgoRBF,
		MaxEvals:  12,
		Seed:      1984,
	})
	require.NoError(t, err)
	require.Len(t, res.Params, m.NParams())
	for i, p := range res.Params {
		assert.GreaterOrEqual(t, p, m.Lower[i])
		assert.LessOrEqual(t, p, m.Upper[i])
	}
	assert.NotEmpty(t, res.Trace)
	// the optimum can never beat a perfect synthetic target
	assert.LessOrEqual(t, res.Diagnostics.NSE, 1.+1e-9)
	// and must at least match the best presampled point
	for _, tp := range res.Trace {
		assert.GreaterOrEqual(t, res.Diagnostics.NSE, tp.NSE-1e-9)
	}
}

func TestCalibrateRequiresObservations(t *testing.T) {
	frc := synthForcing(t, 1, false)
	m, _ := ModelByName(ModelGR4JCN)
	_, err := Calibrate(m, frc, testCatchment(), CalibOptions{MaxEvals: 4})
	assert.Error(t, err)
}

func TestClimatologyESP(t *testing.T) {
	frc := synthForcing(t, 4, false)
	m, _ := ModelByName(ModelMOHYSE)

	ens, err := ClimatologyESP(m, m.Defaults, frc, testCatchment(), EspOptions{
		ForecastDate: time.Date(2002, 6, 1, 0, 0, 0, 0, time.UTC),
		DurationDays: 30,
	})
	require.NoError(t, err)
	assert.NotContains(t, ens.Years, 2002) // forecast year is held out
	require.NotEmpty(t, ens.Members)
	for _, mem := range ens.Members {
		require.Len(t, mem, 30)
	}
	require.Len(t, ens.Dates, 30)

	med := ens.Median()
	lo := ens.Quantile(.1)
	hi := ens.Quantile(.9)
	for i := range med {
		assert.LessOrEqual(t, lo[i], med[i])
		assert.LessOrEqual(t, med[i], hi[i])
	}
}

func TestClimatologyESPOutsideRecord(t *testing.T) {
	frc := synthForcing(t, 2, false)
	m, _ := ModelByName(ModelGR4JCN)
	_, err := ClimatologyESP(m, m.Defaults, frc, testCatchment(), EspOptions{
		ForecastDate: time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}
