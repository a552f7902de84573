package graphs

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPNG(t *testing.T, fp string) {
	t.Helper()
	b, err := os.ReadFile(fp)
	require.NoError(t, err)
	require.Greater(t, len(b), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, b[:4])
}

func seriesFixture(n int) ([]time.Time, []float64, []float64) {
	dates := make([]time.Time, n)
	qsim := make([]float64, n)
	qobs := make([]float64, n)
	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		dates[i] = start.AddDate(0, 0, i)
		qsim[i] = 10. + 5.*math.Sin(float64(i)/20.)
		qobs[i] = qsim[i] * 1.1
		if i%7 == 0 {
			qobs[i] = math.NaN()
		}
	}
	return dates, qsim, qobs
}

func TestHydrograph(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "hydrograph.png")
	dates, qsim, qobs := seriesFixture(120)
	require.NoError(t, Hydrograph(fp, "test basin", dates, qsim, qobs))
	assertPNG(t, fp)
}

func TestHydrographWithoutObservations(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "hydrograph.png")
	dates, qsim, _ := seriesFixture(60)
	require.NoError(t, Hydrograph(fp, "test basin", dates, qsim, nil))
	assertPNG(t, fp)
}

func TestEnsembleUncertainty(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "forecast.png")
	dates, med, qobs := seriesFixture(90)
	q10 := make([]float64, len(med))
	q90 := make([]float64, len(med))
	for i, v := range med {
		q10[i] = v * .7
		q90[i] = v * 1.4
	}
	require.NoError(t, EnsembleUncertainty(fp, "forecast", dates, med, q10, q90, qobs))
	assertPNG(t, fp)
}

func TestAnnualMaxima(t *testing.T) {
	dates := []time.Time{
		time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2002, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	q := []float64{12., 30., 18., math.NaN()}
	mx := AnnualMaxima(dates, q)
	assert.Equal(t, []float64{30., 18.}, mx) // 2002 has no valid value
}

func TestGumbelFit(t *testing.T) {
	maxima := []float64{105., 92., 130., 118., 99., 142., 88., 121.}
	mu, beta, err := GumbelFit(maxima)
	require.NoError(t, err)
	assert.Greater(t, beta, 0.)
	assert.Less(t, mu, 130.)

	// return-period quantiles grow monotonically
	q2 := GumbelQuantile(mu, beta, 2.)
	q20 := GumbelQuantile(mu, beta, 20.)
	q100 := GumbelQuantile(mu, beta, 100.)
	assert.Less(t, q2, q20)
	assert.Less(t, q20, q100)

	_, _, err = GumbelFit([]float64{1., 2.})
	assert.Error(t, err)
}

func TestFrequencyPlot(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "frequency.png")
	maxima := []float64{105., 92., 130., 118., 99., 142., 88., 121.}
	mu, beta, err := GumbelFit(maxima)
	require.NoError(t, err)
	require.NoError(t, FrequencyPlot(fp, "flood frequency", maxima, mu, beta))
	assertPNG(t, fp)
}
