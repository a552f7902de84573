package regional

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydroproc/internal/hydro"
)

func synthForcing(t *testing.T) *hydro.Forcing {
	t.Helper()
	start := time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 2 * 365
	frc := &hydro.Forcing{
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
		tm := 7. - 16.*math.Cos(2.*math.Pi*doy/365.25)
		frc.Tmin[i] = tm - 5.
		frc.Tmax[i] = tm + 5.
		if i%4 == 0 {
			frc.Precip[i] = .006
		}
		frc.Qobs[i] = math.NaN()
	}
	return frc
}

func targetProps() map[string]float64 {
	return map[string]float64{
		"latitude":  45.5,
		"longitude": -76.2,
		"area":      1250.,
		"elevation": 320.,
		"slope":     4.5,
		"forest":    62.,
		"gravelius": 1.4,
	}
}

func targetCatchment() hydro.Catchment {
	return hydro.Catchment{AreaKm2: 1250., Latitude: 45.5, Longitude: -76.2, Elevation: 320.}
}

func TestCatalogue(t *testing.T) {
	cat, err := Catalogue()
	require.NoError(t, err)
	require.NotEmpty(t, cat)
	for _, g := range cat {
		assert.NotEmpty(t, g.ID)
		for _, name := range PropertyNames() {
			_, ok := g.Properties[name]
			assert.True(t, ok, "%s missing %s", g.ID, name)
		}
		for _, mn := range hydro.ModelNames() {
			m, _ := hydro.ModelByName(mn)
			require.Len(t, g.Params[mn], m.NParams(), "%s %s", g.ID, mn)
		}
	}
}

func TestEligibleDonorsScreenByNSE(t *testing.T) {
	all, err := eligibleDonors(hydro.ModelGR4JCN, -1.)
	require.NoError(t, err)
	strict, err := eligibleDonors(hydro.ModelGR4JCN, .6)
	require.NoError(t, err)
	assert.Less(t, len(strict), len(all))
	for _, g := range strict {
		assert.GreaterOrEqual(t, g.NSE[hydro.ModelGR4JCN], .6)
	}

	_, err = eligibleDonors(hydro.ModelGR4JCN, .999)
	assert.Error(t, err)
}

func TestRankDonorsSpatial(t *testing.T) {
	donors, err := eligibleDonors(hydro.ModelGR4JCN, -1.)
	require.NoError(t, err)
	ranked, dist, err := rankDonors(donors, targetProps(), true)
	require.NoError(t, err)
	require.Len(t, ranked, len(donors))
	for i := 1; i < len(dist); i++ {
		assert.LessOrEqual(t, dist[i-1], dist[i])
	}
	// an eastern target should rank an Ontario gauge before a Yukon one
	pos := map[string]int{}
	for i, g := range ranked {
		pos[g.ID] = i
	}
	assert.Less(t, pos["02KB001"], pos["09AB004"])
}

func TestIDWWeightsNormalized(t *testing.T) {
	w := idwWeights([]float64{10., 20., 40.})
	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1., sum, 1e-12)
	assert.Greater(t, w[0], w[1])
	assert.Greater(t, w[1], w[2])
}

func TestMLRRecoversLinearRelation(t *testing.T) {
	// donors whose first parameter is an exact linear function of area must
	// be recovered exactly by the regression
	m, _ := hydro.ModelByName(hydro.ModelGR4JCN)
	donors, err := eligibleDonors(m.Name, -1.)
	require.NoError(t, err)
	for i := range donors {
		ps := append([]float64(nil), donors[i].Params[m.Name]...)
		ps[0] = .2 + 5e-5*donors[i].Properties["area"]
		donors[i].Params = map[string][]float64{m.Name: ps}
	}

	props := targetProps()
	est, r2, err := mlrParams(m, donors, props)
	require.NoError(t, err)
	assert.InDelta(t, .2+5e-5*props["area"], est[0], 1e-6)
	assert.InDelta(t, 1., r2[0], 1e-6)
}

func TestRegionalizeMLR(t *testing.T) {
	m, _ := hydro.ModelByName(hydro.ModelGR4JCN)
	res, err := Regionalize(m, synthForcing(t), targetCatchment(), Options{
		Method:     MethodMLR,
		Properties: targetProps(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Final)
	assert.Len(t, res.Final.Qsim, 730)
	assert.Empty(t, res.Members)
	require.Len(t, res.Params, 1)
	for i, p := range res.Params[0] {
		assert.GreaterOrEqual(t, p, m.Lower[i])
		assert.LessOrEqual(t, p, m.Upper[i])
	}
}

func TestRegionalizeSPIDW(t *testing.T) {
	m, _ := hydro.ModelByName(hydro.ModelMOHYSE)
	res, err := Regionalize(m, synthForcing(t), targetCatchment(), Options{
		Method:     MethodSPIDW,
		NDonors:    3,
		MinNSE:     .4,
		Properties: targetProps(),
	})
	require.NoError(t, err)
	require.Len(t, res.Members, 3)
	require.Len(t, res.Weights, 3)

	var wsum float64
	for _, w := range res.Weights {
		wsum += w
	}
	assert.InDelta(t, 1., wsum, 1e-9)

	// the blended trace stays inside the member envelope
	for i := range res.Final.Qsim {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, mem := range res.Members {
			lo = math.Min(lo, mem[i])
			hi = math.Max(hi, mem[i])
		}
		assert.GreaterOrEqual(t, res.Final.Qsim[i], lo-1e-9)
		assert.LessOrEqual(t, res.Final.Qsim[i], hi+1e-9)
	}
}

func TestRegionalizePSUniformWeights(t *testing.T) {
	m, _ := hydro.ModelByName(hydro.ModelGR4JCN)
	res, err := Regionalize(m, synthForcing(t), targetCatchment(), Options{
		Method:     MethodPS,
		NDonors:    4,
		MinNSE:     .4,
		Properties: targetProps(),
	})
	require.NoError(t, err)
	require.Len(t, res.Weights, 4)
	for _, w := range res.Weights {
		assert.InDelta(t, .25, w, 1e-12)
	}
}

func TestRegionalizeUnknownMethod(t *testing.T) {
	m, _ := hydro.ModelByName(hydro.ModelGR4JCN)
	_, err := Regionalize(m, synthForcing(t), targetCatchment(), Options{
		Method:     "kriging",
		Properties: targetProps(),
	})
	assert.Error(t, err)
}
