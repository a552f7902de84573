package hydro

// Model names accepted by the regionalisation process.
const (
	ModelGR4JCN = "GR4JCN"
	ModelMOHYSE = "MOHYSE"
	ModelHMETS  = "HMETS"
	ModelHBVEC  = "HBVEC"
)

// Model binds a published parameter vector convention (names, defaults,
// calibration bounds) to the engine configuration it implies. The defaults
// and bounds follow the conventions of the emulated model families.
type Model struct {
	Name       string
	ParamNames []string
	Defaults   []float64
	Lower      []float64
	Upper      []float64
	configure  func([]float64) Params
}

// NParams returns the length of the model's parameter vector.
func (m *Model) NParams() int { return len(m.ParamNames) }

// Configure maps a parameter vector onto engine settings. The vector length
// must match NParams.
func (m *Model) Configure(params []float64) Params { return m.configure(params) }

// ModelByName returns the named model, or false for unknown names.
func ModelByName(name string) (*Model, bool) {
	m, ok := models[name]
	return m, ok
}

// ModelNames lists the supported model names in a stable order.
func ModelNames() []string {
	return []string{ModelGR4JCN, ModelMOHYSE, ModelHMETS, ModelHBVEC}
}

var models = map[string]*Model{
	ModelGR4JCN: {
		Name:       ModelGR4JCN,
		ParamNames: names("GR4J_X1", "GR4J_X2", "GR4J_X3", "GR4J_X4", "CEMANEIGE_X1", "CEMANEIGE_X2"),
		Defaults:   []float64{0.529, -3.396, 407.29, 1.072, 16.9, 0.947},
		Lower:      []float64{0.1, -5.0, 100.0, 1.0, 10.0, 0.1},
		Upper:      []float64{0.9, 0.0, 500.0, 1.1, 20.0, 1.0},
		configure: func(x []float64) Params {
			p := defaultParams()
			p.SoilCap = clamp(x[0], 0.05, 2.)          // production store capacity [m]
			p.Perc = clamp(abs(x[1])/1000., 5e-4, .02) // exchange term [mm/d] as percolation
			p.BaseflowK = clamp(10./x[2], .005, .5)    // routing store capacity [mm]
			p.RouteK = clamp(1./x[3], .05, 1.)         // unit-hydrograph time base [d]
			p.DDF = clamp(x[4]/4000., .001, .008)      // degree-day factor
			p.TSF = clamp(x[5]/2., .1, .6)             // cold-content snowfall temperature factor
			return p
		},
	},
	ModelMOHYSE: {
		Name: ModelMOHYSE,
		ParamNames: names("par_x01", "par_x02", "par_x03", "par_x04", "par_x05",
			"par_x06", "par_x07", "par_x08", "par_x09", "par_x10"),
		Defaults: []float64{1.0, 0.0468, 4.2952, 2.658, 0.4038, 0.0621, 0.0273, 0.0453, 0.9039, 5.6167},
		Lower:    []float64{0.01, 0.01, 0.01, -5.0, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01},
		Upper:    []float64{20.0, 1.0, 20.0, 5.0, 0.5, 1.0, 1.0, 1.0, 15.0, 15.0},
		configure: func(x []float64) Params {
			p := defaultParams()
			p.SoilCap = clamp(x[2]/10., 0.05, 2.)
			p.Perc = clamp(abs(x[3])/100., 5e-4, .05)
			p.BaseflowK = clamp(x[6], .005, .5)
			p.RouteK = clamp(2./x[9], .05, 1.)
			p.BaseT = -x[4]
			p.DDF = clamp(x[5]/100., .001, .008)
			return p
		},
	},
	ModelHMETS: {
		Name: ModelHMETS,
		ParamNames: names("GAMMA_SHAPE", "GAMMA_SCALE", "GAMMA_SHAPE2", "GAMMA_SCALE2",
			"MIN_MELT_FACTOR", "MAX_MELT_FACTOR", "DD_MELT_TEMP", "DD_AGGRADATION",
			"SNOW_SWI_MIN", "SNOW_SWI_MAX", "SWI_REDUCT_COEFF", "DD_REFREEZE_TEMP",
			"REFREEZE_FACTOR", "REFREEZE_EXP", "PET_CORRECTION",
			"HMETS_RUNOFF_COEFF", "PERC_COEFF", "BASEFLOW_COEFF_1", "BASEFLOW_COEFF_2",
			"TOPSOIL", "PHREATIC"),
		Defaults: []float64{9.5019, 0.2774, 6.3942, 0.6884, 1.2875, 5.4134, 2.3641,
			0.0973, 0.0464, 0.1998, 0.0222, -1.0919, 2.6851, 0.374, 1.0, 0.4739,
			0.0114, 0.0243, 0.0069, 310.7211, 916.1947},
		Lower: []float64{0.3, 0.01, 0.5, 0.15, 0.0, 0.0, -2.0, 0.01, 0.0, 0.01, 0.005,
			-5.0, 0.0, 0.0, 0.0, 0.0, 1e-5, 0.0, 1e-5, 0.0, 0.0},
		Upper: []float64{20.0, 5.0, 13.0, 1.5, 20.0, 20.0, 3.0, 0.2, 0.1, 0.3, 0.1,
			2.0, 5.0, 1.0, 3.0, 1.0, 0.02, 0.1, 0.01, 0.5, 2.0},
		configure: func(x []float64) Params {
			p := defaultParams()
			p.SoilCap = clamp(x[19]/1000., 0.05, 2.) // topsoil capacity [mm]
			p.Perc = clamp(x[16], 5e-4, .05)
			p.BaseflowK = clamp(x[17], .005, .5)
			p.RouteK = clamp(1./x[0], .05, 1.) // gamma UH shape as lag
			p.DDF = clamp((x[4]+x[5])/2000., .001, .008)
			p.BaseT = x[6]
			return p
		},
	},
	ModelHBVEC: {
		Name: ModelHBVEC,
		ParamNames: names("par_x01", "par_x02", "par_x03", "par_x04", "par_x05",
			"par_x06", "par_x07", "par_x08", "par_x09", "par_x10", "par_x11",
			"par_x12", "par_x13", "par_x14", "par_x15", "par_x16", "par_x17",
			"par_x18", "par_x19", "par_x20", "par_x21"),
		Defaults: []float64{0.05984519, 4.072232, 2.001574, 0.03473693, 0.09985144,
			0.506052, 3.438486, 38.32455, 0.4606565, 0.06303738, 2.277781, 4.873686,
			0.5718813, 0.04505643, 0.877607, 18.94145, 2.036937, 0.4452843,
			0.6771759, 1.141608, 1.024278},
		Lower: []float64{-3.0, 0.0, 0.0, 0.0, 0.0, 0.3, 0.0, 0.0, 0.01, 0.05, 0.01,
			0.0, 0.0, 0.0, 0.0, 0.0, 0.01, 0.0, 0.05, 0.8, 0.8},
		Upper: []float64{3.0, 8.0, 8.0, 0.1, 1.0, 1.0, 7.0, 100.0, 1.0, 0.1, 6.0,
			5.0, 5.0, 0.2, 1.0, 30.0, 3.0, 2.0, 1.0, 1.5, 1.5},
		configure: func(x []float64) Params {
			p := defaultParams()
			p.BaseT = x[0]                         // rain/snow threshold temperature
			p.DDF = clamp(x[1]/1000., .001, .008)  // melt factor [mm/°C/d]
			p.SoilCap = clamp(x[7]/100., 0.05, 2.) // field capacity
			p.BaseflowK = clamp(x[8], .005, .5)    // fast reservoir coefficient
			p.RouteK = clamp(x[9]*10., .05, 1.)    // slow reservoir coefficient
			p.Perc = clamp(x[10]/1000., 5e-4, .05) // percolation rate [mm/d]
			return p
		},
	},
}

func names(ns ...string) []string { return ns }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
