// Package hydro marshals process parameters into calls on the external
// modeling and statistics libraries (goHydro, objfunc, glbopt) and converts
// their results into the file artifacts the service returns. The hydrological
// mathematics live in those libraries, not here.
package hydro

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Rain/snow partition methods accepted by the simulation processes.
const (
	RainSnowDingman   = "RAINSNOW_DINGMAN"
	RainSnowThreshold = "RAINSNOW_THRESHOLD"
)

// Forcing holds a daily meteorological record, optionally with observed flow.
// Depths are metres per day, temperatures °C, discharge m³/s. Qobs entries are
// NaN where no observation exists.
type Forcing struct {
	Dates  []time.Time
	Precip []float64
	Tmin   []float64
	Tmax   []float64
	Qobs   []float64
}

// Len returns the number of daily records.
func (f *Forcing) Len() int { return len(f.Dates) }

// HasObs reports whether any observed flow is present.
func (f *Forcing) HasObs() bool {
	for _, q := range f.Qobs {
		if !math.IsNaN(q) {
			return true
		}
	}
	return false
}

// Slice returns the record restricted to [from, to] inclusive.
func (f *Forcing) Slice(from, to time.Time) (*Forcing, error) {
	i0, i1 := -1, -1
	for i, d := range f.Dates {
		if i0 < 0 && !d.Before(from) {
			i0 = i
		}
		if !d.After(to) {
			i1 = i
		}
	}
	if i0 < 0 || i1 < i0 {
		return nil, fmt.Errorf("period %s to %s not covered by forcing record (%s to %s)",
			from.Format("2006-01-02"), to.Format("2006-01-02"),
			f.Dates[0].Format("2006-01-02"), f.Dates[f.Len()-1].Format("2006-01-02"))
	}
	return &Forcing{
		Dates:  f.Dates[i0 : i1+1],
		Precip: f.Precip[i0 : i1+1],
		Tmin:   f.Tmin[i0 : i1+1],
		Tmax:   f.Tmax[i0 : i1+1],
		Qobs:   f.Qobs[i0 : i1+1],
	}, nil
}

// RainSnow partitions daily precipitation using the requested method.
func (f *Forcing) RainSnow(method string, i int) (rain, snow float64) {
	p := f.Precip[i]
	tm := (f.Tmin[i] + f.Tmax[i]) / 2.
	switch method {
	case RainSnowThreshold:
		if tm <= 0. {
			return 0., p
		}
		return p, 0.
	default: // Dingman linear ramp between -1 and 3 °C
		fr := (tm + 1.) / 4.
		if fr < 0. {
			fr = 0.
		} else if fr > 1. {
			fr = 1.
		}
		return p * fr, p * (1. - fr)
	}
}

// ReadForcingFile loads a daily forcing CSV with header
// date,precip,tmin,tmax[,qobs]; precip in mm/day, flow in m³/s.
func ReadForcingFile(fp string) (*Forcing, error) {
	f, err := os.Open(fp)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frc, err := readForcing(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fp, err)
	}
	return frc, nil
}

func readForcing(r io.Reader) (*Forcing, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(hdr))
	for i, h := range hdr {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{"date", "precip", "tmin", "tmax"} {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("forcing file missing column %q", req)
		}
	}
	iq, hasQ := col["qobs"]

	frc := &Forcing{}
	var prev time.Time
	for ln := 2; ; ln++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln, err)
		}

		d, err := time.Parse("2006-01-02", rec[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date %q", ln, rec[col["date"]])
		}
		if !prev.IsZero() && !d.After(prev) {
			return nil, fmt.Errorf("line %d: dates not strictly increasing at %s", ln, d.Format("2006-01-02"))
		}
		prev = d

		p, err := parseField(rec, col["precip"])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad precip: %w", ln, err)
		}
		tn, err := parseField(rec, col["tmin"])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad tmin: %w", ln, err)
		}
		tx, err := parseField(rec, col["tmax"])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad tmax: %w", ln, err)
		}
		q := math.NaN()
		if hasQ && strings.TrimSpace(rec[iq]) != "" {
			if q, err = parseField(rec, iq); err != nil {
				return nil, fmt.Errorf("line %d: bad qobs: %w", ln, err)
			}
		}

		frc.Dates = append(frc.Dates, d)
		frc.Precip = append(frc.Precip, p/1000.) // mm to m
		frc.Tmin = append(frc.Tmin, tn)
		frc.Tmax = append(frc.Tmax, tx)
		frc.Qobs = append(frc.Qobs, q)
	}
	if frc.Len() == 0 {
		return nil, fmt.Errorf("forcing file holds no records")
	}
	return frc, nil
}

func parseField(rec []string, i int) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
}

// WriteSeries writes a dated multi-column series CSV, e.g. "date,q_sim,q_obs".
// Columns are written in the given order; NaN entries become empty cells.
func WriteSeries(fp string, dates []time.Time, cols map[string][]float64, order []string) error {
	for _, n := range order {
		c, ok := cols[n]
		if !ok {
			return fmt.Errorf("series column %q not provided", n)
		}
		if len(c) != len(dates) {
			return fmt.Errorf("series column %q holds %d values for %d dates", n, len(c), len(dates))
		}
	}

	f, err := os.Create(fp)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"date"}, order...)); err != nil {
		return err
	}
	rec := make([]string, 1+len(order))
	for i, d := range dates {
		rec[0] = d.Format("2006-01-02")
		for j, n := range order {
			v := cols[n][i]
			if math.IsNaN(v) {
				rec[j+1] = ""
			} else {
				rec[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadSeries loads a CSV written by WriteSeries, returning the column names in
// file order (without the leading date column) and the columns keyed by name.
func ReadSeries(fp string) ([]string, []time.Time, map[string][]float64, error) {
	f, err := os.Open(fp)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: read header: %w", fp, err)
	}
	if len(hdr) < 2 || strings.ToLower(hdr[0]) != "date" {
		return nil, nil, nil, fmt.Errorf("%s: not a dated series file", fp)
	}
	names := hdr[1:]

	var dates []time.Time
	cols := make(map[string][]float64, len(names))
	for ln := 2; ; ln++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s: line %d: %w", fp, ln, err)
		}
		d, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s: line %d: bad date %q", fp, ln, rec[0])
		}
		dates = append(dates, d)
		for j, n := range names {
			v := math.NaN()
			if s := strings.TrimSpace(rec[j+1]); s != "" {
				if v, err = strconv.ParseFloat(s, 64); err != nil {
					return nil, nil, nil, fmt.Errorf("%s: line %d: bad value %q", fp, ln, s)
				}
			}
			cols[n] = append(cols[n], v)
		}
	}
	return names, dates, cols, nil
}
