// Package geo implements the raster and vector operations behind the
// terrain-analysis processes: an ESRI ASCII grid codec, polygon zonal
// statistics and per-feature raster subsetting.
package geo

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Grid is a single-band raster in ESRI ASCII layout. Data is row-major
// starting at the top-left cell.
type Grid struct {
	Ncols, Nrows int
	Xll, Yll     float64 // lower-left corner
	Cellsize     float64
	Nodata       float64
	Data         []float64
}

// IsNodata reports whether v is the grid's no-data marker.
func (g *Grid) IsNodata(v float64) bool {
	return math.IsNaN(v) || v == g.Nodata
}

// Value returns the cell at (col, row), row 0 at the top.
func (g *Grid) Value(col, row int) float64 { return g.Data[row*g.Ncols+col] }

// CellCenter returns the map coordinate of the cell's centre.
func (g *Grid) CellCenter(col, row int) (x, y float64) {
	x = g.Xll + (float64(col)+.5)*g.Cellsize
	y = g.Yll + (float64(g.Nrows-1-row)+.5)*g.Cellsize
	return
}

// ReadAsc parses an ESRI ASCII grid.
func ReadAsc(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	g := &Grid{Nodata: -9999.}
	nHeader := 0
	xCenter, yCenter := false, false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToLower(fields[0])
		isHeader := true
		switch key {
		case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
			if len(fields) != 2 {
				return nil, fmt.Errorf("malformed header line %q", line)
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("malformed header value %q: %w", fields[1], err)
			}
			switch key {
			case "ncols":
				g.Ncols = int(v)
			case "nrows":
				g.Nrows = int(v)
			case "xllcorner":
				g.Xll = v
			case "yllcorner":
				g.Yll = v
			case "xllcenter":
				g.Xll = v
				xCenter = true
			case "yllcenter":
				g.Yll = v
				yCenter = true
			case "cellsize":
				g.Cellsize = v
			case "nodata_value":
				g.Nodata = v
			}
			nHeader++
		default:
			isHeader = false
		}
		if !isHeader {
			if nHeader < 5 || g.Ncols <= 0 || g.Nrows <= 0 || g.Cellsize <= 0 {
				return nil, fmt.Errorf("incomplete ASCII grid header")
			}
			if xCenter {
				g.Xll -= g.Cellsize / 2.
			}
			if yCenter {
				g.Yll -= g.Cellsize / 2.
			}
			g.Data = make([]float64, 0, g.Ncols*g.Nrows)
			if err := appendRow(g, fields); err != nil {
				return nil, err
			}
			for sc.Scan() {
				fs := strings.Fields(sc.Text())
				if len(fs) == 0 {
					continue
				}
				if err := appendRow(g, fs); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if g.Data == nil {
		return nil, fmt.Errorf("ASCII grid has no data rows")
	}
	if len(g.Data) != g.Ncols*g.Nrows {
		return nil, fmt.Errorf("ASCII grid has %d values, expected %d", len(g.Data), g.Ncols*g.Nrows)
	}
	return g, nil
}

func appendRow(g *Grid, fields []string) error {
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fmt.Errorf("malformed grid value %q: %w", f, err)
		}
		g.Data = append(g.Data, v)
	}
	if len(g.Data) > g.Ncols*g.Nrows {
		return fmt.Errorf("ASCII grid has more than %d values", g.Ncols*g.Nrows)
	}
	return nil
}

// ReadAscFile parses an ESRI ASCII grid from disk.
func ReadAscFile(fp string) (*Grid, error) {
	f, err := os.Open(fp)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ReadAsc(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fp, err)
	}
	return g, nil
}

// WriteAsc writes the grid in ESRI ASCII layout.
func (g *Grid) WriteAsc(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", g.Ncols)
	fmt.Fprintf(bw, "nrows %d\n", g.Nrows)
	fmt.Fprintf(bw, "xllcorner %g\n", g.Xll)
	fmt.Fprintf(bw, "yllcorner %g\n", g.Yll)
	fmt.Fprintf(bw, "cellsize %g\n", g.Cellsize)
	fmt.Fprintf(bw, "NODATA_value %g\n", g.Nodata)
	for r := 0; r < g.Nrows; r++ {
		for c := 0; c < g.Ncols; c++ {
			if c > 0 {
				bw.WriteByte(' ')
			}
			v := g.Value(c, r)
			if math.IsNaN(v) {
				v = g.Nodata
			}
			fmt.Fprintf(bw, "%g", v)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteAscFile writes the grid to disk.
func (g *Grid) WriteAscFile(fp string) error {
	f, err := os.Create(fp)
	if err != nil {
		return err
	}
	defer f.Close()
	return g.WriteAsc(f)
}
