package geo

import (
	"archive/zip"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Subset crops the grid to the feature's bounding box and masks cells whose
// centres fall outside the polygon with the no-data marker.
func Subset(g *Grid, f *geojson.Feature) (*Grid, error) {
	b := f.Geometry.Bound()
	c0 := int(math.Floor((b.Min[0] - g.Xll) / g.Cellsize))
	c1 := int(math.Ceil((b.Max[0] - g.Xll) / g.Cellsize))
	top := g.Yll + float64(g.Nrows)*g.Cellsize
	r0 := int(math.Floor((top - b.Max[1]) / g.Cellsize))
	r1 := int(math.Ceil((top - b.Min[1]) / g.Cellsize))

	c0 = clampInt(c0, 0, g.Ncols)
	c1 = clampInt(c1, 0, g.Ncols)
	r0 = clampInt(r0, 0, g.Nrows)
	r1 = clampInt(r1, 0, g.Nrows)
	if c1 <= c0 || r1 <= r0 {
		return nil, fmt.Errorf("feature does not overlap the raster extent")
	}

	sub := &Grid{
		Ncols:    c1 - c0,
		Nrows:    r1 - r0,
		Xll:      g.Xll + float64(c0)*g.Cellsize,
		Yll:      top - float64(r1)*g.Cellsize,
		Cellsize: g.Cellsize,
		Nodata:   g.Nodata,
		Data:     make([]float64, (c1-c0)*(r1-r0)),
	}
	n := 0
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			v := g.Value(c, r)
			x, y := g.CellCenter(c, r)
			if !contains(f.Geometry, orb.Point{x, y}) {
				v = g.Nodata
			}
			sub.Data[(r-r0)*sub.Ncols+(c-c0)] = v
			if !sub.IsNodata(v) {
				n++
			}
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("feature covers no raster cells")
	}
	return sub, nil
}

// SubsetZip writes one masked ASCII grid per feature into a zip archive.
// Entries are named subset_<index>.asc.
func SubsetZip(w io.Writer, g *Grid, fc *geojson.FeatureCollection) error {
	zw := zip.NewWriter(w)
	wrote := 0
	for fi, f := range fc.Features {
		sub, err := Subset(g, f)
		if err != nil {
			continue // features outside the raster are skipped
		}
		ze, err := zw.Create(fmt.Sprintf("subset_%d.asc", fi))
		if err != nil {
			return err
		}
		if err := sub.WriteAsc(ze); err != nil {
			return err
		}
		wrote++
	}
	if wrote == 0 {
		zw.Close()
		return fmt.Errorf("no feature overlaps the raster extent")
	}
	return zw.Close()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
