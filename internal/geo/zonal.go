package geo

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/stat"
)

// ZoneStat summarizes the raster cells whose centres fall inside one
// feature's polygon.
type ZoneStat struct {
	FeatureIndex int                `json:"index"`
	Count        int                `json:"count"`
	Nodata       int                `json:"nodata"`
	Min          float64            `json:"min"`
	Max          float64            `json:"max"`
	Mean         float64            `json:"mean"`
	Median       float64            `json:"median"`
	Sum          float64            `json:"sum"`
	Categories   map[string]int     `json:"categories,omitempty"`
	Properties   geojson.Properties `json:"properties,omitempty"`
}

// ParseFeatures decodes a GeoJSON feature collection, also accepting a bare
// Feature or Geometry payload.
func ParseFeatures(data []byte) (*geojson.FeatureCollection, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		if len(fc.Features) == 0 {
			return nil, fmt.Errorf("feature collection holds no features")
		}
		return fc, nil
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil {
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("payload is not GeoJSON: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(g.Geometry()))
	return fc, nil
}

// ZonalStats computes per-feature statistics of the grid. With categorical
// set, cell values are treated as class codes and tallied instead of
// averaged. A cell belongs to a feature when its centre lies inside the
// polygon; with allTouched, any cell whose extent intersects the polygon is
// included as well.
func ZonalStats(g *Grid, fc *geojson.FeatureCollection, categorical, allTouched bool) ([]ZoneStat, error) {
	out := make([]ZoneStat, 0, len(fc.Features))
	for fi, f := range fc.Features {
		zs := ZoneStat{FeatureIndex: fi, Properties: f.Properties}
		var vals []float64
		for r := 0; r < g.Nrows; r++ {
			for c := 0; c < g.Ncols; c++ {
				x, y := g.CellCenter(c, r)
				in := contains(f.Geometry, orb.Point{x, y})
				if !in && allTouched {
					in = touches(f.Geometry, g.cellBound(c, r))
				}
				if !in {
					continue
				}
				v := g.Value(c, r)
				if g.IsNodata(v) {
					zs.Nodata++
					continue
				}
				vals = append(vals, v)
			}
		}
		zs.Count = len(vals)
		if categorical {
			zs.Categories = map[string]int{}
			for _, v := range vals {
				zs.Categories[strconv.FormatFloat(v, 'g', -1, 64)]++
			}
		}
		if len(vals) > 0 {
			sort.Float64s(vals)
			zs.Min = vals[0]
			zs.Max = vals[len(vals)-1]
			zs.Mean = stat.Mean(vals, nil)
			zs.Median = stat.Quantile(.5, stat.Empirical, vals, nil)
			for _, v := range vals {
				zs.Sum += v
			}
		}
		out = append(out, zs)
	}
	return out, nil
}

// contains tests whether the point lies inside the feature geometry.
// Non-areal geometries never contain a cell.
func contains(geom orb.Geometry, pt orb.Point) bool {
	switch p := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(p, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(p, pt)
	case orb.Collection:
		for _, sub := range p {
			if contains(sub, pt) {
				return true
			}
		}
	}
	return false
}

// cellBound returns the cell's extent rectangle.
func (g *Grid) cellBound(col, row int) orb.Bound {
	x0 := g.Xll + float64(col)*g.Cellsize
	y0 := g.Yll + float64(g.Nrows-1-row)*g.Cellsize
	return orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x0 + g.Cellsize, y0 + g.Cellsize}}
}

// touches tests whether the geometry intersects the cell rectangle. The clip
// is performed on a clone; clipping may scratch over the input geometry.
func touches(geom orb.Geometry, b orb.Bound) bool {
	if !b.Intersects(geom.Bound()) {
		return false
	}
	return clip.Geometry(b, orb.Clone(geom)) != nil
}
