package geo

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demAsc = `ncols 4
nrows 3
xllcorner 0
yllcorner 0
cellsize 10
NODATA_value -9999
1 2 3 4
5 6 -9999 8
9 10 11 12
`

// squareFC covers the lower-left 2x2 block of cells (centres 5,5 15,5 5,15 15,15).
const squareFC = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"sw"},"geometry":
  {"type":"Polygon","coordinates":[[[0,0],[20,0],[20,20],[0,20],[0,0]]]}}]}`

func TestReadAsc(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(demAsc))
	require.NoError(t, err)
	assert.Equal(t, 4, g.Ncols)
	assert.Equal(t, 3, g.Nrows)
	assert.Equal(t, 1., g.Value(0, 0))
	assert.Equal(t, 12., g.Value(3, 2))
	assert.True(t, g.IsNodata(g.Value(2, 1)))

	x, y := g.CellCenter(0, 2) // bottom-left cell
	assert.Equal(t, 5., x)
	assert.Equal(t, 5., y)
}

func TestReadAscCenterOrigin(t *testing.T) {
	src := strings.Replace(demAsc, "xllcorner 0", "xllcenter 5", 1)
	g, err := ReadAsc(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 0., g.Xll)
}

func TestReadAscRejectsTruncated(t *testing.T) {
	_, err := ReadAsc(strings.NewReader("ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n1 2 3\n"))
	assert.Error(t, err)
}

func TestWriteAscRoundTrip(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(demAsc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.WriteAsc(&buf))
	g2, err := ReadAsc(&buf)
	require.NoError(t, err)
	assert.Equal(t, g, g2)
}

func TestParseFeatures(t *testing.T) {
	fc, err := ParseFeatures([]byte(squareFC))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	// a bare geometry is wrapped into a collection
	fc, err = ParseFeatures([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	_, err = ParseFeatures([]byte(`{"hello":"world"}`))
	assert.Error(t, err)
}

func TestZonalStats(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(demAsc))
	require.NoError(t, err)
	fc, err := ParseFeatures([]byte(squareFC))
	require.NoError(t, err)

	stats, err := ZonalStats(g, fc, false, false)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	// cells inside: values 5, 6 (row 1) and 9, 10 (row 2)
	zs := stats[0]
	assert.Equal(t, 4, zs.Count)
	assert.Equal(t, 0, zs.Nodata)
	assert.Equal(t, 5., zs.Min)
	assert.Equal(t, 10., zs.Max)
	assert.Equal(t, 7.5, zs.Mean)
	assert.Equal(t, 30., zs.Sum)
	assert.Equal(t, "sw", zs.Properties["name"])
}

func TestZonalStatsCategorical(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(strings.NewReplacer("5 6 -9999 8", "5 5 -9999 8").Replace(demAsc)))
	require.NoError(t, err)
	fc, err := ParseFeatures([]byte(squareFC))
	require.NoError(t, err)

	stats, err := ZonalStats(g, fc, true, false)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Categories["5"])
	assert.Equal(t, 1, stats[0].Categories["9"])
}

func TestZonalStatsAllTouched(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(demAsc))
	require.NoError(t, err)
	// spans four cell extents but contains only the centre at (15,15)
	fc, err := ParseFeatures([]byte(`{"type":"Polygon","coordinates":[[[8,8],[18,8],[18,18],[8,18],[8,8]]]}`))
	require.NoError(t, err)

	stats, err := ZonalStats(g, fc, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, 6., stats[0].Sum)

	stats, err = ZonalStats(g, fc, false, true)
	require.NoError(t, err)
	assert.Equal(t, 4, stats[0].Count) // values 5, 6, 9, 10
	assert.Equal(t, 30., stats[0].Sum)
}

func TestZonalStatsCountsNodata(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(demAsc))
	require.NoError(t, err)
	fc, err := ParseFeatures([]byte(`{"type":"Polygon","coordinates":[[[20,0],[40,0],[40,20],[20,20],[20,0]]]}`))
	require.NoError(t, err)

	stats, err := ZonalStats(g, fc, false, false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats[0].Count) // 8, 11, 12
	assert.Equal(t, 1, stats[0].Nodata)
}

func TestSubset(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(demAsc))
	require.NoError(t, err)
	fc, err := ParseFeatures([]byte(squareFC))
	require.NoError(t, err)

	sub, err := Subset(g, fc.Features[0])
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Ncols)
	assert.Equal(t, 2, sub.Nrows)
	assert.Equal(t, 0., sub.Xll)
	assert.Equal(t, 0., sub.Yll)
	assert.Equal(t, 5., sub.Value(0, 0))
	assert.Equal(t, 10., sub.Value(1, 1))
}

func TestSubsetOutsideExtent(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(demAsc))
	require.NoError(t, err)
	fc, err := ParseFeatures([]byte(`{"type":"Polygon","coordinates":[[[900,900],[910,900],[910,910],[900,900]]]}`))
	require.NoError(t, err)

	_, err = Subset(g, fc.Features[0])
	assert.Error(t, err)
}

func TestSubsetZip(t *testing.T) {
	g, err := ReadAsc(strings.NewReader(demAsc))
	require.NoError(t, err)
	fc, err := ParseFeatures([]byte(squareFC))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, SubsetZip(&buf, g, fc))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "subset_0.asc", zr.File[0].Name)
}
