package rasedit

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	gdal "github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGeoTransform = [6]float64{500000, 30, 0, 3400000, 0, -30}

// 生成带无效值、颜色表与投影的单波段分类tif，取值按1,2,3循环
func writeTestTif(t *testing.T, path string, w, h int) {
	t.Helper()
	ds, err := gdal.Create(gdal.GTiff, path, 1, gdal.Byte, w, h)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform(testGeoTransform))
	sr, err := gdal.NewSpatialRefFromEPSG(32650)
	require.NoError(t, err)
	defer sr.Close()
	require.NoError(t, ds.SetSpatialRef(sr))
	band := ds.Bands()[0]
	require.NoError(t, band.SetNoData(0))
	require.NoError(t, band.SetColorTable(gdal.ColorTable{
		PaletteInterp: gdal.RGBPalette,
		Entries: [][4]int16{
			{0, 0, 0, 0},
			{230, 230, 0, 255},
			{56, 168, 0, 255},
			{0, 112, 255, 255},
		},
	}))
	data := make([]int32, w*h)
	for i := range data {
		data[i] = int32(i%3 + 1)
	}
	require.NoError(t, band.IO(gdal.IOWrite, 0, 0, data, w, h))
	require.NoError(t, ds.Close())
}

func TestGdalRasterOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class.tif")
	writeTestTif(t, path, 8, 6)
	r, err := OpenGdalRaster(path, 1)
	require.NoError(t, err)
	defer r.Close()

	g := r.Grid()
	assert.Equal(t, 8, g.Width)
	assert.Equal(t, 6, g.Height)
	assert.Equal(t, 30.0, g.PixelSizeX())
	assert.Equal(t, 1, g.Tolerance())
	nd, ok := r.NoData()
	assert.True(t, ok)
	assert.Zero(t, nd)
	assert.NotEmpty(t, r.Projection())
	assert.Len(t, r.Palette(), 4)
	assert.Len(t, paletteClasses(r.Palette()), 3)
	lo, hi := r.ValueRange()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 255, hi)

	_, err = OpenGdalRaster(path, 2)
	assert.ErrorIs(t, err, ErrWrongRasterBand)
}

func TestGdalRasterCellEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class.tif")
	writeTestTif(t, path, 8, 6)
	r, err := OpenGdalRaster(path, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, cellValue(t, r, 0, 0))
	assert.ErrorIs(t, r.WriteCell(0, 0, 3), ErrNotEditing)
	require.NoError(t, r.BeginEdit())
	assert.ErrorIs(t, r.BeginEdit(), ErrEditOpen)
	require.NoError(t, r.WriteCell(0, 0, 3))
	require.NoError(t, r.EndEdit())
	assert.False(t, r.Editing())
	require.NoError(t, r.Close())

	r, err = OpenGdalRaster(path, 1)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 3, cellValue(t, r, 0, 0))
}

func TestGdalWholeImageSwap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class.tif")
	writeTestTif(t, path, 40, 30)
	r, err := OpenGdalRaster(path, 1)
	require.NoError(t, err)
	proj := r.Projection()
	before := bandOf(t, r)

	table, err := NewRecodeTable(paletteClasses(r.Palette()))
	require.NoError(t, err)
	require.NoError(t, table.SetNewValue(1, intPtr(2)))
	require.NoError(t, table.SetNewValue(2, intPtr(1)))
	s := NewSession(r, table, nil)
	n, err := s.ApplyWholeImage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 800, n)
	assert.Equal(t, 800, s.Store().Len())
	assert.Equal(t, 1, s.Registry().Len())
	require.NoError(t, s.Close())

	r, err = OpenGdalRaster(path, 1)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, testGeoTransform, r.Grid().GeoTransform)
	assert.Equal(t, proj, r.Projection())
	nd, ok := r.NoData()
	assert.True(t, ok)
	assert.Zero(t, nd)
	assert.Len(t, r.Palette(), 4)

	after := bandOf(t, r)
	for i := range before {
		switch before[i] {
		case 1:
			assert.EqualValues(t, 2, after[i])
		case 2:
			assert.EqualValues(t, 1, after[i])
		default:
			assert.EqualValues(t, 3, after[i])
		}
	}
}

func TestGdalWriteBandFailsCleanly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "class.tif")
	writeTestTif(t, path, 8, 6)
	orig, err := os.ReadFile(path)
	require.NoError(t, err)

	r, err := OpenGdalRaster(path, 1, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	defer r.Close()
	data := bandOf(t, r)
	for i := range data {
		data[i] = 3
	}
	assert.ErrorIs(t, r.WriteBand(data), ErrBandWrite)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
	assert.Equal(t, 1, cellValue(t, r, 0, 0))
}

func TestEditorWithGdalRaster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "class.tif")
	writeTestTif(t, path, 8, 6)
	e, err := NewEditor()
	require.NoError(t, err)
	defer e.CloseAll()

	s, err := e.Open(path)
	require.NoError(t, err)
	active, err := e.Active()
	require.NoError(t, err)
	assert.Same(t, s, active)
	assert.Equal(t, 3, s.Table().Len())

	again, err := e.Open(path, 1)
	require.NoError(t, err)
	assert.Same(t, s, again)

	require.NoError(t, s.Table().SetNewValue(1, intPtr(3)))
	// 左上角像元中心
	edited, err := s.Apply(PixelPick{Point: orb.Point{500015, 3399985}})
	require.NoError(t, err)
	require.Len(t, edited, 1)
	assert.Equal(t, 3, cellValue(t, s.Raster(), 0, 0))

	out, count, err := s.Export(filepath.Join(dir, "edits"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "edits.gpkg"), out)
	assert.Equal(t, 1, count)
}

func TestTrimPalette(t *testing.T) {
	p := make([]color.RGBA, 256)
	for i := range p {
		p[i] = paddingColor
	}
	p[0] = color.RGBA{}
	p[1] = color.RGBA{R: 230, G: 230, A: 255}
	p[2] = color.RGBA{G: 168, A: 255}
	present := presentValues([]int32{1, 2, 2, 5, 0, 300, -1}, len(p))

	got := trimPalette(p, present)
	require.Len(t, got, 6)
	assert.Equal(t, color.RGBA{}, got[3])
	assert.Equal(t, color.RGBA{}, got[4])
	// 波段中出现的黑色为真实分类
	assert.Equal(t, paddingColor, got[5])

	classes := paletteClasses(got)
	require.Len(t, classes, 3)
	assert.Equal(t, 5, classes[2].Value)

	assert.Empty(t, trimPalette([]color.RGBA{paddingColor, paddingColor}, nil))
}

func TestValueRange(t *testing.T) {
	lo, hi, ok := valueRange(gdal.Int16)
	assert.True(t, ok)
	assert.Equal(t, -32768, lo)
	assert.Equal(t, 32767, hi)
	_, _, ok = valueRange(gdal.Float32)
	assert.False(t, ok)
}

func TestGdalRasterRejectsOutOfRangeValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "class.tif")
	writeTestTif(t, path, 8, 6)
	r, err := OpenGdalRaster(path, 1)
	require.NoError(t, err)

	table, err := NewRecodeTable(paletteClasses(r.Palette()))
	require.NoError(t, err)
	require.NoError(t, table.SetNewValue(1, intPtr(300)))
	s := NewSession(r, table, nil)
	defer s.Close()

	edited, err := s.Apply(PixelPick{Point: orb.Point{500015, 3399985}})
	assert.ErrorIs(t, err, ErrCellWrite)
	assert.Empty(t, edited)
	assert.Zero(t, s.Store().Len())
	assert.False(t, s.CanUndo(KindPixel))
	assert.Equal(t, 1, cellValue(t, r, 0, 0))

	_, err = s.ApplyWholeImage(context.Background())
	assert.ErrorIs(t, err, ErrBandWrite)
	assert.Zero(t, s.Store().Len())
	assert.Equal(t, 1, cellValue(t, r, 0, 0))
}

func TestGdalRasterAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class.tif")
	writeTestTif(t, path, 8, 6)
	r, err := OpenGdalRaster(path, 1)
	require.NoError(t, err)
	data := bandOf(t, r)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.ReadCell(0, 0)
	assert.ErrorIs(t, err, ErrInvalidTif)
	_, err = r.ReadBand()
	assert.ErrorIs(t, err, ErrInvalidTif)
	assert.ErrorIs(t, r.BeginEdit(), ErrInvalidTif)
	assert.ErrorIs(t, r.WriteBand(data), ErrInvalidTif)
	assert.Nil(t, r.Palette())
	assert.Empty(t, r.Projection())
}

func TestEditorOpenKeepsFirstSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class.tif")
	writeTestTif(t, path, 8, 6)
	e, err := NewEditor()
	require.NoError(t, err)
	defer e.CloseAll()

	s, err := e.Open(path)
	require.NoError(t, err)
	// 另一调用方在会话建立前已打开同一栅格
	dup, err := OpenGdalRaster(path, 1)
	require.NoError(t, err)
	got, err := e.adopt(dup)
	require.NoError(t, err)
	assert.Same(t, s, got)
	_, err = dup.ReadCell(0, 0)
	assert.ErrorIs(t, err, ErrInvalidTif)
	assert.Equal(t, 1, cellValue(t, s.Raster(), 0, 0))
}
