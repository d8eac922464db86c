package rasedit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gdal "github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelLogStoreCoalesce(t *testing.T) {
	s := NewPixelLogStore()
	p := NewGeoPixel(2.5, 5.5, 2)
	assert.True(t, s.Insert(NewPixelLog(p, 5, 7, uuid.New())))
	assert.False(t, s.Insert(NewPixelLog(NewGeoPixel(2.501, 5.5, 2), 7, 5, uuid.New())))
	assert.Zero(t, s.Len())
	_, ok := s.Get(p)
	assert.False(t, ok)
}

func TestPixelLogStoreMergeKeepsOriginalOld(t *testing.T) {
	s := NewPixelLogStore()
	p := NewGeoPixel(2.5, 5.5, 2)
	g1, g2 := uuid.New(), uuid.New()
	s.Insert(NewPixelLog(p, 1, 2, g1))
	later := NewPixelLog(p, 2, 3, g2)
	later.EditDate = later.EditDate.Add(time.Second)
	assert.True(t, s.Insert(later))
	assert.Equal(t, 1, s.Len())

	l, ok := s.Get(p)
	require.True(t, ok)
	assert.Equal(t, 1, l.OldValue)
	assert.Equal(t, 3, l.NewValue)
	assert.Equal(t, g2, l.Group)
	assert.True(t, l.EditDate.Equal(later.EditDate))
}

func TestPixelLogStoreSkipsNoChange(t *testing.T) {
	s := NewPixelLogStore()
	assert.False(t, s.Insert(NewPixelLog(NewGeoPixel(0.5, 0.5, 2), 4, 4, uuid.Nil)))
	assert.Zero(t, s.Len())
}

// 三个批次：g2最早，g1其次，另有一条无批次记录
func registryFixture(t *testing.T) (*Registry, uuid.UUID, uuid.UUID) {
	t.Helper()
	grid := testGrid(t, 20, 10)
	store := NewPixelLogStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	g1, g2 := uuid.New(), uuid.New()
	add := func(col, row, o, n int, g uuid.UUID, offset time.Duration) {
		store.Insert(PixelLog{Pixel: grid.Centroid(col, row), OldValue: o, NewValue: n, EditDate: base.Add(offset), Group: g})
	}
	add(0, 0, 1, 2, g1, 2*time.Minute)
	add(1, 0, 1, 2, g1, 3*time.Minute)
	add(5, 5, 1, 3, g2, time.Minute)
	add(6, 6, 1, 3, g2, time.Minute)
	add(7, 7, 1, 3, g2, 4*time.Minute)
	add(9, 9, 2, 1, uuid.Nil, 0)
	return NewRegistry(store, grid, ""), g1, g2
}

func TestRegistryUpdateOrdering(t *testing.T) {
	r, g1, g2 := registryFixture(t)
	r.Update()
	require.Equal(t, 2, r.Len())

	first, ok := r.Group(1)
	require.True(t, ok)
	assert.Equal(t, g2, first.Group)
	assert.Len(t, first.Logs, 3)
	assert.True(t, first.Date.Equal(first.Logs[0].EditDate))
	for i := 1; i < len(first.Logs); i++ {
		assert.False(t, first.Logs[i].EditDate.Before(first.Logs[i-1].EditDate))
	}

	second, ok := r.Group(2)
	require.True(t, ok)
	assert.Equal(t, g1, second.Group)
	assert.Equal(t, 2, r.IndexOf(g1))
	assert.Zero(t, r.IndexOf(uuid.Nil))

	_, ok = r.Group(0)
	assert.False(t, ok)
	_, ok = r.Group(3)
	assert.False(t, ok)
}

func TestTileGroupExtent(t *testing.T) {
	r, _, _ := registryFixture(t)
	r.Update()
	g, _ := r.Group(1)
	b := g.Extent(r.Grid())
	assert.Equal(t, 5.0, b.Min.X())
	assert.Equal(t, 8.0, b.Max.X())
	assert.Equal(t, 2.0, b.Min.Y())
	assert.Equal(t, 5.0, b.Max.Y())
	c := g.Center(r.Grid())
	assert.Equal(t, 6.5, c.X())
	assert.Equal(t, 3.5, c.Y())
}

func TestRegistryExportGeoJSON(t *testing.T) {
	r, g1, _ := registryFixture(t)
	out, count, err := r.Export(filepath.Join(t.TempDir(), "edits.geojson"))
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 6)

	byIndex := map[int]int{}
	for _, f := range fc.Features {
		byIndex[f.Properties.MustInt(FIELD_GROUP_INDEX)]++
		assert.InDelta(t, 1.0, f.Geometry.Bound().Right()-f.Geometry.Bound().Left(), 1e-9)
	}
	assert.Equal(t, map[int]int{0: 1, 1: 3, 2: 2}, byIndex)

	f := fc.Features[3]
	assert.Equal(t, r.IndexOf(g1), f.Properties.MustInt(FIELD_GROUP_INDEX))
	assert.Equal(t, 1, f.Properties.MustInt(FIELD_OLD_VALUE))
	assert.Equal(t, 2, f.Properties.MustInt(FIELD_NEW_VALUE))
	assert.Equal(t, "2024-05-01 08:02:00", f.Properties.MustString(FIELD_EDIT_DATE))
}

func TestRegistryExportDefaultExt(t *testing.T) {
	r, _, _ := registryFixture(t)
	base := filepath.Join(t.TempDir(), "edits.txt")
	out, _, err := r.Export(base, FILE_EXT_GEOJSON)
	require.NoError(t, err)
	assert.Equal(t, base+FILE_EXT_GEOJSON, out)
	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestRegistryExportNothing(t *testing.T) {
	r := NewRegistry(NewPixelLogStore(), testGrid(t, 20, 10), "")
	_, _, err := r.Export(filepath.Join(t.TempDir(), "edits.gpkg"))
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestRegistryExportGpkg(t *testing.T) {
	r, _, g2 := registryFixture(t)
	out, count, err := r.Export(filepath.Join(t.TempDir(), "edits.gpkg"))
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	ds, err := gdal.Open(out, gdal.VectorOnly())
	require.NoError(t, err)
	defer ds.Close()
	layers := ds.Layers()
	require.Len(t, layers, 1)
	n, err := layers[0].FeatureCount()
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	idx := r.IndexOf(g2)
	matched := 0
	for feat := layers[0].NextFeature(); feat != nil; feat = layers[0].NextFeature() {
		fields := feat.Fields()
		if int(fields[FIELD_GROUP_INDEX].Int()) == idx {
			assert.EqualValues(t, 1, fields[FIELD_OLD_VALUE].Int())
			assert.EqualValues(t, 3, fields[FIELD_NEW_VALUE].Int())
			matched++
		}
		feat.Close()
	}
	assert.Equal(t, 3, matched)
}
