package rasedit

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/wgdzlh/rasedit/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecodeTableOldNewValue(t *testing.T) {
	table := testTable(t, map[int]int{1: 2})
	require.NoError(t, table.SetNewValue(3, intPtr(3)))
	assert.Equal(t, map[int]int{1: 2}, table.OldNewValue())

	nv, ok := table.Resolve(1)
	assert.True(t, ok)
	assert.Equal(t, 2, nv)
	_, ok = table.Resolve(3)
	assert.False(t, ok)
	assert.Equal(t, []int{1}, table.ChangedValues())

	assert.ErrorIs(t, table.SetNewValue(7, intPtr(1)), ErrUnknownClass)
	assert.ErrorIs(t, table.SetVisible(7, false), ErrUnknownClass)
}

func TestRecodeTableRestore(t *testing.T) {
	table := testTable(t, map[int]int{1: 2, 2: 3})
	require.NoError(t, table.SetVisible(2, false))
	table.Restore()
	assert.True(t, table.Empty())
	e, ok := table.Entry(2)
	require.True(t, ok)
	assert.True(t, e.Visible)
	assert.Nil(t, e.NewValue)
}

func TestRecodeTableEntriesAreCopies(t *testing.T) {
	table := testTable(t, map[int]int{1: 2})
	es := table.Entries()
	*es[0].NewValue = 9
	nv, _ := table.Resolve(1)
	assert.Equal(t, 2, nv)
}

func TestRecodeTableRows(t *testing.T) {
	table := testTable(t, map[int]int{1: 3})
	require.NoError(t, table.SetVisible(2, false))
	rows := table.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "#ff0000ff", rows[0].Color)

	other := testTable(t, nil)
	require.NoError(t, other.ApplyRows(rows))
	assert.Equal(t, map[int]int{1: 3}, other.OldNewValue())
	e, _ := other.Entry(2)
	assert.False(t, e.Visible)

	assert.ErrorIs(t, other.ApplyRows([]RecodeRow{{Value: 42}}), ErrUnknownClass)
}

func TestNewRecodeTableRejects(t *testing.T) {
	_, err := NewRecodeTable(nil)
	assert.ErrorIs(t, err, ErrNoStyle)
	_, err = NewRecodeTable([]ClassStyle{{Value: 1}, {Value: 1}})
	assert.ErrorIs(t, err, ErrDuplicateClass)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#1a2b3c")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 0xff}, c)
	c, err = ParseColor("#1a2b3c80")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), c.A)
	assert.Equal(t, "#1a2b3c80", FormatColor(c))

	_, err = ParseColor("#12345")
	assert.ErrorIs(t, err, ErrMalformedColor)
	_, err = ParseColor("#zzzzzz")
	assert.ErrorIs(t, err, ErrMalformedColor)
}

// 带同名QML样式文件的内存栅格
type qmlRaster struct {
	*MemRaster
	path string
}

func (r qmlRaster) StylePath() string { return r.path }
func (r qmlRaster) StyleBand() int    { return 1 }

const testQml = `<?xml version="1.0" encoding="%s"?>
<qgis version="3.22">
  <pipe>
    <rasterrenderer type="paletted" band="1" opacity="1">
      <colorPalette>
        <paletteEntry value="0" color="#000000" alpha="0" label="nodata"/>
        <paletteEntry value="1" color="#e6e600" alpha="255" label="%s"/>
        <paletteEntry value="2" color="#38a800" alpha="255" label="forest"/>
        <paletteEntry value="%s" color="#0070ff" alpha="200" label="water"/>
      </colorPalette>
    </rasterrenderer>
  </pipe>
</qgis>
`

func writeQml(t *testing.T, dir, charset, label, last string) string {
	t.Helper()
	doc := []byte(fmt.Sprintf(testQml, charset, label, last))
	if charset == "GBK" {
		var err error
		doc, err = utils.Utf8ToGbk(doc)
		require.NoError(t, err)
	}
	p := filepath.Join(dir, "class.qml")
	require.NoError(t, os.WriteFile(p, doc, 0o644))
	return filepath.Join(dir, "class.tif")
}

func TestLoadStyleFromGbkQml(t *testing.T) {
	path := writeQml(t, t.TempDir(), "GBK", "耕地", "3")
	r := qmlRaster{MemRaster: filledRaster(t, 4, 4, 1), path: path}
	r.SetNoData(0)

	classes, err := LoadStyle(r)
	require.NoError(t, err)
	require.Len(t, classes, 3)
	assert.Equal(t, 1, classes[0].Value)
	assert.Equal(t, "耕地", classes[0].Label)
	assert.Equal(t, color.RGBA{R: 0x00, G: 0x70, B: 0xff, A: 200}, classes[2].Color)
}

func TestLoadStyleNonIntegerClass(t *testing.T) {
	path := writeQml(t, t.TempDir(), "UTF-8", "farmland", "3.5")
	r := qmlRaster{MemRaster: filledRaster(t, 4, 4, 1), path: path}
	_, err := LoadStyle(r)
	assert.ErrorIs(t, err, ErrNonIntegerClass)
}

func TestLoadStyleFromPalette(t *testing.T) {
	r := filledRaster(t, 4, 4, 1)
	r.SetPalette([]color.RGBA{
		{R: 1, G: 1, B: 1, A: 255},
		{R: 255, A: 255},
		{},
		{B: 255, A: 255},
	})
	r.SetNoData(0)
	classes, err := LoadStyle(r)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, 1, classes[0].Value)
	assert.Equal(t, 3, classes[1].Value)
}

func TestLoadStyleMissing(t *testing.T) {
	_, err := LoadStyle(filledRaster(t, 4, 4, 1))
	assert.ErrorIs(t, err, ErrNoStyle)
}

func TestStyleCache(t *testing.T) {
	r := filledRaster(t, 4, 4, 1)
	r.SetPalette([]color.RGBA{{}, {R: 255, A: 255}, {G: 255, A: 255}})
	sc, err := NewStyleCache(2)
	require.NoError(t, err)

	t1, err := sc.Table(r)
	require.NoError(t, err)
	require.NoError(t, t1.SetNewValue(1, intPtr(2)))

	// 缓存命中时仍得到独立的新表
	r.SetPalette(nil)
	t2, err := sc.Table(r)
	require.NoError(t, err)
	assert.Equal(t, 2, t2.Len())
	assert.True(t, t2.Empty())

	sc.Invalidate(r.Id())
	_, err = sc.Table(r)
	assert.ErrorIs(t, err, ErrNoStyle)
}
