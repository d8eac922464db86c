package rasedit

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

// 测试格网：像元大小1，左上角(0,h)
func testGrid(t *testing.T, w, h int) Grid {
	t.Helper()
	g, err := NewGrid(w, h, [6]float64{0, 1, 0, float64(h), 0, -1})
	require.NoError(t, err)
	return g
}

func filledRaster(t *testing.T, w, h int, v int32) *MemRaster {
	t.Helper()
	data := make([]int32, w*h)
	for i := range data {
		data[i] = v
	}
	r, err := NewMemRaster("mem", testGrid(t, w, h), data)
	require.NoError(t, err)
	return r
}

func testClasses() []ClassStyle {
	return []ClassStyle{
		{Value: 1, Color: color.RGBA{R: 255, A: 255}, Label: "farmland"},
		{Value: 2, Color: color.RGBA{G: 255, A: 255}, Label: "forest"},
		{Value: 3, Color: color.RGBA{B: 255, A: 255}, Label: "water"},
	}
}

// 重编码表，mapping为需设置的 旧值→新值
func testTable(t *testing.T, mapping map[int]int) *RecodeTable {
	t.Helper()
	table, err := NewRecodeTable(testClasses())
	require.NoError(t, err)
	for o, n := range mapping {
		n := n
		require.NoError(t, table.SetNewValue(o, &n))
	}
	return table
}

func cellValue(t *testing.T, r Raster, col, row int) int {
	t.Helper()
	v, err := r.ReadCell(col, row)
	require.NoError(t, err)
	return v
}

func bandOf(t *testing.T, r Raster) []int32 {
	t.Helper()
	data, err := r.ReadBand()
	require.NoError(t, err)
	return data
}

func intPtr(v int) *int {
	return &v
}
