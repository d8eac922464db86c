package rasedit

import (
	"fmt"
	"math"
)

// 像元地理身份：以像元中心点坐标标识，按像元尺寸推导的小数位数取整后比较
type GeoPixel struct {
	X, Y float64
	tol  int
}

// 取整后的坐标，可作map键
type PixelKey struct {
	X, Y int64
}

func NewGeoPixel(x, y float64, tolerance int) GeoPixel {
	return GeoPixel{X: x, Y: y, tol: tolerance}
}

// 由像元尺寸推导坐标比较的小数位数：像元越粗，位数越少
func PixelTolerance(pixelSize float64) int {
	ps := math.Abs(pixelSize)
	if ps == 0 || math.IsNaN(ps) || math.IsInf(ps, 0) {
		return 0
	}
	// Log10对10的整数次幂可能略小于真值
	tol := 1 - int(math.Floor(math.Log10(ps)+1e-9))
	if ps >= 1 {
		tol++
	}
	return tol
}

func (p GeoPixel) Tolerance() int {
	return p.tol
}

func roundTo(v float64, tol int) int64 {
	return int64(math.Round(v * math.Pow10(tol)))
}

func (p GeoPixel) Key() PixelKey {
	return PixelKey{roundTo(p.X, p.tol), roundTo(p.Y, p.tol)}
}

func (p GeoPixel) Equal(o GeoPixel) bool {
	return roundTo(p.X, p.tol) == roundTo(o.X, p.tol) && roundTo(p.Y, p.tol) == roundTo(o.Y, p.tol)
}

func (p GeoPixel) String() string {
	return fmt.Sprintf("(%.*f, %.*f)", max0(p.tol), p.X, max0(p.tol), p.Y)
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// 像元及其取值
type PixelValue struct {
	Pixel GeoPixel
	Value int
}
