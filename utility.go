package rasedit

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

func PointsToWkt(x1, x2, y1, y2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", x1, x2, y1, y2)
}

func BoundToWkt(b orb.Bound) string {
	return PointsToWkt(b.Min.X(), b.Max.X(), b.Min.Y(), b.Max.Y())
}

// 栅格格网：北向上、无旋转的仿射变换
type Grid struct {
	Width, Height int
	GeoTransform  [6]float64
}

func NewGrid(width, height int, gt [6]float64) (g Grid, err error) {
	if width <= 0 || height <= 0 {
		err = ErrInvalidTif
		return
	}
	if gt[2] != 0 || gt[4] != 0 {
		err = ErrRotatedRaster
		return
	}
	if gt[1] <= 0 || gt[5] >= 0 {
		err = ErrNoGeoTransform
		return
	}
	g = Grid{Width: width, Height: height, GeoTransform: gt}
	return
}

func (g Grid) PixelSizeX() float64 {
	return math.Abs(g.GeoTransform[1])
}

func (g Grid) PixelSizeY() float64 {
	return math.Abs(g.GeoTransform[5])
}

func (g Grid) AveragePixelSize() float64 {
	return (g.PixelSizeX() + g.PixelSizeY()) / 2
}

func (g Grid) Tolerance() int {
	return PixelTolerance(g.PixelSizeX())
}

func (g Grid) MinX() float64 {
	return g.GeoTransform[0]
}

func (g Grid) MaxY() float64 {
	return g.GeoTransform[3]
}

func (g Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.MinX(), g.MaxY() - float64(g.Height)*g.PixelSizeY()},
		Max: orb.Point{g.MinX() + float64(g.Width)*g.PixelSizeX(), g.MaxY()},
	}
}

// 坐标所在像元的行列号，向下取整，两轴一致
func (g Grid) CellOf(x, y float64) (col, row int, ok bool) {
	col = int(math.Floor((x - g.MinX()) / g.PixelSizeX()))
	row = int(math.Floor((g.MaxY() - y) / g.PixelSizeY()))
	ok = g.InRange(col, row)
	return
}

func (g Grid) InRange(col, row int) bool {
	return col >= 0 && col < g.Width && row >= 0 && row < g.Height
}

func (g Grid) CentroidXY(col, row int) (x, y float64) {
	x = g.MinX() + (float64(col)+0.5)*g.PixelSizeX()
	y = g.MaxY() - (float64(row)+0.5)*g.PixelSizeY()
	return
}

func (g Grid) Centroid(col, row int) GeoPixel {
	x, y := g.CentroidXY(col, row)
	return NewGeoPixel(x, y, g.Tolerance())
}

// 将任意坐标吸附为所在像元的中心点
func (g Grid) Snap(x, y float64) (p GeoPixel, ok bool) {
	col, row, ok := g.CellOf(x, y)
	if !ok {
		return
	}
	p = g.Centroid(col, row)
	return
}

// 以像元中心为中心、一个像元大小的方框
func (g Grid) Footprint(p GeoPixel) orb.Bound {
	hx, hy := g.PixelSizeX()/2, g.PixelSizeY()/2
	return orb.Bound{
		Min: orb.Point{p.X - hx, p.Y - hy},
		Max: orb.Point{p.X + hx, p.Y + hy},
	}
}

// 与范围相交的像元行列区间（已裁剪到栅格内），ok为false表示与栅格无交集
func (g Grid) CellRange(b orb.Bound) (c0, c1, r0, r1 int, ok bool) {
	if !g.Bound().Intersects(b) {
		return
	}
	c0 = int(math.Floor((b.Min.X() - g.MinX()) / g.PixelSizeX()))
	c1 = int(math.Floor((b.Max.X() - g.MinX()) / g.PixelSizeX()))
	r0 = int(math.Floor((g.MaxY() - b.Max.Y()) / g.PixelSizeY()))
	r1 = int(math.Floor((g.MaxY() - b.Min.Y()) / g.PixelSizeY()))
	c0, c1 = clamp(c0, 0, g.Width-1), clamp(c1, 0, g.Width-1)
	r0, r1 = clamp(r0, 0, g.Height-1), clamp(r1, 0, g.Height-1)
	ok = c0 <= c1 && r0 <= r1
	return
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
