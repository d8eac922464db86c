package rasedit

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r2"
)

// 点到线段的距离
func segmentDistance(p, a, b r2.Vec) float64 {
	d := r2.Sub(b, a)
	l2 := r2.Dot(d, d)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := r2.Dot(r2.Sub(p, a), d) / l2
	t = math.Max(0, math.Min(1, t))
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, d))))
}

func toVec(p orb.Point) r2.Vec {
	return r2.Vec{X: p[0], Y: p[1]}
}

// 去掉相邻重复点
func dedupLine(ls orb.LineString) orb.LineString {
	ret := make(orb.LineString, 0, len(ls))
	for i, p := range ls {
		if i > 0 && p.Equal(ls[i-1]) {
			continue
		}
		ret = append(ret, p)
	}
	return ret
}

// 线缓冲覆盖的像元：中心点到任一线段的距离不超过 平均像元尺寸*width，按首次命中顺序去重
func lineCandidates(grid Grid, ls orb.LineString, width float64) (pixels []GeoPixel) {
	ls = dedupLine(ls)
	if len(ls) < 2 || width <= 0 {
		return
	}
	var (
		dist   = grid.AveragePixelSize() * width
		expand = math.Max(grid.PixelSizeX(), grid.PixelSizeY()) * width
		seen   = map[PixelKey]struct{}{}
	)
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		bound := orb.Bound{Min: a, Max: a}.Extend(b).Pad(expand)
		c0, c1, r0, r1, ok := grid.CellRange(bound)
		if !ok {
			continue
		}
		va, vb := toVec(a), toVec(b)
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				x, y := grid.CentroidXY(col, row)
				if segmentDistance(r2.Vec{X: x, Y: y}, va, vb) > dist {
					continue
				}
				p := grid.Centroid(col, row)
				if _, dup := seen[p.Key()]; dup {
					continue
				}
				seen[p.Key()] = struct{}{}
				pixels = append(pixels, p)
			}
		}
	}
	return
}

// 非水平边，y0 < y1
type polyEdge struct {
	x0, y0, x1, y1 float64
}

// 预处理的多边形，用扫描线交点做奇偶规则判断，适合按行批量查询
type preparedPolygon struct {
	edges []polyEdge // 按y0升序
	bound orb.Bound
	lastY float64
	xs    []float64
	valid bool
}

func preparePolygon(poly orb.Polygon) *preparedPolygon {
	pp := &preparedPolygon{bound: poly.Bound()}
	for _, ring := range poly {
		n := len(ring)
		for i := 0; i < n; i++ {
			a, b := ring[i], ring[(i+1)%n]
			if a[1] == b[1] {
				continue
			}
			if a[1] > b[1] {
				a, b = b, a
			}
			pp.edges = append(pp.edges, polyEdge{a[0], a[1], b[0], b[1]})
		}
	}
	sort.Slice(pp.edges, func(i, j int) bool { return pp.edges[i].y0 < pp.edges[j].y0 })
	return pp
}

// 水平线y与各边的交点横坐标（升序），同一y连续查询时复用
func (pp *preparedPolygon) crossings(y float64) []float64 {
	if pp.valid && pp.lastY == y {
		return pp.xs
	}
	xs := pp.xs[:0]
	for _, e := range pp.edges {
		if e.y0 > y {
			break
		}
		if y >= e.y1 {
			continue
		}
		xs = append(xs, e.x0+(y-e.y0)*(e.x1-e.x0)/(e.y1-e.y0))
	}
	sort.Float64s(xs)
	pp.xs, pp.lastY, pp.valid = xs, y, true
	return xs
}

func (pp *preparedPolygon) Contains(p orb.Point) bool {
	if !pp.bound.Contains(p) {
		return false
	}
	xs := pp.crossings(p[1])
	return sort.SearchFloat64s(xs, p[0])%2 == 1
}

// 有效多边形：外环至少3个不同顶点
func validPolygon(poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	distinct := map[orb.Point]struct{}{}
	for _, p := range poly[0] {
		distinct[p] = struct{}{}
	}
	return len(distinct) >= 3
}

// 中心点落在多边形内的像元，按行优先顺序
func polygonCandidates(grid Grid, poly orb.Polygon) (pixels []GeoPixel) {
	if !validPolygon(poly) {
		return
	}
	pp := preparePolygon(poly)
	c0, c1, r0, r1, ok := grid.CellRange(pp.bound)
	if !ok {
		return
	}
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			x, y := grid.CentroidXY(col, row)
			if pp.Contains(orb.Point{x, y}) {
				pixels = append(pixels, grid.Centroid(col, row))
			}
		}
	}
	return
}
