package rasedit

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// 拾取工具类型
type GestureKind int

const (
	KindPixel GestureKind = iota
	KindLine
	KindPolygon
	KindFreehand
)

var GestureKinds = []GestureKind{KindPixel, KindLine, KindPolygon, KindFreehand}

func (k GestureKind) String() string {
	switch k {
	case KindPixel:
		return "pixel"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	case KindFreehand:
		return "freehand"
	}
	return fmt.Sprintf("GestureKind(%d)", int(k))
}

func ParseGestureKind(s string) (k GestureKind, err error) {
	for _, k = range GestureKinds {
		if strings.EqualFold(k.String(), s) {
			return
		}
	}
	err = fmt.Errorf("%w: %q", ErrUnknownGesture, s)
	return
}

// 一次拾取手势，坐标与栅格同一坐标系
type Gesture interface {
	Kind() GestureKind
	Geometry() orb.Geometry
}

type PixelPick struct {
	Point orb.Point
}

// 线拾取，Buffer为平均像元尺寸的倍数，<=0时使用配置的默认值
type LinePick struct {
	Line   orb.LineString
	Buffer float64
}

type PolygonPick struct {
	Polygon orb.Polygon
}

// 手绘拾取，与多边形拾取同一算法
type FreehandPick struct {
	Polygon orb.Polygon
}

func (PixelPick) Kind() GestureKind    { return KindPixel }
func (LinePick) Kind() GestureKind     { return KindLine }
func (PolygonPick) Kind() GestureKind  { return KindPolygon }
func (FreehandPick) Kind() GestureKind { return KindFreehand }

func (g PixelPick) Geometry() orb.Geometry    { return g.Point }
func (g LinePick) Geometry() orb.Geometry     { return g.Line }
func (g PolygonPick) Geometry() orb.Geometry  { return g.Polygon }
func (g FreehandPick) Geometry() orb.Geometry { return g.Polygon }

// 由几何构造指定类型的手势
func NewGesture(kind GestureKind, geo orb.Geometry, buffer float64) (g Gesture, err error) {
	if geo == nil {
		err = ErrWrongGeoType
		return
	}
	switch kind {
	case KindPixel:
		if p, ok := geo.(orb.Point); ok {
			return PixelPick{Point: p}, nil
		}
	case KindLine:
		if ls, ok := geo.(orb.LineString); ok {
			return LinePick{Line: ls, Buffer: buffer}, nil
		}
	case KindPolygon, KindFreehand:
		var poly orb.Polygon
		switch v := geo.(type) {
		case orb.Polygon:
			poly = v
		case orb.Ring:
			poly = orb.Polygon{v}
		default:
			err = fmt.Errorf("%w: %s for %s", ErrWrongGeoType, geo.GeoJSONType(), kind)
			return
		}
		if kind == KindFreehand {
			return FreehandPick{Polygon: poly}, nil
		}
		return PolygonPick{Polygon: poly}, nil
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownGesture, kind)
		return
	}
	err = fmt.Errorf("%w: %s for %s", ErrWrongGeoType, geo.GeoJSONType(), kind)
	return
}

// 由WKT解析手势
func ParseGesture(kind GestureKind, s string, buffer float64) (g Gesture, err error) {
	geo, err := wkt.Unmarshal(s)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrWrongGeoType, err)
		return
	}
	return NewGesture(kind, geo, buffer)
}

// 由GeoJSON几何或要素解析手势
func ParseGestureGeoJSON(kind GestureKind, data []byte, buffer float64) (g Gesture, err error) {
	if f, e := geojson.UnmarshalFeature(data); e == nil && f.Geometry != nil {
		return NewGesture(kind, f.Geometry, buffer)
	}
	geo, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrWrongGeoType, err)
		return
	}
	return NewGesture(kind, geo.Geometry(), buffer)
}
