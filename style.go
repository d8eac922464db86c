package rasedit

import (
	"encoding/xml"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/wgdzlh/rasedit/log"
	"github.com/wgdzlh/rasedit/utils"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// QML样式中的栅格渲染器（分类调色板或伪彩色分级）
type qmlDoc struct {
	Renderers []qmlRenderer `xml:"pipe>rasterrenderer"`
}

type qmlRenderer struct {
	Type    string     `xml:"type,attr"`
	Band    int        `xml:"band,attr"`
	Palette []qmlEntry `xml:"colorPalette>paletteEntry"`
	Items   []qmlEntry `xml:"rastershader>colorrampshader>item"`
}

type qmlEntry struct {
	Value string `xml:"value,attr"`
	Color string `xml:"color,attr"`
	Alpha string `xml:"alpha,attr"`
	Label string `xml:"label,attr"`
}

// 解析QML样式文件中指定波段的分类，支持GBK编码
func ParseQmlStyle(path string, band int) (classes []ClassStyle, err error) {
	f, err := os.Open(path)
	if err != nil {
		err = eris.Wrapf(err, "style: open %s", path)
		return
	}
	defer f.Close()
	var doc qmlDoc
	dec := xml.NewDecoder(f)
	dec.CharsetReader = utils.CharsetReader
	if err = dec.Decode(&doc); err != nil {
		err = eris.Wrapf(err, "style: parse %s", path)
		return
	}
	var rd *qmlRenderer
	for i := range doc.Renderers {
		if doc.Renderers[i].Band == band || len(doc.Renderers) == 1 {
			rd = &doc.Renderers[i]
			break
		}
	}
	if rd == nil {
		err = ErrNoStyle
		return
	}
	entries := rd.Palette
	if len(entries) == 0 {
		entries = rd.Items
	}
	classes = make([]ClassStyle, 0, len(entries))
	for _, e := range entries {
		var c ClassStyle
		if c.Value, err = parseClassValue(e.Value); err != nil {
			return
		}
		if c.Color, err = ParseColor(e.Color); err != nil {
			return
		}
		if e.Alpha != "" {
			a, ae := strconv.Atoi(e.Alpha)
			if ae != nil || a < 0 || a > 255 {
				err = fmt.Errorf("%w: alpha %q", ErrMalformedColor, e.Alpha)
				return
			}
			c.Color.A = uint8(a)
		}
		c.Label = utils.EnsureUtf8(e.Label)
		classes = append(classes, c)
	}
	return
}

func parseClassValue(s string) (v int, err error) {
	s = strings.TrimSpace(s)
	if v, err = strconv.Atoi(s); err == nil {
		return
	}
	f, e := strconv.ParseFloat(s, 64)
	if e != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		err = fmt.Errorf("%w: %q", ErrNonIntegerClass, s)
		return
	}
	v, err = int(f), nil
	return
}

// 解析 #rrggbb 或 #rrggbbaa
func ParseColor(s string) (c color.RGBA, err error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		err = fmt.Errorf("%w: %q", ErrMalformedColor, s)
		return
	}
	n, e := strconv.ParseUint(s, 16, 32)
	if e != nil {
		err = fmt.Errorf("%w: %q", ErrMalformedColor, s)
		return
	}
	if len(s) == 6 {
		n = n<<8 | 0xff
	}
	c = color.RGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}
	return
}

func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// 由调色板构建分类，跳过全透明黑色的空表项
func paletteClasses(p []color.RGBA) (classes []ClassStyle) {
	for i, c := range p {
		if c == (color.RGBA{}) {
			continue
		}
		classes = append(classes, ClassStyle{Value: i, Color: c})
	}
	return
}

// 读取栅格的分类样式：优先同名QML文件，其次栅格自带调色板；无效值不计入
func LoadStyle(r Raster) (classes []ClassStyle, err error) {
	if ss, ok := r.(styleSource); ok {
		qml := utils.ReplaceExt(ss.StylePath(), FILE_EXT_QML)
		if utils.FileExists(qml) {
			log.Info("Style:parse qml style", zap.String("qml", qml), zap.Int("band", ss.StyleBand()))
			if classes, err = ParseQmlStyle(qml, ss.StyleBand()); err != nil {
				return
			}
		}
	}
	if len(classes) == 0 {
		if ps, ok := r.(PaletteSource); ok {
			classes = paletteClasses(ps.Palette())
		}
	}
	if nd, ok := r.NoData(); ok {
		valid := classes[:0]
		for _, c := range classes {
			if float64(c.Value) != nd {
				valid = append(valid, c)
			}
		}
		classes = valid
	}
	if len(classes) == 0 {
		log.Error("Style:raster has no style classes", zap.String("raster", r.Id()))
		err = ErrNoStyle
	}
	return
}

// 已解析样式的缓存，按栅格身份索引
type StyleCache struct {
	c *lru.Cache[string, []ClassStyle]
}

func NewStyleCache(size int) (sc *StyleCache, err error) {
	if size <= 0 {
		size = DEFAULT_STYLE_CACHE
	}
	c, err := lru.New[string, []ClassStyle](size)
	if err != nil {
		return
	}
	sc = &StyleCache{c: c}
	return
}

func (sc *StyleCache) Load(r Raster) (classes []ClassStyle, err error) {
	if classes, ok := sc.c.Get(r.Id()); ok {
		return classes, nil
	}
	if classes, err = LoadStyle(r); err != nil {
		return
	}
	sc.c.Add(r.Id(), classes)
	return
}

// 基于缓存样式构建新的重编码表
func (sc *StyleCache) Table(r Raster) (*RecodeTable, error) {
	classes, err := sc.Load(r)
	if err != nil {
		return nil, err
	}
	return NewRecodeTable(classes)
}

func (sc *StyleCache) Invalidate(id string) {
	sc.c.Remove(id)
}
