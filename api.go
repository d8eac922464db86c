package rasedit

import "image/color"

// 单波段分类栅格的读写抽象
type Raster interface {
	// 栅格身份（路径+波段）
	Id() string
	Grid() Grid
	// 投影WKT，可为空
	Projection() string
	NoData() (value float64, ok bool)
	ReadCell(col, row int) (int, error)
	// 需在BeginEdit/EndEdit之间调用，单像元原子写入
	WriteCell(col, row, value int) error
	BeginEdit() error
	EndEdit() error
	Editing() bool
	// 整波段读写，按行优先排列，长度为Width*Height
	ReadBand() ([]int32, error)
	// 写回整波段：先写临时文件再原子替换，保留其他波段及元数据
	WriteBand(data []int32) error
	Close() error
}

// 可提供调色板的栅格（如GDAL颜色表），索引即分类值
type PaletteSource interface {
	Palette() []color.RGBA
}

// 样式中的一个分类
type ClassStyle struct {
	Value int
	Color color.RGBA
	Label string
}

// 可从同名QML样式文件读取分类的栅格
type styleSource interface {
	StylePath() string
	StyleBand() int
}
