package rasedit

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/wgdzlh/rasedit/log"
	"github.com/wgdzlh/rasedit/utils"

	gdal "github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

func init() {
	gdal.RegisterAll()
}

// 基于GDAL的单波段分类栅格
type GdalRaster struct {
	path      string
	band      int
	tmpDir    string
	grid      Grid
	noData    float64
	hasNoData bool
	minValue  int
	maxValue  int
	ds        *gdal.Dataset
	editing   bool
	mu        sync.Mutex
	logTag    string
}

// 打开分类栅格，band从1开始，tmpDir为可选的整图写回临时目录（未提供时与原文件同目录）
func OpenGdalRaster(path string, band int, tmpDir ...string) (r *GdalRaster, err error) {
	r = &GdalRaster{
		path:   path,
		band:   band,
		logTag: "GdalRaster:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		r.tmpDir = tmpDir[0]
	}
	if err = r.open(false); err != nil {
		r = nil
		return
	}
	gt, err := r.ds.GeoTransform()
	if err != nil {
		log.Error(r.logTag+"read geotransform failed", zap.String("tif", path), zap.Error(err))
		r.ds.Close()
		r, err = nil, ErrNoGeoTransform
		return
	}
	st := r.ds.Structure()
	if r.grid, err = NewGrid(st.SizeX, st.SizeY, gt); err != nil {
		r.ds.Close()
		r = nil
		return
	}
	b := r.rasterBand()
	var ok bool
	if r.minValue, r.maxValue, ok = valueRange(b.Structure().DataType); !ok {
		log.Error(r.logTag+"tif band is not integer", zap.String("tif", path), zap.String("dataType", b.Structure().DataType.String()))
		r.ds.Close()
		r, err = nil, ErrInvalidTif
		return
	}
	r.noData, r.hasNoData = b.NoData()
	log.Info(r.logTag+"raster opened", zap.String("tif", path), zap.Int("band", band),
		zap.Int("width", st.SizeX), zap.Int("height", st.SizeY), zap.Bool("hasNoData", r.hasNoData))
	return
}

// 整型波段可写入的取值范围；UInt32受int32缓冲区限制
func valueRange(dt gdal.DataType) (lo, hi int, ok bool) {
	ok = true
	switch dt {
	case gdal.Byte:
		lo, hi = 0, math.MaxUint8
	case gdal.UInt16:
		lo, hi = 0, math.MaxUint16
	case gdal.Int16:
		lo, hi = math.MinInt16, math.MaxInt16
	case gdal.UInt32:
		lo, hi = 0, math.MaxInt32
	case gdal.Int32:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		ok = false
	}
	return
}

// 波段数据类型可容纳的取值范围
func (r *GdalRaster) ValueRange() (lo, hi int) {
	return r.minValue, r.maxValue
}

func (r *GdalRaster) inRange(v int) bool {
	return v >= r.minValue && v <= r.maxValue
}

// 数据集已关闭（或重新打开失败）时返回错误
func (r *GdalRaster) checkOpen() error {
	if r.ds == nil {
		return eris.Wrapf(ErrInvalidTif, "raster: %s is closed", r.path)
	}
	return nil
}

func (r *GdalRaster) open(update bool) (err error) {
	opts := []gdal.OpenOption{gdal.RasterOnly()}
	if update {
		opts = append(opts, gdal.Update())
	}
	ds, err := gdal.Open(r.path, opts...)
	if err != nil {
		log.Error(r.logTag+"open tif failed", zap.String("tif", r.path), zap.Bool("update", update), zap.Error(err))
		if update {
			err = eris.Wrapf(ErrEditDenied, "raster: open %s for update: %v", r.path, err)
		} else {
			err = eris.Wrapf(ErrInvalidTif, "raster: open %s: %v", r.path, err)
		}
		return
	}
	if bc := len(ds.Bands()); r.band < 1 || r.band > bc {
		log.Error(r.logTag+"tif band out of range", zap.Int("band", r.band), zap.Int("bands", bc))
		ds.Close()
		err = ErrWrongRasterBand
		return
	}
	r.ds = ds
	return
}

func (r *GdalRaster) rasterBand() gdal.Band {
	return r.ds.Bands()[r.band-1]
}

func (r *GdalRaster) Id() string {
	return fmt.Sprintf("%s#%d", r.path, r.band)
}

func (r *GdalRaster) Path() string {
	return r.path
}

func (r *GdalRaster) StylePath() string {
	return r.path
}

func (r *GdalRaster) StyleBand() int {
	return r.band
}

func (r *GdalRaster) Grid() Grid {
	return r.grid
}

func (r *GdalRaster) Projection() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ds == nil {
		return ""
	}
	return r.ds.Projection()
}

func (r *GdalRaster) NoData() (float64, bool) {
	return r.noData, r.hasNoData
}

// GDAL颜色表，索引即分类值。GTiff会把颜色表补齐到1<<位深项（补齐项为不透明黑色），
// 这些补齐项在波段中未出现时置空并截掉末尾
func (r *GdalRaster) Palette() (p []color.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checkOpen() != nil {
		return
	}
	ct := r.rasterBand().ColorTable()
	if len(ct.Entries) == 0 {
		return
	}
	p = make([]color.RGBA, len(ct.Entries))
	for i, e := range ct.Entries {
		p[i] = color.RGBA{R: uint8(e[0]), G: uint8(e[1]), B: uint8(e[2]), A: uint8(e[3])}
	}
	data, err := r.readBand()
	if err != nil {
		log.Warn(r.logTag+"read band for palette failed", zap.String("tif", r.path), zap.Error(err))
	}
	p = trimPalette(p, presentValues(data, len(p)))
	return
}

// 数据中出现过的[0,n)内取值
func presentValues(data []int32, n int) []bool {
	present := make([]bool, n)
	for _, v := range data {
		if v >= 0 && int(v) < n {
			present[v] = true
		}
	}
	return present
}

var paddingColor = color.RGBA{A: 255}

func trimPalette(p []color.RGBA, present []bool) []color.RGBA {
	last := -1
	for i, c := range p {
		if c == paddingColor && (i >= len(present) || !present[i]) {
			p[i] = color.RGBA{}
			continue
		}
		if c != (color.RGBA{}) {
			last = i
		}
	}
	return p[:last+1]
}

func (r *GdalRaster) ReadCell(col, row int) (v int, err error) {
	if !r.grid.InRange(col, row) {
		err = ErrCellOutOfRange
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err = r.checkOpen(); err != nil {
		return
	}
	buf := make([]int32, 1)
	if err = r.rasterBand().IO(gdal.IORead, col, row, buf, 1, 1); err != nil {
		log.Error(r.logTag+"read cell failed", zap.Int("col", col), zap.Int("row", row), zap.Error(err))
		err = eris.Wrapf(ErrTifReadFailed, "raster: read cell (%d,%d): %v", col, row, err)
		return
	}
	v = int(buf[0])
	return
}

func (r *GdalRaster) WriteCell(col, row, value int) (err error) {
	if !r.grid.InRange(col, row) {
		err = ErrCellOutOfRange
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.editing {
		err = ErrNotEditing
		return
	}
	if !r.inRange(value) {
		log.Error(r.logTag+"cell value out of band range", zap.Int("value", value), zap.Int("min", r.minValue), zap.Int("max", r.maxValue))
		err = eris.Wrapf(ErrCellWrite, "raster: value %d out of band range [%d,%d]", value, r.minValue, r.maxValue)
		return
	}
	if err = r.rasterBand().IO(gdal.IOWrite, col, row, []int32{int32(value)}, 1, 1); err != nil {
		log.Error(r.logTag+"write cell failed", zap.Int("col", col), zap.Int("row", row), zap.Int("value", value), zap.Error(err))
		err = eris.Wrapf(ErrCellWrite, "raster: write cell (%d,%d): %v", col, row, err)
	}
	return
}

// 以更新模式重新打开数据集
func (r *GdalRaster) BeginEdit() (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.editing {
		err = ErrEditOpen
		return
	}
	if err = r.checkOpen(); err != nil {
		return
	}
	ro := r.ds
	if err = r.open(true); err != nil {
		r.ds = ro
		return
	}
	ro.Close()
	r.editing = true
	log.Debug(r.logTag+"edit session opened", zap.String("tif", r.path))
	return
}

// 关闭更新模式（落盘），恢复只读数据集；即使落盘出错也会释放编辑状态
func (r *GdalRaster) EndEdit() (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.editing {
		return
	}
	r.editing = false
	e := r.ds.Close()
	r.ds = nil
	if e != nil {
		log.Error(r.logTag+"flush edit session failed", zap.String("tif", r.path), zap.Error(e))
		err = eris.Wrapf(ErrCellWrite, "raster: flush %s: %v", r.path, e)
	}
	if e := r.open(false); e != nil && err == nil {
		err = e
	}
	log.Debug(r.logTag+"edit session closed", zap.String("tif", r.path))
	return
}

func (r *GdalRaster) Editing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.editing
}

func (r *GdalRaster) ReadBand() (buf []int32, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err = r.checkOpen(); err != nil {
		return
	}
	return r.readBand()
}

func (r *GdalRaster) readBand() (buf []int32, err error) {
	x, y := r.grid.Width, r.grid.Height
	buf = make([]int32, x*y)
	log.Info(r.logTag+"read tif band", zap.Int("band", r.band), zap.Int("width", x), zap.Int("height", y))
	if err = r.rasterBand().IO(gdal.IORead, 0, 0, buf, x, y); err != nil {
		log.Error(r.logTag+"read tif band failed", zap.Int("band", r.band), zap.Error(err))
		buf, err = nil, eris.Wrapf(ErrTifReadFailed, "raster: read band %d: %v", r.band, err)
	}
	return
}

// 复制原文件（含其他波段、无效值、颜色表、类别名、元数据、仿射变换与投影）到临时文件，
// 写入新波段数据后原子替换原文件；任何一步失败均删除临时文件，原文件不受影响
func (r *GdalRaster) WriteBand(data []int32) (err error) {
	x, y := r.grid.Width, r.grid.Height
	if len(data) != x*y {
		err = ErrWrongBufferSize
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.editing {
		err = ErrEditOpen
		return
	}
	if err = r.checkOpen(); err != nil {
		return
	}
	for i, v := range data {
		if !r.inRange(int(v)) {
			log.Error(r.logTag+"band value out of range", zap.Int("index", i), zap.Int32("value", v))
			err = eris.Wrapf(ErrBandWrite, "raster: value %d at %d out of band range [%d,%d]", v, i, r.minValue, r.maxValue)
			return
		}
	}
	tmp := utils.GetTmpPath(r.tmpDir, r.path)
	replaced := false
	defer func() {
		if !replaced {
			utils.RemoveWithSidecars(tmp)
		}
	}()
	log.Info(r.logTag+"start write tif band", zap.String("tif", r.path), zap.String("tmp", tmp))
	ods, err := r.ds.Translate(tmp, []string{"-of", driverNameOf(r.path)})
	if err != nil {
		log.Error(r.logTag+"failed to copy tif", zap.Error(err))
		err = eris.Wrapf(ErrBandWrite, "raster: copy %s: %v", r.path, err)
		return
	}
	if err = ods.Bands()[r.band-1].IO(gdal.IOWrite, 0, 0, data, x, y); err != nil {
		ods.Close()
		log.Error(r.logTag+"failed to write tif band", zap.Error(err))
		err = eris.Wrapf(ErrBandWrite, "raster: write band %d: %v", r.band, err)
		return
	}
	if err = ods.Close(); err != nil {
		log.Error(r.logTag+"failed to flush tmp tif", zap.Error(err))
		err = eris.Wrapf(ErrBandWrite, "raster: flush %s: %v", tmp, err)
		return
	}
	r.ds.Close()
	r.ds = nil
	if err = utils.ReplaceFile(tmp, r.path); err != nil {
		log.Error(r.logTag+"failed to replace tif", zap.Error(err))
		err = eris.Wrapf(ErrBandWrite, "raster: replace %s: %v", r.path, err)
		if e := r.open(false); e != nil {
			log.Error(r.logTag+"reopen original tif failed", zap.Error(e))
		}
		return
	}
	replaced = true
	if utils.FileExists(tmp + ".aux.xml") {
		if e := os.Rename(tmp+".aux.xml", r.path+".aux.xml"); e != nil {
			log.Warn(r.logTag+"move aux.xml failed", zap.Error(e))
		}
	}
	err = r.open(false)
	log.Info(r.logTag+"end write tif band", zap.String("tif", r.path), zap.Error(err))
	return
}

func (r *GdalRaster) Close() (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ds == nil {
		return
	}
	r.editing = false
	err = r.ds.Close()
	r.ds = nil
	return
}

func driverNameOf(path string) string {
	switch utils.GetExt(path) {
	case FILE_EXT_IMG:
		return HFA_DRIVER_NAME
	default:
		return GTIFF_DRIVER_NAME
	}
}
