package rasedit

import (
	"context"
	"time"

	"github.com/wgdzlh/rasedit/log"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 单次编辑的选项
type EditOpts struct {
	Value *int      // 指定写入值（撤销/重做回放），nil时按重编码表解析
	Group uuid.UUID // 编辑批次
	Store bool      // 是否写入编辑记录
}

// 像元编辑引擎：把拾取几何转换为像元集合，逐像元写入并产生编辑记录
type Engine struct {
	raster  Raster
	grid    Grid
	table   *RecodeTable
	store   *PixelLogStore
	workers int
	logTag  string
}

func NewEngine(r Raster, table *RecodeTable, store *PixelLogStore, workers int) *Engine {
	if workers <= 0 {
		workers = DEFAULT_REMAP_WORKER
	}
	return &Engine{
		raster:  r,
		grid:    r.Grid(),
		table:   table,
		store:   store,
		workers: workers,
		logTag:  "Engine:",
	}
}

// 在编辑会话中执行f；会话已由调用方打开时不重复打开，也不负责关闭
func (e *Engine) withEdit(f func() error) (err error) {
	if e.raster.Editing() {
		return f()
	}
	if err = e.raster.BeginEdit(); err != nil {
		log.Error(e.logTag+"open edit session failed", zap.String("raster", e.raster.Id()), zap.Error(err))
		return
	}
	defer func() {
		if ee := e.raster.EndEdit(); ee != nil && err == nil {
			err = ee
		}
	}()
	return f()
}

// 编辑单个像元，无需修改或像元在栅格外时返回nil
func (e *Engine) EditPixel(p GeoPixel, opts EditOpts) (l *PixelLog, err error) {
	err = e.withEdit(func() (err error) {
		l, err = e.editPixel(p, opts)
		return
	})
	return
}

func (e *Engine) editPixel(p GeoPixel, opts EditOpts) (l *PixelLog, err error) {
	col, row, ok := e.grid.CellOf(p.X, p.Y)
	if !ok {
		return
	}
	cur, err := e.raster.ReadCell(col, row)
	if err != nil {
		return
	}
	var nv int
	if opts.Value != nil {
		nv = *opts.Value
	} else if nv, ok = e.table.Resolve(cur); !ok {
		return
	}
	if nv == cur {
		return
	}
	if err = e.raster.WriteCell(col, row, nv); err != nil {
		log.Error(e.logTag+"write cell failed", zap.Int("col", col), zap.Int("row", row), zap.Int("value", nv), zap.Error(err))
		return
	}
	pl := NewPixelLog(e.grid.Centroid(col, row), cur, nv, opts.Group)
	if opts.Store {
		e.store.Insert(pl)
	}
	l = &pl
	return
}

// 逐个编辑候选像元，返回成功编辑的像元及其旧值；遇写入失败即停止，已写入的像元保留
func (e *Engine) editCandidates(pixels []GeoPixel, opts EditOpts) (edited []PixelValue, err error) {
	if opts.Value == nil && e.table.Empty() {
		err = ErrNothingToApply
		return
	}
	if len(pixels) == 0 {
		return
	}
	err = e.withEdit(func() error {
		for _, p := range pixels {
			l, err := e.editPixel(p, opts)
			if err != nil {
				return err
			}
			if l != nil {
				edited = append(edited, PixelValue{Pixel: l.Pixel, Value: l.OldValue})
			}
		}
		return nil
	})
	log.Debug(e.logTag+"candidates edited", zap.Int("candidates", len(pixels)), zap.Int("edited", len(edited)), zap.Error(err))
	return
}

func (e *Engine) EditFromPixelPicker(pt orb.Point, opts EditOpts) ([]PixelValue, error) {
	p, ok := e.grid.Snap(pt[0], pt[1])
	if !ok {
		return e.editCandidates(nil, opts)
	}
	return e.editCandidates([]GeoPixel{p}, opts)
}

// 线拾取：中心点到线的距离不超过 平均像元尺寸*width 的像元
func (e *Engine) EditFromLinePicker(ls orb.LineString, width float64, opts EditOpts) ([]PixelValue, error) {
	return e.editCandidates(lineCandidates(e.grid, ls, width), opts)
}

func (e *Engine) EditFromPolygonPicker(poly orb.Polygon, opts EditOpts) ([]PixelValue, error) {
	return e.editCandidates(polygonCandidates(e.grid, poly), opts)
}

func (e *Engine) EditFromFreehandPicker(poly orb.Polygon, opts EditOpts) ([]PixelValue, error) {
	return e.editCandidates(polygonCandidates(e.grid, poly), opts)
}

// 按给定值回放写入，返回实际改动的像元及其写入前的值
func (e *Engine) ApplyValues(pvs []PixelValue, opts EditOpts) (applied []PixelValue, err error) {
	err = e.withEdit(func() error {
		for _, pv := range pvs {
			v := pv.Value
			o := opts
			o.Value = &v
			l, err := e.editPixel(pv.Pixel, o)
			if err != nil {
				return err
			}
			if l != nil {
				applied = append(applied, PixelValue{Pixel: l.Pixel, Value: l.OldValue})
			}
		}
		return nil
	})
	return
}

// 像元在栅格中的当前值，栅格外的像元跳过
func (e *Engine) CurrentValues(pvs []PixelValue) (cur []PixelValue, err error) {
	cur = make([]PixelValue, 0, len(pvs))
	for _, pv := range pvs {
		col, row, ok := e.grid.CellOf(pv.Pixel.X, pv.Pixel.Y)
		if !ok {
			continue
		}
		var v int
		if v, err = e.raster.ReadCell(col, row); err != nil {
			cur = nil
			return
		}
		cur = append(cur, PixelValue{Pixel: pv.Pixel, Value: v})
	}
	return
}

// 整图重编码：读入整个波段，按映射并行替换各行块，与原值比较得出改动像元，整体写回；
// 写回失败时原文件不变。Store为真时每个改动像元记一条共享批次的记录
func (e *Engine) EditWholeImage(ctx context.Context, mapping map[int]int, opts EditOpts) (edited int, err error) {
	if len(mapping) == 0 {
		err = ErrNothingToApply
		return
	}
	if e.raster.Editing() {
		err = ErrEditOpen
		return
	}
	lut := make(map[int32]int32, len(mapping))
	for o, n := range mapping {
		if o != n {
			lut[int32(o)] = int32(n)
		}
	}
	log.Info(e.logTag+"start whole image recode", zap.String("raster", e.raster.Id()), zap.Int("classes", len(lut)))
	src, err := e.raster.ReadBand()
	if err != nil {
		return
	}
	var (
		w      = e.grid.Width
		h      = e.grid.Height
		dst    = make([]int32, len(src))
		blocks = (h + REMAP_BLOCK_ROWS - 1) / REMAP_BLOCK_ROWS
		counts = make([]int, blocks)
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for b := 0; b < blocks; b++ {
		b := b
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r0 := b * REMAP_BLOCK_ROWS
			r1 := r0 + REMAP_BLOCK_ROWS
			if r1 > h {
				r1 = h
			}
			for i := r0 * w; i < r1*w; i++ {
				v := src[i]
				if nv, ok := lut[v]; ok {
					dst[i] = nv
					counts[b]++
				} else {
					dst[i] = v
				}
			}
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		log.Warn(e.logTag+"whole image recode canceled", zap.Error(err))
		return
	}
	for _, c := range counts {
		edited += c
	}
	if edited == 0 {
		log.Info(e.logTag+"whole image recode changed nothing", zap.String("raster", e.raster.Id()))
		return
	}
	if err = e.raster.WriteBand(dst); err != nil {
		log.Error(e.logTag+"whole image write back failed", zap.String("raster", e.raster.Id()), zap.Error(err))
		edited = 0
		return
	}
	if opts.Store {
		now := time.Now()
		for i := range src {
			if src[i] == dst[i] {
				continue
			}
			e.store.Insert(PixelLog{
				Pixel:    e.grid.Centroid(i%w, i/w),
				OldValue: int(src[i]),
				NewValue: int(dst[i]),
				EditDate: now,
				Group:    opts.Group,
			})
		}
	}
	log.Info(e.logTag+"end whole image recode", zap.String("raster", e.raster.Id()), zap.Int("edited", edited))
	return
}
