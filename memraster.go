package rasedit

import (
	"image/color"
	"sync"
)

// 内存栅格，语义与GDAL栅格一致（编辑会话、整波段替换），用于预览与测试
type MemRaster struct {
	id        string
	grid      Grid
	proj      string
	data      []int32
	noData    float64
	hasNoData bool
	palette   []color.RGBA
	editing   bool
	mu        sync.RWMutex
}

func NewMemRaster(id string, grid Grid, data []int32) (r *MemRaster, err error) {
	if len(data) != grid.Width*grid.Height {
		err = ErrWrongBufferSize
		return
	}
	r = &MemRaster{
		id:   id,
		grid: grid,
		data: append([]int32(nil), data...),
	}
	return
}

func (r *MemRaster) SetNoData(v float64) {
	r.noData, r.hasNoData = v, true
}

func (r *MemRaster) SetProjection(wkt string) {
	r.proj = wkt
}

func (r *MemRaster) Projection() string {
	return r.proj
}

func (r *MemRaster) SetPalette(p []color.RGBA) {
	r.palette = p
}

func (r *MemRaster) Palette() []color.RGBA {
	return r.palette
}

func (r *MemRaster) Id() string {
	return r.id
}

func (r *MemRaster) Grid() Grid {
	return r.grid
}

func (r *MemRaster) NoData() (float64, bool) {
	return r.noData, r.hasNoData
}

func (r *MemRaster) ReadCell(col, row int) (v int, err error) {
	if !r.grid.InRange(col, row) {
		err = ErrCellOutOfRange
		return
	}
	r.mu.RLock()
	v = int(r.data[row*r.grid.Width+col])
	r.mu.RUnlock()
	return
}

func (r *MemRaster) WriteCell(col, row, value int) error {
	if !r.grid.InRange(col, row) {
		return ErrCellOutOfRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.editing {
		return ErrNotEditing
	}
	r.data[row*r.grid.Width+col] = int32(value)
	return nil
}

func (r *MemRaster) BeginEdit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.editing {
		return ErrEditOpen
	}
	r.editing = true
	return nil
}

func (r *MemRaster) EndEdit() error {
	r.mu.Lock()
	r.editing = false
	r.mu.Unlock()
	return nil
}

func (r *MemRaster) Editing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.editing
}

func (r *MemRaster) ReadBand() ([]int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int32(nil), r.data...), nil
}

func (r *MemRaster) WriteBand(data []int32) error {
	if len(data) != len(r.data) {
		return ErrWrongBufferSize
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.editing {
		return ErrEditOpen
	}
	r.data = append([]int32(nil), data...)
	return nil
}

func (r *MemRaster) Close() error {
	return nil
}
