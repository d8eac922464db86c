package rasedit

import (
	"context"
	"fmt"
	"sync"

	"github.com/wgdzlh/rasedit/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 一个编辑目标的会话：栅格、重编码表、编辑记录、登记表及各工具的历史
type Session struct {
	raster   Raster
	table    *RecodeTable
	store    *PixelLogStore
	registry *Registry
	engine   *Engine
	history  map[GestureKind]*EditLog
	cfg      *Config
	mu       sync.Mutex
	logTag   string
}

func NewSession(r Raster, table *RecodeTable, cfg *Config) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	store := NewPixelLogStore()
	s := &Session{
		raster:   r,
		table:    table,
		store:    store,
		registry: NewRegistry(store, r.Grid(), r.Projection()),
		engine:   NewEngine(r, table, store, cfg.Edit.RemapWorkers),
		history:  make(map[GestureKind]*EditLog, len(GestureKinds)),
		cfg:      cfg,
		logTag:   "Session:",
	}
	for _, k := range GestureKinds {
		s.history[k] = NewEditLog(k, s.engine, cfg.Edit.UndoLimit)
	}
	return s
}

func (s *Session) Id() string {
	return s.raster.Id()
}

func (s *Session) Raster() Raster {
	return s.raster
}

func (s *Session) Table() *RecodeTable {
	return s.table
}

func (s *Session) Store() *PixelLogStore {
	return s.store
}

func (s *Session) Registry() *Registry {
	return s.registry
}

func (s *Session) Engine() *Engine {
	return s.engine
}

// 执行一次拾取手势：每个手势一个新批次；有像元被修改时才记入该工具的历史
func (s *Session) Apply(g Gesture) (edited []PixelValue, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table.Empty() {
		err = ErrNothingToApply
		return
	}
	opts := EditOpts{Group: uuid.New(), Store: true}
	switch v := g.(type) {
	case PixelPick:
		edited, err = s.engine.EditFromPixelPicker(v.Point, opts)
	case LinePick:
		w := v.Buffer
		if w <= 0 {
			w = s.cfg.Edit.BufferWidth
		}
		edited, err = s.engine.EditFromLinePicker(v.Line, w, opts)
	case PolygonPick:
		edited, err = s.engine.EditFromPolygonPicker(v.Polygon, opts)
	case FreehandPick:
		edited, err = s.engine.EditFromFreehandPicker(v.Polygon, opts)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownGesture, g)
		return
	}
	if len(edited) > 0 {
		s.history[g.Kind()].Add(EditEntry{Geometry: g.Geometry(), Pixels: edited})
		s.registry.Update()
	}
	log.Info(s.logTag+"gesture applied", zap.String("raster", s.raster.Id()), zap.Stringer("kind", g.Kind()),
		zap.Int("edited", len(edited)), zap.Error(err))
	return
}

func (s *Session) Undo(kind GestureKind) (int, error) {
	return s.replay(kind, true)
}

func (s *Session) Redo(kind GestureKind) (int, error) {
	return s.replay(kind, false)
}

func (s *Session) replay(kind GestureKind, undo bool) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[kind]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownGesture, kind)
		return
	}
	var e EditEntry
	if undo {
		e, ok, err = h.Undo()
	} else {
		e, ok, err = h.Redo()
	}
	if err != nil || !ok {
		return
	}
	opts := EditOpts{Store: s.cfg.Edit.RegisterUndoRedo}
	if opts.Store {
		opts.Group = uuid.New()
	}
	applied, err := s.engine.ApplyValues(e.Pixels, opts)
	n = len(applied)
	if opts.Store && n > 0 {
		s.registry.Update()
	}
	log.Debug(s.logTag+"history replayed", zap.Stringer("kind", kind), zap.Bool("undo", undo), zap.Int("applied", n), zap.Error(err))
	return
}

func (s *Session) CanUndo(kind GestureKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[kind]
	return ok && h.CanUndo()
}

func (s *Session) CanRedo(kind GestureKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[kind]
	return ok && h.CanRedo()
}

// 整图重编码结果
type WholeImageResult struct {
	Edited int
	Err    error
}

// 按当前重编码表整图重编码；不可撤销，不进入任何工具历史
func (s *Session) ApplyWholeImage(ctx context.Context) (edited int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapping := s.table.OldNewValue()
	if len(mapping) == 0 {
		err = ErrNothingToApply
		return
	}
	if edited, err = s.engine.EditWholeImage(ctx, mapping, EditOpts{Group: uuid.New(), Store: true}); err != nil {
		return
	}
	if edited > 0 {
		s.registry.Update()
	}
	return
}

// 在后台执行整图重编码，结果写入返回的通道后关闭
func (s *Session) GoApplyWholeImage(ctx context.Context) <-chan WholeImageResult {
	ch := make(chan WholeImageResult, 1)
	go func() {
		defer close(ch)
		n, err := s.ApplyWholeImage(ctx)
		ch <- WholeImageResult{Edited: n, Err: err}
	}()
	return ch
}

func (s *Session) Export(path string) (out string, count int, err error) {
	return s.registry.Export(path, s.cfg.Registry.DefaultExt)
}

// 关闭未结束的编辑会话，切换目标前调用
func (s *Session) flush() (err error) {
	if s.raster.Editing() {
		if err = s.raster.EndEdit(); err != nil {
			log.Error(s.logTag+"flush edit session failed", zap.String("raster", s.raster.Id()), zap.Error(err))
		}
	}
	return
}

func (s *Session) Close() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.flush()
	if e := s.raster.Close(); e != nil && err == nil {
		err = e
	}
	for _, h := range s.history {
		h.Clear()
	}
	return
}
