package rasedit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wgdzlh/rasedit/log"

	"go.uber.org/zap"
)

// 编辑器：按栅格身份管理编辑会话，同一时刻只有一个活动编辑目标
type Editor struct {
	sessions map[string]*Session
	active   string
	styles   *StyleCache
	cfg      *Config
	rLock    sync.Mutex
	logTag   string
}

// 初始化编辑器，cfg可选（未提供的话为默认配置）
func NewEditor(cfg ...*Config) (e *Editor, err error) {
	c := DefaultConfig()
	if len(cfg) > 0 && cfg[0] != nil {
		c = cfg[0]
		applyDefaults(c)
		if err = log.Init(c.Log); err != nil {
			return
		}
	}
	styles, err := NewStyleCache(c.Cache.StyleTables)
	if err != nil {
		return
	}
	e = &Editor{
		sessions: map[string]*Session{},
		styles:   styles,
		cfg:      c,
		logTag:   "Editor:",
	}
	return
}

func rasterId(path string, band int) string {
	return fmt.Sprintf("%s#%d", path, band)
}

func (e *Editor) Config() *Config {
	return e.cfg
}

// 打开GDAL栅格并建立会话，band可选（未提供的话为配置的波段）；已打开的直接返回已有会话
func (e *Editor) Open(path string, band ...int) (s *Session, err error) {
	b := e.cfg.Raster.Band
	if len(band) > 0 && band[0] > 0 {
		b = band[0]
	}
	e.rLock.Lock()
	s, ok := e.sessions[rasterId(path, b)]
	e.rLock.Unlock()
	if ok {
		return
	}
	r, err := OpenGdalRaster(path, b, e.cfg.Raster.TmpDir)
	if err != nil {
		return
	}
	return e.adopt(r)
}

// 为新打开的栅格建立会话；并发打开同一栅格时沿用先建立的会话，关闭多余的数据集
func (e *Editor) adopt(r *GdalRaster) (s *Session, err error) {
	s, err = e.Attach(r)
	if err != nil || s.Raster() != Raster(r) {
		r.Close()
	}
	return
}

// 为已打开的栅格建立会话：样式解析失败的栅格不能成为编辑目标；没有活动目标时自动激活
func (e *Editor) Attach(r Raster) (s *Session, err error) {
	e.rLock.Lock()
	defer e.rLock.Unlock()
	id := r.Id()
	if s, ok := e.sessions[id]; ok {
		return s, nil
	}
	table, err := e.styles.Table(r)
	if err != nil {
		log.Error(e.logTag+"build recode table failed", zap.String("raster", id), zap.Error(err))
		return
	}
	s = NewSession(r, table, e.cfg)
	e.sessions[id] = s
	log.Info(e.logTag+"session opened", zap.String("raster", id), zap.Int("classes", table.Len()))
	if e.active == "" {
		e.active = id
		log.Info(e.logTag+"active target switched", zap.String("raster", id))
	}
	return
}

// 切换活动编辑目标，先结束原目标未关闭的编辑会话
func (e *Editor) Activate(id string) (s *Session, err error) {
	e.rLock.Lock()
	defer e.rLock.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownTarget, id)
		return
	}
	if e.active == id {
		return
	}
	if prev, ok := e.sessions[e.active]; ok {
		if err = prev.flush(); err != nil {
			return
		}
	}
	log.Info(e.logTag+"active target switched", zap.String("from", e.active), zap.String("to", id))
	e.active = id
	return
}

func (e *Editor) Active() (s *Session, err error) {
	e.rLock.Lock()
	defer e.rLock.Unlock()
	s, ok := e.sessions[e.active]
	if !ok {
		err = ErrNoActiveTarget
	}
	return
}

func (e *Editor) Session(id string) (s *Session, ok bool) {
	e.rLock.Lock()
	defer e.rLock.Unlock()
	s, ok = e.sessions[id]
	return
}

// 已打开的会话身份，升序
func (e *Editor) Ids() []string {
	e.rLock.Lock()
	defer e.rLock.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Editor) Close(id string) (err error) {
	e.rLock.Lock()
	s, ok := e.sessions[id]
	if !ok {
		e.rLock.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTarget, id)
	}
	delete(e.sessions, id)
	if e.active == id {
		e.active = ""
	}
	e.rLock.Unlock()
	e.styles.Invalidate(id)
	err = s.Close()
	log.Info(e.logTag+"session closed", zap.String("raster", id), zap.Error(err))
	return
}

// 关闭全部会话并刷新日志
func (e *Editor) CloseAll() (err error) {
	for _, id := range e.Ids() {
		if ee := e.Close(id); ee != nil && err == nil {
			err = ee
		}
	}
	_ = log.Sync()
	return
}
