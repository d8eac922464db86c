package rasedit

import (
	"github.com/paulmach/orb"
)

// 一条历史：手势几何及其涉及的像元与待恢复的值
type EditEntry struct {
	Geometry orb.Geometry
	Pixels   []PixelValue
}

// 读取像元当前值
type valueReader interface {
	CurrentValues(pvs []PixelValue) ([]PixelValue, error)
}

// 单个拾取工具的线性撤销/重做历史；状态切换时按栅格当前值重新计算反向快照
type EditLog struct {
	kind   GestureKind
	undos  []EditEntry
	redos  []EditEntry
	limit  int
	reader valueReader
}

// limit<=0表示不限深度
func NewEditLog(kind GestureKind, reader valueReader, limit int) *EditLog {
	return &EditLog{kind: kind, reader: reader, limit: limit}
}

func (l *EditLog) Kind() GestureKind {
	return l.kind
}

// 新手势入栈，清空重做栈；超出深度时丢弃最早的记录
func (l *EditLog) Add(e EditEntry) {
	l.undos = append(l.undos, e)
	if l.limit > 0 && len(l.undos) > l.limit {
		l.undos = append([]EditEntry(nil), l.undos[len(l.undos)-l.limit:]...)
	}
	l.redos = nil
}

// 弹出最近一条历史，并将其像元的当前值压入重做栈；返回的记录即需恢复的值
func (l *EditLog) Undo() (e EditEntry, ok bool, err error) {
	return l.transit(&l.undos, &l.redos)
}

func (l *EditLog) Redo() (e EditEntry, ok bool, err error) {
	return l.transit(&l.redos, &l.undos)
}

func (l *EditLog) transit(from, to *[]EditEntry) (e EditEntry, ok bool, err error) {
	n := len(*from)
	if n == 0 {
		return
	}
	e = (*from)[n-1]
	cur, err := l.reader.CurrentValues(e.Pixels)
	if err != nil {
		return
	}
	*from = (*from)[:n-1]
	*to = append(*to, EditEntry{Geometry: e.Geometry, Pixels: cur})
	ok = true
	return
}

func (l *EditLog) CanUndo() bool {
	return len(l.undos) > 0
}

func (l *EditLog) CanRedo() bool {
	return len(l.redos) > 0
}

func (l *EditLog) Len() (undos, redos int) {
	return len(l.undos), len(l.redos)
}

func (l *EditLog) Clear() {
	l.undos, l.redos = nil, nil
}
