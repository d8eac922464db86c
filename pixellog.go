package rasedit

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 单像元编辑记录，以像元地理身份判等
type PixelLog struct {
	Pixel    GeoPixel
	OldValue int
	NewValue int
	EditDate time.Time
	Group    uuid.UUID // uuid.Nil表示不属于任何编辑批次
}

func NewPixelLog(p GeoPixel, oldValue, newValue int, group uuid.UUID) PixelLog {
	return PixelLog{
		Pixel:    p,
		OldValue: oldValue,
		NewValue: newValue,
		EditDate: time.Now(),
		Group:    group,
	}
}

// 按像元去重的编辑记录，同一像元多次编辑合并为一条（保留最初旧值），净变化为零时移除
type PixelLogStore struct {
	logs map[PixelKey]*PixelLog
	mu   sync.RWMutex
}

func NewPixelLogStore() *PixelLogStore {
	return &PixelLogStore{logs: map[PixelKey]*PixelLog{}}
}

// 插入记录并与已有记录合并，返回该像元是否仍有记录
func (s *PixelLogStore) Insert(l PixelLog) (kept bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := l.Pixel.Key()
	prev, ok := s.logs[key]
	if !ok {
		if l.OldValue == l.NewValue {
			return
		}
		s.logs[key] = &l
		kept = true
		return
	}
	if prev.OldValue == l.NewValue {
		delete(s.logs, key)
		return
	}
	prev.NewValue = l.NewValue
	prev.EditDate = l.EditDate
	prev.Group = l.Group
	kept = true
	return
}

func (s *PixelLogStore) Get(p GeoPixel) (l PixelLog, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.logs[p.Key()]
	if ok {
		l = *v
	}
	return
}

func (s *PixelLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

func (s *PixelLogStore) Clear() {
	s.mu.Lock()
	s.logs = map[PixelKey]*PixelLog{}
	s.mu.Unlock()
}

// 全部记录，按(编辑时间, 批次id)排序，同时刻同批次再按坐标排序以保证确定性
func (s *PixelLogStore) All() []PixelLog {
	s.mu.RLock()
	ret := make([]PixelLog, 0, len(s.logs))
	for _, l := range s.logs {
		ret = append(ret, *l)
	}
	s.mu.RUnlock()
	sortLogs(ret)
	return ret
}

func sortLogs(ls []PixelLog) {
	sort.Slice(ls, func(i, j int) bool {
		a, b := ls[i], ls[j]
		if !a.EditDate.Equal(b.EditDate) {
			return a.EditDate.Before(b.EditDate)
		}
		if a.Group != b.Group {
			return a.Group.String() < b.Group.String()
		}
		ka, kb := a.Pixel.Key(), b.Pixel.Key()
		if ka.Y != kb.Y {
			return ka.Y > kb.Y
		}
		return ka.X < kb.X
	})
}
