package rasedit

import (
	"sort"
	"sync"
	"time"

	"github.com/wgdzlh/rasedit/log"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// 一个编辑批次（同一次手势或同一次整图应用）的记录
type TileGroup struct {
	Index int // 按时间排序的序号，从1开始
	Group uuid.UUID
	Date  time.Time // 批次内最早的编辑时间
	Logs  []PixelLog
}

// 批次内全部像元方框的外包范围
func (g TileGroup) Extent(grid Grid) (b orb.Bound) {
	for i, l := range g.Logs {
		fp := grid.Footprint(l.Pixel)
		if i == 0 {
			b = fp
			continue
		}
		b = b.Union(fp)
	}
	return
}

func (g TileGroup) Center(grid Grid) orb.Point {
	return g.Extent(grid).Center()
}

// 编辑登记表：按批次分组的只读视图，数据源为PixelLogStore
type Registry struct {
	store  *PixelLogStore
	grid   Grid
	proj   string
	groups []TileGroup
	index  map[uuid.UUID]int
	mu     sync.RWMutex
	logTag string
}

func NewRegistry(store *PixelLogStore, grid Grid, proj string) *Registry {
	return &Registry{
		store:  store,
		grid:   grid,
		proj:   proj,
		index:  map[uuid.UUID]int{},
		logTag: "Registry:",
	}
}

// 由记录重新分组：无批次的记录不参与分组；组内按时间排序，组间按最早时间排序并编号
func (r *Registry) Update() {
	byGroup := map[uuid.UUID][]PixelLog{}
	for _, l := range r.store.All() {
		if l.Group == uuid.Nil {
			continue
		}
		byGroup[l.Group] = append(byGroup[l.Group], l)
	}
	groups := make([]TileGroup, 0, len(byGroup))
	for id, logs := range byGroup {
		sortLogs(logs)
		groups = append(groups, TileGroup{
			Group: id,
			Date:  logs[0].EditDate,
			Logs:  logs,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].Date.Equal(groups[j].Date) {
			return groups[i].Date.Before(groups[j].Date)
		}
		return groups[i].Group.String() < groups[j].Group.String()
	})
	index := make(map[uuid.UUID]int, len(groups))
	for i := range groups {
		groups[i].Index = i + 1
		index[groups[i].Group] = i + 1
	}
	r.mu.Lock()
	r.groups = groups
	r.index = index
	r.mu.Unlock()
	log.Debug(r.logTag+"registry updated", zap.Int("groups", len(groups)), zap.Int("logs", r.store.Len()))
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}

// 按序号（从1开始）取批次
func (r *Registry) Group(index int) (g TileGroup, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 1 || index > len(r.groups) {
		return
	}
	return r.groups[index-1], true
}

// 批次id对应的序号，不存在时为0
func (r *Registry) IndexOf(group uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[group]
}

func (r *Registry) Grid() Grid {
	return r.grid
}

func (r *Registry) Store() *PixelLogStore {
	return r.store
}
