package rasedit

import (
	"fmt"
	"image/color"
	"sort"
	"sync"
)

// 重编码表中的一个分类
type RecodeEntry struct {
	Value    int
	Color    color.RGBA
	NewValue *int // nil表示不变
	Visible  bool
	Label    string
}

func (e RecodeEntry) clone() RecodeEntry {
	if e.NewValue != nil {
		v := *e.NewValue
		e.NewValue = &v
	}
	return e
}

// 分类值 → 颜色 → 新值 的重编码表，保留一份原始备份以便恢复
type RecodeTable struct {
	entries []RecodeEntry
	backup  []RecodeEntry
	index   map[int]int
	oldNew  map[int]int
	mu      sync.RWMutex
}

// 由样式分类构建重编码表，分类值须唯一
func NewRecodeTable(classes []ClassStyle) (t *RecodeTable, err error) {
	if len(classes) == 0 {
		err = ErrNoStyle
		return
	}
	t = &RecodeTable{
		entries: make([]RecodeEntry, len(classes)),
		index:   make(map[int]int, len(classes)),
	}
	for i, c := range classes {
		if _, dup := t.index[c.Value]; dup {
			t, err = nil, fmt.Errorf("%w: %d", ErrDuplicateClass, c.Value)
			return
		}
		t.index[c.Value] = i
		t.entries[i] = RecodeEntry{
			Value:   c.Value,
			Color:   c.Color,
			Visible: true,
			Label:   c.Label,
		}
	}
	t.backup = cloneEntries(t.entries)
	t.rebuild()
	return
}

func cloneEntries(es []RecodeEntry) []RecodeEntry {
	ret := make([]RecodeEntry, len(es))
	for i, e := range es {
		ret[i] = e.clone()
	}
	return ret
}

// 重算生效的 旧值→新值 映射（新值已设置且与旧值不同）
func (t *RecodeTable) rebuild() {
	t.oldNew = make(map[int]int)
	for _, e := range t.entries {
		if e.NewValue != nil && *e.NewValue != e.Value {
			t.oldNew[e.Value] = *e.NewValue
		}
	}
}

func (t *RecodeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *RecodeTable) Entries() []RecodeEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneEntries(t.entries)
}

func (t *RecodeTable) Entry(value int) (e RecodeEntry, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[value]
	if ok {
		e = t.entries[i].clone()
	}
	return
}

// 设置分类的目标值，newValue为nil时清除
func (t *RecodeTable) SetNewValue(value int, newValue *int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[value]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownClass, value)
	}
	if newValue != nil {
		v := *newValue
		newValue = &v
	}
	t.entries[i].NewValue = newValue
	t.rebuild()
	return nil
}

func (t *RecodeTable) SetVisible(value int, visible bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[value]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownClass, value)
	}
	t.entries[i].Visible = visible
	return nil
}

// 恢复为由样式解析出的原始表
func (t *RecodeTable) Restore() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = cloneEntries(t.backup)
	t.index = make(map[int]int, len(t.entries))
	for i, e := range t.entries {
		t.index[e.Value] = i
	}
	t.rebuild()
}

// 生效的 旧值→新值 映射的副本
func (t *RecodeTable) OldNewValue() map[int]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ret := make(map[int]int, len(t.oldNew))
	for k, v := range t.oldNew {
		ret[k] = v
	}
	return ret
}

func (t *RecodeTable) Resolve(old int) (nv int, ok bool) {
	t.mu.RLock()
	nv, ok = t.oldNew[old]
	t.mu.RUnlock()
	return
}

func (t *RecodeTable) Empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.oldNew) == 0
}

// 可序列化的表行
type RecodeRow struct {
	Value    int    `yaml:"value"`
	Color    string `yaml:"color"`
	NewValue *int   `yaml:"new_value"`
	Visible  bool   `yaml:"visible"`
	Label    string `yaml:"label,omitempty"`
}

func (t *RecodeTable) Rows() []RecodeRow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := make([]RecodeRow, len(t.entries))
	for i, e := range t.entries {
		e = e.clone()
		rows[i] = RecodeRow{
			Value:    e.Value,
			Color:    FormatColor(e.Color),
			NewValue: e.NewValue,
			Visible:  e.Visible,
			Label:    e.Label,
		}
	}
	return rows
}

// 按表行恢复新值与可见性，行中不存在于表内的分类报错
func (t *RecodeTable) ApplyRows(rows []RecodeRow) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range rows {
		if _, ok := t.index[r.Value]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownClass, r.Value)
		}
	}
	for _, r := range rows {
		e := &t.entries[t.index[r.Value]]
		e.NewValue = nil
		if r.NewValue != nil {
			v := *r.NewValue
			e.NewValue = &v
		}
		e.Visible = r.Visible
	}
	t.rebuild()
	return nil
}

// 已设置新值的分类值，升序
func (t *RecodeTable) ChangedValues() []int {
	m := t.OldNewValue()
	ret := make([]int, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Ints(ret)
	return ret
}
