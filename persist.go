package rasedit

import (
	"encoding/base64"
	"os"
	"time"

	"github.com/wgdzlh/rasedit/log"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// 会话状态文件
type SessionState struct {
	Target    string      `yaml:"target"`
	SavedAt   string      `yaml:"saved_at"`
	Recode    []RecodeRow `yaml:"recode"`
	PixelLogs string      `yaml:"pixel_logs"` // 紧凑JSON → zstd → base64
}

type pixelLogRecord struct {
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Old   int       `json:"o"`
	New   int       `json:"n"`
	Date  time.Time `json:"d"`
	Group string    `json:"g,omitempty"`
}

// 编码编辑记录，按(编辑时间, 批次id)排序以保证结果确定
func EncodePixelLogs(logs []PixelLog) (s string, err error) {
	logs = append([]PixelLog(nil), logs...)
	sortLogs(logs)
	recs := make([]pixelLogRecord, len(logs))
	for i, l := range logs {
		recs[i] = pixelLogRecord{
			X:    l.Pixel.X,
			Y:    l.Pixel.Y,
			Old:  l.OldValue,
			New:  l.NewValue,
			Date: l.EditDate,
		}
		if l.Group != uuid.Nil {
			recs[i].Group = l.Group.String()
		}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		err = eris.Wrap(err, "state: marshal pixel logs")
		return
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		err = eris.Wrap(err, "state: create zstd encoder")
		return
	}
	defer enc.Close()
	s = base64.StdEncoding.EncodeToString(enc.EncodeAll(data, nil))
	return
}

// 解码编辑记录，tolerance为像元身份比较的小数位数
func DecodePixelLogs(s string, tolerance int) (logs []PixelLog, err error) {
	if s == "" {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		err = eris.Wrap(err, "state: decode base64")
		return
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		err = eris.Wrap(err, "state: create zstd decoder")
		return
	}
	defer dec.Close()
	data, err := dec.DecodeAll(raw, nil)
	if err != nil {
		err = eris.Wrap(err, "state: decompress pixel logs")
		return
	}
	var recs []pixelLogRecord
	if err = json.Unmarshal(data, &recs); err != nil {
		err = eris.Wrap(err, "state: unmarshal pixel logs")
		return
	}
	logs = make([]PixelLog, len(recs))
	for i, r := range recs {
		logs[i] = PixelLog{
			Pixel:    NewGeoPixel(r.X, r.Y, tolerance),
			OldValue: r.Old,
			NewValue: r.New,
			EditDate: r.Date,
		}
		if r.Group != "" {
			if logs[i].Group, err = uuid.Parse(r.Group); err != nil {
				logs, err = nil, eris.Wrapf(err, "state: parse group id %q", r.Group)
				return
			}
		}
	}
	return
}

// 保存重编码表与编辑记录
func (s *Session) SaveState(path string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := EncodePixelLogs(s.store.All())
	if err != nil {
		return
	}
	st := SessionState{
		Target:    s.raster.Id(),
		SavedAt:   time.Now().Format(EDIT_DATE_LAYOUT),
		Recode:    s.table.Rows(),
		PixelLogs: blob,
	}
	data, err := yaml.Marshal(&st)
	if err != nil {
		err = eris.Wrap(err, "state: marshal yaml")
		return
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		err = eris.Wrapf(err, "state: write %s", path)
		return
	}
	log.Info(s.logTag+"state saved", zap.String("path", path), zap.Int("logs", s.store.Len()))
	return
}

// 加载状态文件，重建重编码表、编辑记录与登记表；工具历史不持久化，加载后清空
func (s *Session) LoadState(path string) (err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = eris.Wrapf(err, "state: read %s", path)
		return
	}
	var st SessionState
	if err = yaml.Unmarshal(data, &st); err != nil {
		err = eris.Wrapf(err, "state: parse %s", path)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Target != s.raster.Id() {
		log.Error(s.logTag+"state target mismatch", zap.String("state", st.Target), zap.String("raster", s.raster.Id()))
		err = ErrStateMismatch
		return
	}
	logs, err := DecodePixelLogs(st.PixelLogs, s.registry.Grid().Tolerance())
	if err != nil {
		return
	}
	if err = s.table.ApplyRows(st.Recode); err != nil {
		return
	}
	s.store.Clear()
	for _, l := range logs {
		s.store.Insert(l)
	}
	for _, h := range s.history {
		h.Clear()
	}
	s.registry.Update()
	log.Info(s.logTag+"state loaded", zap.String("path", path), zap.Int("logs", s.store.Len()), zap.Int("groups", s.registry.Len()))
	return
}
