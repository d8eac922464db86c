package rasedit

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/wgdzlh/rasedit/log"
)

const (
	FILE_EXT_IMG     = ".img"
	FILE_EXT_QML     = ".qml"
	FILE_EXT_GPKG    = ".gpkg"
	FILE_EXT_SHP     = ".shp"
	FILE_EXT_GEOJSON = ".geojson"
	FILE_EXT_JSON    = ".json"

	GTIFF_DRIVER_NAME = "GTiff"
	HFA_DRIVER_NAME   = "HFA"
	GPKG_DRIVER_NAME  = "GPKG"
	SHP_DRIVER_NAME   = "ESRI Shapefile"

	DEFAULT_BAND         = 1
	DEFAULT_BUFFER_WIDTH = 1.0
	DEFAULT_REMAP_WORKER = 4
	DEFAULT_STYLE_CACHE  = 32
	DEFAULT_EXPORT_EXT   = FILE_EXT_GPKG

	REMAP_BLOCK_ROWS = 256

	FIELD_GROUP_INDEX = "group_idx"
	FIELD_OLD_VALUE   = "old_value"
	FIELD_NEW_VALUE   = "new_value"
	FIELD_EDIT_DATE   = "edit_date"

	EDIT_DATE_LAYOUT = "2006-01-02 15:04:05"
)

// 编辑器配置
type Config struct {
	Log      log.Config     `yaml:"log"`
	Edit     EditConfig     `yaml:"edit"`
	Raster   RasterConfig   `yaml:"raster"`
	Registry RegistryConfig `yaml:"registry"`
	Cache    CacheConfig    `yaml:"cache"`
}

type EditConfig struct {
	BufferWidth      float64 `yaml:"buffer_width"`       // 线工具缓冲宽度（平均像元尺寸的倍数）
	UndoLimit        int     `yaml:"undo_limit"`         // 每个工具的撤销深度，0为不限
	RegisterUndoRedo bool    `yaml:"register_undo_redo"` // 撤销/重做是否写入登记表
	RemapWorkers     int     `yaml:"remap_workers"`      // 整图重编码的内存并行度
}

type RasterConfig struct {
	Band   int    `yaml:"band"`
	TmpDir string `yaml:"tmp_dir"` // 整图写回的临时目录，为空时与原文件同目录；与原文件不同卷时替换需多一次复制
}

type RegistryConfig struct {
	DefaultExt string `yaml:"default_ext"`
}

type CacheConfig struct {
	StyleTables int `yaml:"style_tables"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: log.Config{Level: "info"},
		Edit: EditConfig{
			BufferWidth:  DEFAULT_BUFFER_WIDTH,
			RemapWorkers: DEFAULT_REMAP_WORKER,
		},
		Raster:   RasterConfig{Band: DEFAULT_BAND},
		Registry: RegistryConfig{DefaultExt: DEFAULT_EXPORT_EXT},
		Cache:    CacheConfig{StyleTables: DEFAULT_STYLE_CACHE},
	}
}

// 从YAML文件加载配置，文件不存在时返回默认配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(err, "config: parse %s", path)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Edit.BufferWidth <= 0 {
		cfg.Edit.BufferWidth = defaults.Edit.BufferWidth
	}
	if cfg.Edit.UndoLimit < 0 {
		cfg.Edit.UndoLimit = 0
	}
	if cfg.Edit.RemapWorkers <= 0 {
		cfg.Edit.RemapWorkers = defaults.Edit.RemapWorkers
	}
	if cfg.Raster.Band <= 0 {
		cfg.Raster.Band = defaults.Raster.Band
	}
	if cfg.Registry.DefaultExt == "" {
		cfg.Registry.DefaultExt = defaults.Registry.DefaultExt
	}
	if cfg.Cache.StyleTables <= 0 {
		cfg.Cache.StyleTables = defaults.Cache.StyleTables
	}
}
