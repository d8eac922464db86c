package log

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志配置
type Config struct {
	Level string `yaml:"level"` // debug/info/warn/error
	File  string `yaml:"file"`  // 为空时输出到stderr
}

var logger atomic.Pointer[zap.Logger]

func init() {
	l, err := build(Config{})
	if err != nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

func build(c Config) (l *zap.Logger, err error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Sampling = nil
	if c.Level != "" {
		if zc.Level, err = zap.ParseAtomicLevel(c.Level); err != nil {
			return
		}
	}
	if c.File != "" {
		zc.OutputPaths = []string{c.File}
		zc.ErrorOutputPaths = []string{c.File}
	}
	l, err = zc.Build(zap.AddCallerSkip(1))
	return
}

// 按配置重建全局日志
func Init(c Config) (err error) {
	l, err := build(c)
	if err != nil {
		return
	}
	if old := logger.Swap(l); old != nil {
		_ = old.Sync()
	}
	return
}

// 替换全局日志（测试中可传入zaptest/observer构造的logger）
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

func Debug(msg string, fields ...zap.Field) {
	logger.Load().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Load().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Load().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Load().Error(msg, fields...)
}

func Sync() error {
	return logger.Load().Sync()
}
