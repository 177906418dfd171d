// File: internal/logutil/logutil.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide zap logger setup with optional rotating file output.

package logutil

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig describes where and how the library logs.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" toml:"format" validate:"omitempty,oneof=json console"`
	Filename   string `yaml:"filename" toml:"filename"`
	MaxSize    int    `yaml:"max_size" toml:"max_size" validate:"gte=0"`
	MaxDays    int    `yaml:"max_days" toml:"max_days" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" validate:"gte=0"`
}

var globalLogger atomic.Pointer[zap.Logger]

func init() {
	globalLogger.Store(zap.NewNop())
}

// GetGlobalLogger returns the process logger. It is a no-op logger until
// SetupLogger or SetGlobalLogger is called.
func GetGlobalLogger() *zap.Logger {
	return globalLogger.Load()
}

// SetGlobalLogger replaces the process logger.
func SetGlobalLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	globalLogger.Store(l)
}

// SetupLogger builds a logger from cfg and installs it globally.
func SetupLogger(cfg LogConfig) (*zap.Logger, error) {
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	SetGlobalLogger(l)
	return l, nil
}

// Build constructs a zap logger for the config without installing it.
func (cfg LogConfig) Build() (*zap.Logger, error) {
	level, err := cfg.level()
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(cfg.encoder(), cfg.syncer(), level)
	return zap.New(core, cfg.options()...), nil
}

func (cfg LogConfig) level() (zap.AtomicLevel, error) {
	if cfg.Level == "" {
		return zap.NewAtomicLevelAt(zap.InfoLevel), nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("logutil: bad level %q: %w", cfg.Level, err)
	}
	return zap.NewAtomicLevelAt(l), nil
}

func (cfg LogConfig) encoder() zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func (cfg LogConfig) syncer() zapcore.WriteSyncer {
	if cfg.Filename == "" {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	})
}

func (cfg LogConfig) options() []zap.Option {
	return []zap.Option{zap.AddStacktrace(zapcore.FatalLevel), zap.AddCaller()}
}
