package utils

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger keeps the printf-style surface used across the services on top of zap.
type Logger struct {
	sugar *zap.SugaredLogger
}

func NewLogger() *Logger {
	return NewLoggerWith("info", "console")
}

func NewLoggerWith(level, format string) *Logger {
	var zcfg zap.Config
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.DisableStacktrace = true
	base, err := zcfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{sugar: base.Sugar()}
}

// NewNopLogger discards everything; handy in tests.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) With(kv ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{sugar: l.sugar.With(kv...)}
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.sugar.Sync()
}
