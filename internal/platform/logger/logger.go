// Package logger wraps zap the way the teacher's pkg/logger does: a
// single *Logger constructed once at process start and passed explicitly
// to every component, never reached for as a package-level global.
package logger

import (
	"go.uber.org/zap"
)

// Logger is a thin wrapper over *zap.Logger matching the call-site
// contract observed across the teacher's services: Info/Warn/Error take a
// message plus optional structured fields, and callers that only have a
// formatted string (no fields) still compile since fields is variadic.
type Logger struct {
	z *zap.Logger
}

// Config controls logger construction.
type Config struct {
	Environment string // "development" or "production"
	Level       string // "debug", "info", "warn", "error"
}

// New builds a Logger. Development environments get a human-readable
// console encoder; anything else gets JSON, matching the source's
// app.environment-driven split.
func New(cfg Config) (*Logger, error) {
	var zcfg zap.Config
	if cfg.Environment == "development" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if lvl, err := zap.ParseAtomicLevel(cfg.Level); err == nil && cfg.Level != "" {
		zcfg.Level = lvl
	}

	z, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// With returns a child logger carrying the given fields on every entry,
// used by workers to pin booking_id across a processing sequence.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Sync() error { return l.z.Sync() }
