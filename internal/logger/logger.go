// Package logger holds the process-wide zap logger.
//
// Output always goes to stderr: stdout carries the MCP protocol stream.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
)

// InitProduction installs a JSON logger at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func InitProduction(level string) error {
	cfg := zap.NewProductionConfig()
	return build(cfg, level)
}

// InitDevelopment installs a console logger, friendlier when running by hand.
func InitDevelopment(level string) error {
	cfg := zap.NewDevelopmentConfig()
	return build(cfg, level)
}

// InitNop installs a logger that discards everything.
func InitNop() {
	setLogger(zap.NewNop())
}

func build(cfg zap.Config, level string) error {
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

// ParseLevel maps a level name to a zapcore.Level.
func ParseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func setLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	// keep zap.L() pointing at the same instance
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
}

// Log returns the installed logger, or zap's global (a no-op until replaced).
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// Sync flushes buffered entries.
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
