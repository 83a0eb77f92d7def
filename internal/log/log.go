package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	sugar  *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	initMu sync.Once
)

// initLogger builds the default console logger writing to stderr.
func initLogger() {
	initMu.Do(func() {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)

		mu.Lock()
		if sugar == nil {
			sugar = zap.New(core).Sugar()
		}
		mu.Unlock()
	})
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a
// Level. Unknown values map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Use replaces the backing logger, e.g. with an observer in tests. It returns
// a func restoring the previous one.
func Use(l *zap.Logger) func() {
	initLogger()
	mu.Lock()
	prev := sugar
	sugar = l.Sugar()
	mu.Unlock()
	return func() {
		mu.Lock()
		sugar = prev
		mu.Unlock()
	}
}

// Sync flushes buffered entries.
func Sync() error {
	return current().Sync()
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}
