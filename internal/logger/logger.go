package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var root = zap.NewNop()

// Init builds the process-wide logger. Development mode uses the console encoder.
func Init(level string, development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	root = l
	return l, nil
}

// L returns the process-wide logger.
func L() *zap.Logger {
	return root
}

// Named returns a component logger.
func Named(component string) *zap.Logger {
	return root.Named(component)
}

// Sync flushes buffered entries.
func Sync() {
	_ = root.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
