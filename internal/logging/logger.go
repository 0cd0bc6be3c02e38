// Package logging builds the zap logger shared by the CLI and the scheduler.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build returns a logger writing to w with the given level and encoding
// ("console" or "json"). Records at error level and above also go to stderr
// when w is stdout. The returned AtomicLevel can change the level later.
func Build(level, encoding string, w io.Writer) (*zap.Logger, zap.AtomicLevel) {
	atomicLevel := zap.NewAtomicLevelAt(ParseLevel(level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encCfg.EncodeName = func(s string, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString("[" + s + "]")
	}

	encoder := zapcore.NewJSONEncoder(encCfg)
	if strings.ToLower(encoding) != "json" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	if w == os.Stdout {
		// Level filters
		highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.ErrorLevel
		})
		lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return atomicLevel.Enabled(lvl) && lvl < zapcore.ErrorLevel
		})
		core := zapcore.NewTee(
			zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lowPriority),
			zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), highPriority),
		)
		return zap.New(core, zap.AddCaller()), atomicLevel
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), atomicLevel)
	return zap.New(core, zap.AddCaller()), atomicLevel
}

// ParseLevel converts a level name to a zap level. Unknown names mean info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
