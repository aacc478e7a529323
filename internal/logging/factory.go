package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects and configures a logging backend.
//
//   - Backend: "slog" (default) or "zap".
//   - Level:   "debug", "info", "warn" or "error".
//   - Format:  "text" or "json" (slog only; zap always writes JSON to files).
//   - File:    optional path; when set, output goes to a rotating file.
type Options struct {
	Backend string
	Level   string
	Format  string
	File    string
}

// New builds a Logger and a function that flushes and closes its outputs.
func New(opts Options) (Logger, func() error, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "slog":
		w, closeFn := output(opts.File)
		return NewSlogLogger(slog.New(slogHandler(w, opts))), closeFn, nil
	case "zap":
		return newZap(opts)
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", opts.Backend)
	}
}

func output(file string) (io.Writer, func() error) {
	if file == "" {
		return os.Stderr, func() error { return nil }
	}
	lj := rotatingFile(file)
	return lj, lj.Close
}

func rotatingFile(file string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
}

func slogHandler(w io.Writer, opts Options) slog.Handler {
	ho := &slog.HandlerOptions{Level: slogLevel(opts.Level)}
	if opts.Format == "json" {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

func newZap(opts Options) (Logger, func() error, error) {
	level := zapLevel(opts.Level)
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	var (
		ws      zapcore.WriteSyncer
		closeFn = func() error { return nil }
	)
	if opts.File != "" {
		lj := rotatingFile(opts.File)
		ws = zapcore.AddSync(lj)
		closeFn = lj.Close
	} else {
		ws = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, level)
	zl := NewZapLogger(zap.New(core, zap.AddCaller()))

	return zl, func() error {
		_ = zl.Sync()
		return closeFn()
	}, nil
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
