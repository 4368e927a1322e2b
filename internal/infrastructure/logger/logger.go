package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logDir = "log"

type Options struct {
	// Level is a zap level name; unknown names fall back to info.
	Level string
	// Format is "json" or "console".
	Format string
	// File, when set, sends output to log/<timestamp>_<File>.log instead of
	// stderr.
	File string
}

func DefaultOptions() Options {
	return Options{Level: "info", Format: "console"}
}

func build(opts Options) (*zap.Logger, *os.File, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	var (
		sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
		file *os.File
	)
	if opts.File != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02_15-04-05"), sanitize(opts.File))
		file, err = os.Create(filepath.Join(logDir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("create log file: %w", err)
		}
		sink = zapcore.AddSync(file)
	}

	return zap.New(zapcore.NewCore(enc, sink, level)), file, nil
}

// sanitize makes s safe to use as a file name.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
	s = strings.Trim(s, "_")
	if s == "" {
		return "autoflow"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
