package logger

import (
	"os"

	"carvana-workflows/internal/application/port/output"

	"go.uber.org/zap"
)

var _ output.LoggerPort = (*ZapAdapter)(nil)

type ZapAdapter struct {
	sugar *zap.SugaredLogger
	file  *os.File
}

func NewLoggerAdapter(opts Options) (*ZapAdapter, error) {
	l, file, err := build(opts)
	if err != nil {
		return nil, err
	}
	return &ZapAdapter{sugar: l.Sugar(), file: file}, nil
}

// FromZap wraps an existing logger, e.g. one built by a test around a buffer.
func FromZap(l *zap.Logger) *ZapAdapter {
	return &ZapAdapter{sugar: l.Sugar()}
}

// Nop discards everything.
func Nop() *ZapAdapter {
	return FromZap(zap.NewNop())
}

func (l *ZapAdapter) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *ZapAdapter) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *ZapAdapter) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *ZapAdapter) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

func (l *ZapAdapter) WithField(key string, value any) output.LoggerPort {
	return &ZapAdapter{sugar: l.sugar.With(key, value), file: l.file}
}

func (l *ZapAdapter) WithFields(fields map[string]any) output.LoggerPort {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &ZapAdapter{sugar: l.sugar.With(args...), file: l.file}
}

// Close flushes buffered entries and closes the log file, if any. Child
// loggers share the file; close the root one.
func (l *ZapAdapter) Close() error {
	_ = l.sugar.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
