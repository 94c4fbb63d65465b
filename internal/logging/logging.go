// Package logging builds the application's structured logger. The terminal
// belongs to the UI, so logs only ever go to rotating files.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger bundles the root logger with the files it writes to.
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// New writes level-split logs into dir:
//   - mill_warn.log: WARN and ERROR
//   - mill.log: everything from level up to INFO
//
// An empty dir yields a discarding logger.
func New(dir string, level slog.Level) (*Logger, error) {
	if dir == "" {
		return Discard(), nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	warnFile := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "mill_warn.log"),
		MaxSize:    10,
		MaxBackups: 3,
	}
	mainFile := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "mill.log"),
		MaxSize:    5,
		MaxBackups: 1,
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(warnFile, &slog.HandlerOptions{Level: slog.LevelWarn}),
		&levelRangeHandler{
			min:   level,
			max:   slog.LevelInfo,
			inner: slog.NewTextHandler(mainFile, &slog.HandlerOptions{Level: level}),
		},
	}
	return &Logger{
		Logger:  slog.New(&multiHandler{handlers: handlers}),
		closers: []io.Closer{warnFile, mainFile},
	}, nil
}

// Component returns a child logger tagged with name.
func (l *Logger) Component(name string) *slog.Logger {
	return l.With("comp", name)
}

// Close flushes and closes the log files.
func (l *Logger) Close() error {
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Unknown names yield INFO.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(name)))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// levelRangeHandler passes only records within [min, max].
type levelRangeHandler struct {
	min, max slog.Level
	inner    slog.Handler
}

func (h *levelRangeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min && level <= h.max
}

func (h *levelRangeHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelRangeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRangeHandler{min: h.min, max: h.max, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelRangeHandler) WithGroup(name string) slog.Handler {
	return &levelRangeHandler{min: h.min, max: h.max, inner: h.inner.WithGroup(name)}
}

// multiHandler fans records out to every enabled handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
