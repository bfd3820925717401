package logging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// RunLog is the log file of a single data conversion run. Lines logged
// through Logger go to both the run file and the process logger.
type RunLog struct {
	path   string
	file   *os.File
	logger *slog.Logger
}

// OpenRunLog removes the previous run's file at path and starts a new one.
// An empty path disables the file; the returned RunLog then logs only to
// the process logger.
func OpenRunLog(ctx context.Context, path string) (*RunLog, error) {
	base := FromContext(ctx)
	if path == "" {
		return &RunLog{logger: base}, nil
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove previous run log: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create run log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	fileHandler := NewHandler(f, "debug", "text")
	return &RunLog{
		path:   path,
		file:   f,
		logger: slog.New(teeHandler{base.Handler(), fileHandler}),
	}, nil
}

// Logger returns the logger writing to the run file.
func (r *RunLog) Logger() *slog.Logger {
	return r.logger
}

// Path returns the run file location, or "" when disabled.
func (r *RunLog) Path() string {
	return r.path
}

// Close flushes and closes the run file.
func (r *RunLog) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// teeHandler fans records out to several handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
