package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"mdnotes/internal/config"
)

// LogFileName is the name of the log file under the log directory.
const LogFileName = "mdnotes.log"

// mdnotesHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<sessionID>\t<message>\t<key=value ...>
type mdnotesHandler struct {
	w         io.Writer
	level     slog.Leveler
	sessionID string
	attrs     []slog.Attr
}

func (h *mdnotesHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

func (h *mdnotesHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.sessionID, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	// One write per record keeps lines whole when several goroutines log.
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *mdnotesHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &mdnotesHandler{
		w:         h.w,
		level:     h.level,
		sessionID: h.sessionID,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *mdnotesHandler) WithGroup(string) slog.Handler { return h }

// parseLevel maps a config level name to a slog level. Unknown names are info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger creates a structured logger that writes to a size-rotated
// logDir/mdnotes.log and, when stderr is non-nil, to stderr as well.
// The returned closer releases the log file.
func newLogger(logDir string, cfg config.LogConfig, sessionID string, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}

	var w io.Writer = file
	if stderr != nil {
		w = io.MultiWriter(file, stderr)
	}
	handler := &mdnotesHandler{w: w, level: parseLevel(cfg.Level), sessionID: sessionID}
	return slog.New(handler), file, nil
}

// slogAdapter wraps *slog.Logger to satisfy the notes.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
