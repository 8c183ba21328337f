// Package logging configures the slog logger shared by soundpind components.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// TimeFormat is the timestamp layout of every log line.
const TimeFormat = "2006-01-02 15:04:05"

// ComponentKey is the attribute naming the component that logged a line.
const ComponentKey = "component"

// Logger bundles the root logger with the level it is filtered at, so the
// level can be raised to debug once the configuration is known.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a text logger writing to w (stderr if nil) at info level.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
	}
}

// SetDebug switches debug-only lines on or off.
func (l *Logger) SetDebug(debug bool) {
	if debug {
		l.level.Set(slog.LevelDebug)
	} else {
		l.level.Set(slog.LevelInfo)
	}
}

// DebugEnabled reports whether debug lines are currently emitted.
func (l *Logger) DebugEnabled() bool {
	return l.level.Level() <= slog.LevelDebug
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *slog.Logger {
	return l.With(ComponentKey, name)
}

// replaceAttr formats the timestamp as local wall-clock time.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, a.Value.Time().Local().Format(TimeFormat))
	}
	return a
}
