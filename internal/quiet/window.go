// Package quiet decides whether playback is suppressed by a daily quiet window.
package quiet

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// clockLayout is the hours:minutes layout of window bounds.
const clockLayout = "15:04"

// Window is a daily time range, given as "HH:mm" bounds, during which
// play requests are suppressed.
type Window struct {
	Start string `toml:"start" json:"start" yaml:"start"`
	End   string `toml:"end" json:"end" yaml:"end"`
}

// String returns the window as "start-end".
func (w *Window) String() string {
	if w == nil {
		return ""
	}
	return w.Start + "-" + w.End
}

// Bounds places the window's start and end on the calendar date of now,
// in now's location.
func (w *Window) Bounds(now time.Time) (start, end time.Time, err error) {
	start, err = onDate(w.Start, now)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid quiet window start: %w", err)
	}
	end, err = onDate(w.End, now)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid quiet window end: %w", err)
	}
	return start, end, nil
}

// IsQuietNow reports whether now falls strictly between the window's start
// and end on now's date. A nil window, or one missing either bound, is never
// quiet.
//
// A window whose end is earlier in the day than its start (e.g. 22:00-07:00)
// is not treated as crossing midnight; it never matches.
func IsQuietNow(w *Window, now time.Time) (bool, error) {
	if w == nil || w.Start == "" || w.End == "" {
		return false, nil
	}

	start, end, err := w.Bounds(now)
	if err != nil {
		return false, err
	}

	return now.After(start) && now.Before(end), nil
}

func onDate(hhmm string, now time.Time) (time.Time, error) {
	t, err := time.Parse(clockLayout, hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

// Policy evaluates a fixed window against the current clock time.
type Policy struct {
	window *Window
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewPolicy creates a Policy for window. A nil clock uses the real clock.
func NewPolicy(window *Window, clock clockwork.Clock, logger *slog.Logger) *Policy {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		window: window,
		clock:  clock,
		logger: logger,
	}
}

// IsQuiet reports whether playback is suppressed right now.
// Malformed window bounds fail closed: the window is ignored and a warning
// is logged.
func (p *Policy) IsQuiet() bool {
	if p.window == nil {
		return false
	}

	now := p.clock.Now()
	p.logger.Debug("quiet time window", "start", p.window.Start, "end", p.window.End)

	quiet, err := IsQuietNow(p.window, now)
	if err != nil {
		p.logger.Warn("ignoring quiet window", "window", p.window.String(), "error", err)
		return false
	}
	return quiet
}
