package scheduler

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/soundpin/internal/model"
)

// TaskKind identifies what a deferred task does when it fires.
type TaskKind int

const (
	// TaskPlay creates, optionally registers, and starts a playback handle.
	TaskPlay TaskKind = iota
	// TaskStop stops the handle registered under a pin.
	TaskStop
)

// String returns the string representation of TaskKind.
func (k TaskKind) String() string {
	switch k {
	case TaskPlay:
		return "play"
	case TaskStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Task is one entry of the timer queue. It fires exactly once, after its
// delay, and cannot be cancelled once scheduled.
type Task struct {
	ID    ulid.ULID
	Kind  TaskKind
	Sound string
	Pin   model.Pin
	Delay time.Duration
	Due   time.Time

	path  string
	timer clockwork.Timer
}

// TaskInfo is a read-only view of a pending task.
type TaskInfo struct {
	ID    string        `json:"id" yaml:"id"`
	Kind  string        `json:"kind" yaml:"kind"`
	Sound string        `json:"sound" yaml:"sound"`
	Pin   string        `json:"pin,omitempty" yaml:"pin,omitempty"`
	Delay time.Duration `json:"delay" yaml:"delay"`
	Due   time.Time     `json:"due" yaml:"due"`
}

func (t *Task) info() TaskInfo {
	return TaskInfo{
		ID:    t.ID.String(),
		Kind:  t.Kind.String(),
		Sound: t.Sound,
		Pin:   string(t.Pin),
		Delay: t.Delay,
		Due:   t.Due,
	}
}
