package dbus

import (
	"strconv"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundpin/internal/model"
)

// Hints carrying soundpin-specific data on freedesktop notifications.
const (
	HintPin   = "x-soundpin-pin"
	HintDelay = "x-soundpin-delay"
)

// DBusNotification represents an observed D-Bus Notify call.
// It contains the raw parameters from the org.freedesktop.Notifications.Notify method.
type DBusNotification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

func (n *DBusNotification) stringHint(key string) string {
	if v, ok := n.Hints[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// Category extracts the category hint from the notification.
// Returns empty string if not specified.
func (n *DBusNotification) Category() string {
	return n.stringHint("category")
}

// SoundFile extracts the sound-file hint.
func (n *DBusNotification) SoundFile() string {
	return n.stringHint("sound-file")
}

// SoundName extracts the sound-name hint.
func (n *DBusNotification) SoundName() string {
	return n.stringHint("sound-name")
}

// SuppressSound returns true if the suppress-sound hint is set.
func (n *DBusNotification) SuppressSound() bool {
	if v, ok := n.Hints["suppress-sound"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// Pin extracts the x-soundpin-pin hint. Strings are used as-is and integers
// are formatted in base 10. Zero and the empty string mean no pin.
func (n *DBusNotification) Pin() model.Pin {
	v, ok := n.Hints[HintPin]
	if !ok {
		return ""
	}
	switch val := v.Value().(type) {
	case string:
		return model.Pin(val)
	case int32:
		if val == 0 {
			return ""
		}
		return model.Pin(strconv.FormatInt(int64(val), 10))
	case uint32:
		if val == 0 {
			return ""
		}
		return model.Pin(strconv.FormatUint(uint64(val), 10))
	case int64:
		if val == 0 {
			return ""
		}
		return model.Pin(strconv.FormatInt(val, 10))
	}
	return ""
}

// Delay extracts the x-soundpin-delay hint in milliseconds. Returns nil if
// the hint is absent, zero or not an integer, so the default delay applies.
// Negative values are clamped to zero.
func (n *DBusNotification) Delay() *time.Duration {
	v, ok := n.Hints[HintDelay]
	if !ok {
		return nil
	}

	var ms int64
	switch val := v.Value().(type) {
	case int32:
		ms = int64(val)
	case uint32:
		ms = int64(val)
	case int64:
		ms = val
	case string:
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil
		}
		ms = parsed
	default:
		return nil
	}

	if ms == 0 {
		return nil
	}
	if ms < 0 {
		ms = 0
	}
	return model.Millis(ms)
}
