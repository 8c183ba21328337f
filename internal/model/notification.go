package model

import (
	"encoding/json"
	"time"
)

// Inbound notification names.
const (
	NotificationConfig = "CONFIG"
	NotificationPlay   = "PLAY_SOUND"
	NotificationStop   = "STOP_SOUND"
)

// MarshalJSON encodes the request in the PLAY_SOUND payload form.
func (r PlayRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(payloadOut{
		Sound: r.Sound,
		Delay: delayMillis(r.Delay),
		Pin:   string(r.Pin),
	})
}

// MarshalJSON encodes the request in the STOP_SOUND payload form.
func (r StopRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(payloadOut{
		Sound: r.Sound,
		Delay: delayMillis(r.Delay),
		Pin:   string(r.Pin),
	})
}

type payloadOut struct {
	Sound string `json:"sound"`
	Delay *int64 `json:"delay,omitempty"`
	Pin   string `json:"pin,omitempty"`
}

func delayMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}
