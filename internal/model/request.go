// Package model defines the play and stop requests handled by soundpind.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Payload decoding errors. None of them are fatal; the dispatcher logs
// them and drops the request.
var (
	ErrMissingSound   = errors.New("notification payload `sound` was not supplied")
	ErrMissingPin     = errors.New("notification payload `pin` was not supplied")
	ErrInvalidPayload = errors.New("invalid notification payload")
)

// Pin is a caller-supplied opaque key binding a playback so that it can be
// stopped later. The empty pin means "no pin".
type Pin string

// Empty reports whether no pin was supplied.
func (p Pin) Empty() bool {
	return p == ""
}

// PlayRequest asks for a sound to be played.
type PlayRequest struct {
	Sound string
	// Delay is nil when the configured default delay applies.
	Delay *time.Duration
	Pin   Pin
}

// StopRequest asks for the playback bound to Pin to be stopped.
type StopRequest struct {
	Sound string
	Pin   Pin
	// Delay is nil for an immediate stop.
	Delay *time.Duration
}

// payload is the structured form of PLAY_SOUND and STOP_SOUND.
type payload struct {
	Sound string          `json:"sound"`
	Delay json.RawMessage `json:"delay"`
	Pin   json.RawMessage `json:"pin"`
}

// DecodePlay decodes a PLAY_SOUND payload. The payload is either a bare JSON
// string naming the sound, or an object {sound, delay?, pin?}.
func DecodePlay(raw []byte) (PlayRequest, error) {
	if s, ok, err := bareString(raw); ok || err != nil {
		if err != nil {
			return PlayRequest{}, err
		}
		if s == "" {
			return PlayRequest{}, ErrMissingSound
		}
		return PlayRequest{Sound: s}, nil
	}

	p, err := decodeObject(raw)
	if err != nil {
		return PlayRequest{}, err
	}
	if p.Sound == "" {
		return PlayRequest{}, ErrMissingSound
	}

	req := PlayRequest{Sound: p.Sound}
	if req.Pin, err = decodePin(p.Pin); err != nil {
		return PlayRequest{}, err
	}
	if req.Delay, err = decodeDelay(p.Delay); err != nil {
		return PlayRequest{}, err
	}
	return req, nil
}

// DecodeStop decodes a STOP_SOUND payload. A bare JSON string is a stop
// attempt without a pin and yields ErrMissingPin alongside the request.
func DecodeStop(raw []byte) (StopRequest, error) {
	if s, ok, err := bareString(raw); ok || err != nil {
		if err != nil {
			return StopRequest{}, err
		}
		return StopRequest{Sound: s}, ErrMissingPin
	}

	p, err := decodeObject(raw)
	if err != nil {
		return StopRequest{}, err
	}

	req := StopRequest{Sound: p.Sound}
	if req.Pin, err = decodePin(p.Pin); err != nil {
		return StopRequest{}, err
	}
	if req.Pin.Empty() {
		return req, ErrMissingPin
	}
	if req.Delay, err = decodeDelay(p.Delay); err != nil {
		return StopRequest{}, err
	}
	return req, nil
}

// bareString reports whether raw is a JSON string and returns its value.
func bareString(raw []byte) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s, true, nil
}

func decodeObject(raw []byte) (payload, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

// decodePin converts a JSON pin into a Pin. Falsy values (null, false, 0,
// "") mean no pin.
func decodePin(raw json.RawMessage) (Pin, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: pin: %v", ErrInvalidPayload, err)
	}

	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return Pin(val), nil
	case bool:
		if !val {
			return "", nil
		}
		return "true", nil
	case float64:
		if val == 0 {
			return "", nil
		}
		return Pin(strconv.FormatFloat(val, 'f', -1, 64)), nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", fmt.Errorf("%w: pin: %v", ErrInvalidPayload, err)
		}
		return Pin(buf.String()), nil
	}
}

// decodeDelay converts a JSON millisecond delay. Missing, null or zero
// delays return nil; negative delays are clamped to zero.
func decodeDelay(raw json.RawMessage) (*time.Duration, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: delay: %v", ErrInvalidPayload, err)
	}

	var ms float64
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		ms = val
	case string:
		if val == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: delay %q is not a number of milliseconds", ErrInvalidPayload, val)
		}
		ms = f
	default:
		return nil, fmt.Errorf("%w: delay must be a number of milliseconds", ErrInvalidPayload)
	}

	if ms == 0 {
		return nil, nil
	}
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms * float64(time.Millisecond))
	return &d, nil
}

// Millis returns a pointer to a delay of ms milliseconds.
func Millis(ms int64) *time.Duration {
	d := time.Duration(ms) * time.Millisecond
	return &d
}
