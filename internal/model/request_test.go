package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePlay(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected PlayRequest
		wantErr  error
	}{
		{
			name:     "bare string",
			payload:  `"beep.wav"`,
			expected: PlayRequest{Sound: "beep.wav"},
		},
		{
			name:     "object with sound only",
			payload:  `{"sound": "beep.wav"}`,
			expected: PlayRequest{Sound: "beep.wav"},
		},
		{
			name:     "object with delay and string pin",
			payload:  `{"sound": "beep.wav", "delay": 10, "pin": "door"}`,
			expected: PlayRequest{Sound: "beep.wav", Delay: Millis(10), Pin: "door"},
		},
		{
			name:     "numeric pin",
			payload:  `{"sound": "beep.wav", "pin": 17}`,
			expected: PlayRequest{Sound: "beep.wav", Pin: "17"},
		},
		{
			name:     "zero pin is no pin",
			payload:  `{"sound": "beep.wav", "pin": 0}`,
			expected: PlayRequest{Sound: "beep.wav"},
		},
		{
			name:     "false pin is no pin",
			payload:  `{"sound": "beep.wav", "pin": false}`,
			expected: PlayRequest{Sound: "beep.wav"},
		},
		{
			name:     "zero delay uses default",
			payload:  `{"sound": "beep.wav", "delay": 0}`,
			expected: PlayRequest{Sound: "beep.wav"},
		},
		{
			name:     "string delay",
			payload:  `{"sound": "beep.wav", "delay": "250"}`,
			expected: PlayRequest{Sound: "beep.wav", Delay: Millis(250)},
		},
		{
			name:     "negative delay clamps to zero",
			payload:  `{"sound": "beep.wav", "delay": -5}`,
			expected: PlayRequest{Sound: "beep.wav", Delay: Millis(0)},
		},
		{
			name:    "missing sound",
			payload: `{"delay": 10}`,
			wantErr: ErrMissingSound,
		},
		{
			name:    "empty bare string",
			payload: `""`,
			wantErr: ErrMissingSound,
		},
		{
			name:    "invalid json",
			payload: `{"sound":`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "invalid delay",
			payload: `{"sound": "beep.wav", "delay": "soon"}`,
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodePlay([]byte(tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req)
		})
	}
}

func TestDecodeStop(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected StopRequest
		wantErr  error
	}{
		{
			name:     "object with pin",
			payload:  `{"sound": "alarm.wav", "pin": "door"}`,
			expected: StopRequest{Sound: "alarm.wav", Pin: "door"},
		},
		{
			name:     "object with pin and delay",
			payload:  `{"sound": "alarm.wav", "pin": 4, "delay": 500}`,
			expected: StopRequest{Sound: "alarm.wav", Pin: "4", Delay: Millis(500)},
		},
		{
			name:     "bare string has no pin",
			payload:  `"alarm.wav"`,
			expected: StopRequest{Sound: "alarm.wav"},
			wantErr:  ErrMissingPin,
		},
		{
			name:     "missing pin",
			payload:  `{"sound": "alarm.wav"}`,
			expected: StopRequest{Sound: "alarm.wav"},
			wantErr:  ErrMissingPin,
		},
		{
			name:     "empty pin",
			payload:  `{"sound": "alarm.wav", "pin": ""}`,
			expected: StopRequest{Sound: "alarm.wav"},
			wantErr:  ErrMissingPin,
		},
		{
			name:    "invalid json",
			payload: `[1, 2`,
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeStop([]byte(tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, req)
		})
	}
}

func TestDecodePin_Object(t *testing.T) {
	req, err := DecodePlay([]byte(`{"sound": "a.wav", "pin": {"room": "hall"}}`))
	require.NoError(t, err)
	assert.Equal(t, Pin(`{"room":"hall"}`), req.Pin)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, *Millis(1500))
}

func TestPlayRequest_MarshalJSON(t *testing.T) {
	data, err := PlayRequest{Sound: "ring.wav", Delay: Millis(250), Pin: "call-1"}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"sound":"ring.wav","delay":250,"pin":"call-1"}`, string(data))

	data, err = PlayRequest{Sound: "ring.wav"}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"sound":"ring.wav"}`, string(data))

	req, err := DecodePlay(data)
	require.NoError(t, err)
	assert.Equal(t, "ring.wav", req.Sound)
	assert.Nil(t, req.Delay)
}

func TestStopRequest_MarshalJSONDecodes(t *testing.T) {
	data, err := StopRequest{Sound: "ring.wav", Pin: "call-1", Delay: Millis(1000)}.MarshalJSON()
	require.NoError(t, err)

	req, err := DecodeStop(data)
	require.NoError(t, err)
	assert.Equal(t, Pin("call-1"), req.Pin)
	require.NotNil(t, req.Delay)
	assert.Equal(t, time.Second, *req.Delay)
}
