package dbus

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundpin/internal/model"
)

type received struct {
	notification string
	payload      string
}

type fakeReceiver struct {
	got       []received
	status    string
	statusErr error
}

func (r *fakeReceiver) Receive(notification string, payload []byte) {
	r.got = append(r.got, received{notification, string(payload)})
}

func (r *fakeReceiver) StatusJSON() (string, error) {
	return r.status, r.statusErr
}

func TestService_ForwardsPayloads(t *testing.T) {
	r := &fakeReceiver{}
	s := NewService(r, slog.New(slog.DiscardHandler))

	assert.Nil(t, s.Configure(`{"debug":true}`))
	assert.Nil(t, s.PlaySound(`"bell.wav"`))
	assert.Nil(t, s.StopSound(`{"sound":"bell.wav","pin":"p"}`))

	assert.Equal(t, []received{
		{model.NotificationConfig, `{"debug":true}`},
		{model.NotificationPlay, `"bell.wav"`},
		{model.NotificationStop, `{"sound":"bell.wav","pin":"p"}`},
	}, r.got)
}

func TestService_Status(t *testing.T) {
	r := &fakeReceiver{status: `{"configured":false}`}
	s := NewService(r, nil)

	status, dbusErr := s.Status()
	require.Nil(t, dbusErr)
	assert.Equal(t, `{"configured":false}`, status)

	r.statusErr = errors.New("boom")
	_, dbusErr = s.Status()
	assert.NotNil(t, dbusErr)
}

func TestService_StopWithoutStart(t *testing.T) {
	s := NewService(&fakeReceiver{}, nil)
	assert.NoError(t, s.Stop())
}

func TestServiceMethods(t *testing.T) {
	names := make([]string, 0, 4)
	for _, m := range serviceMethods() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Configure", "PlaySound", "StopSound", "Status"}, names)
}
