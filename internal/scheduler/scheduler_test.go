package scheduler

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundpin/internal/audio"
	"github.com/jmylchreest/soundpin/internal/config"
	"github.com/jmylchreest/soundpin/internal/model"
	"github.com/jmylchreest/soundpin/internal/quiet"
)

// fakeHandle records Start and Stop calls.
type fakeHandle struct {
	mu      sync.Mutex
	path    string
	started int
	stopped int
}

func (h *fakeHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started++
	return nil
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped++
}

func (h *fakeHandle) counts() (started, stopped int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started, h.stopped
}

// fakeFactory hands out fakeHandles and remembers them.
type fakeFactory struct {
	mu      sync.Mutex
	handles []*fakeHandle
	err     error
}

func (f *fakeFactory) NewHandle(path string) (audio.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	h := &fakeHandle{path: path}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeFactory) all() []*fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeHandle(nil), f.handles...)
}

func (f *fakeFactory) totalStarts() int {
	total := 0
	for _, h := range f.all() {
		started, _ := h.counts()
		total += started
	}
	return total
}

// syncBuffer is a bytes.Buffer safe for the scheduler's goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	sched   *Scheduler
	clock   *clockwork.FakeClock
	factory *fakeFactory
	logs    *syncBuffer
	dir     string
}

func newHarness(t *testing.T, now time.Time, mutate func(*config.Config), sounds ...string) *harness {
	t.Helper()

	dir := t.TempDir()
	for _, s := range sounds {
		require.NoError(t, os.WriteFile(filepath.Join(dir, s), []byte("RIFF"), 0644))
	}

	cfg := config.DefaultConfig()
	cfg.SoundsDir = dir
	if mutate != nil {
		mutate(cfg)
	}

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := &harness{
		clock:   clockwork.NewFakeClockAt(now),
		factory: &fakeFactory{},
		logs:    logs,
		dir:     dir,
	}
	h.sched = New(Options{
		Config:  cfg,
		Factory: h.factory,
		Clock:   h.clock,
		Logger:  logger,
	})
	t.Cleanup(h.sched.Close)
	return h
}

// drain waits until every fired task has executed.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.sched.Pending() == 0
	}, time.Second, time.Millisecond)
}

func morning() time.Time {
	return time.Date(2024, time.June, 3, 8, 0, 0, 0, time.Local)
}

func quietEvening(c *config.Config) {
	c.Quiet = &quiet.Window{Start: "22:00", End: "23:00"}
	c.DefaultDelay = config.Duration(100 * time.Millisecond)
}

func TestRequestPlay_SuppressedDuringQuietHours(t *testing.T) {
	now := time.Date(2024, time.June, 3, 22, 30, 0, 0, time.Local)
	h := newHarness(t, now, quietEvening, "beep.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav"})

	assert.Equal(t, 0, h.sched.Pending())
	h.clock.Advance(time.Second)
	assert.Equal(t, 0, h.factory.totalStarts())
	assert.Contains(t, h.logs.String(), "quiet hours are in effect")
}

func TestRequestPlay_OutsideQuietHoursPlaysAfterDelay(t *testing.T) {
	h := newHarness(t, morning(), quietEvening, "beep.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Delay: model.Millis(10)})
	require.Equal(t, 1, h.sched.Pending())

	h.clock.Advance(9 * time.Millisecond)
	assert.Equal(t, 1, h.sched.Pending())
	assert.Equal(t, 0, h.factory.totalStarts())

	h.clock.Advance(time.Millisecond)
	h.drain(t)

	assert.Equal(t, 1, h.factory.totalStarts())
	handles := h.factory.all()
	require.Len(t, handles, 1)
	assert.Equal(t, filepath.Join(h.dir, "beep.wav"), handles[0].path)
}

func TestRequestPlay_MissingSound(t *testing.T) {
	h := newHarness(t, morning(), nil)

	h.sched.RequestPlay(model.PlayRequest{Sound: "missing.wav"})

	assert.Equal(t, 0, h.sched.Pending())
	h.clock.Advance(time.Second)
	assert.Equal(t, 0, h.factory.totalStarts())
	assert.Equal(t, 1, strings.Count(h.logs.String(), "does not exist"))
}

func TestRequestPlay_ExistenceCheckedAtRequestTime(t *testing.T) {
	h := newHarness(t, morning(), nil)

	h.sched.RequestPlay(model.PlayRequest{Sound: "late.wav", Delay: model.Millis(50)})

	// Appears before the delay would have elapsed; the request is already dropped.
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "late.wav"), []byte("RIFF"), 0644))
	h.clock.Advance(100 * time.Millisecond)

	assert.Equal(t, 0, h.sched.Pending())
	assert.Empty(t, h.factory.all())
}

func TestRequestPlay_UsesDefaultDelay(t *testing.T) {
	h := newHarness(t, morning(), func(c *config.Config) {
		c.DefaultDelay = config.Duration(100 * time.Millisecond)
	}, "beep.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav"})

	tasks := h.sched.PendingTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "play", tasks[0].Kind)
	assert.Equal(t, 100*time.Millisecond, tasks[0].Delay)
	assert.Equal(t, morning().Add(100*time.Millisecond), tasks[0].Due)

	h.clock.Advance(99 * time.Millisecond)
	assert.Equal(t, 0, h.factory.totalStarts())

	h.clock.Advance(time.Millisecond)
	h.drain(t)
	assert.Equal(t, 1, h.factory.totalStarts())
}

func TestRequestPlay_DoesNotBlock(t *testing.T) {
	h := newHarness(t, morning(), nil, "beep.wav")

	done := make(chan struct{})
	go func() {
		h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Delay: model.Millis(int64(time.Hour / time.Millisecond))})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RequestPlay blocked on its delay")
	}
	assert.Equal(t, 1, h.sched.Pending())
}

func TestRequestPlay_PinnedRegistersNewestHandle(t *testing.T) {
	h := newHarness(t, morning(), nil, "beep.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Delay: model.Millis(10), Pin: "door"})
	h.clock.Advance(10 * time.Millisecond)
	h.drain(t)

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Delay: model.Millis(10), Pin: "door"})
	h.clock.Advance(10 * time.Millisecond)
	h.drain(t)

	handles := h.factory.all()
	require.Len(t, handles, 2)

	got, ok := h.sched.Registry().Lookup("door")
	require.True(t, ok)
	assert.Same(t, handles[1], got)

	_, stopped := handles[0].counts()
	assert.Equal(t, 0, stopped, "replaced handle must not be stopped")
	assert.Equal(t, 2, h.factory.totalStarts())
}

func TestRequestPlay_UnpinnedNeverRegistered(t *testing.T) {
	h := newHarness(t, morning(), nil, "beep.wav")

	for i := 0; i < 3; i++ {
		h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Delay: model.Millis(int64(i * 5))})
	}
	assert.Equal(t, 0, h.sched.Registry().Len())

	h.clock.Advance(20 * time.Millisecond)
	h.drain(t)

	assert.Equal(t, 3, h.factory.totalStarts())
	assert.Equal(t, 0, h.sched.Registry().Len())
}

func TestRequestPlay_FactoryError(t *testing.T) {
	h := newHarness(t, morning(), nil, "beep.wav")
	h.factory.err = errors.New("no audio device")

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Pin: "door"})
	h.clock.Advance(time.Millisecond)
	h.drain(t)

	assert.Equal(t, 0, h.sched.Registry().Len())
	assert.Contains(t, h.logs.String(), "failed to create player")
}

func TestRequestStop_WithoutPin(t *testing.T) {
	h := newHarness(t, morning(), nil, "beep.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Pin: "door"})
	h.clock.Advance(time.Millisecond)
	h.drain(t)

	h.sched.RequestStop(model.StopRequest{Sound: "beep.wav"})
	assert.Equal(t, 0, h.sched.Pending())

	h.clock.Advance(time.Second)
	for _, handle := range h.factory.all() {
		_, stopped := handle.counts()
		assert.Equal(t, 0, stopped)
	}
	assert.Contains(t, h.logs.String(), "pin was not supplied")
}

func TestRequestStop_StopsPinnedHandle(t *testing.T) {
	h := newHarness(t, morning(), nil, "alarm.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "alarm.wav", Pin: "door"})
	h.clock.Advance(time.Millisecond)
	h.drain(t)

	h.sched.RequestStop(model.StopRequest{Sound: "alarm.wav", Pin: "door", Delay: model.Millis(30)})
	h.clock.Advance(29 * time.Millisecond)

	handles := h.factory.all()
	require.Len(t, handles, 1)
	_, stopped := handles[0].counts()
	assert.Equal(t, 0, stopped)

	h.clock.Advance(time.Millisecond)
	h.drain(t)

	_, stopped = handles[0].counts()
	assert.Equal(t, 1, stopped)
}

func TestRequestStop_UnknownPinIsNoop(t *testing.T) {
	h := newHarness(t, morning(), nil, "alarm.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "alarm.wav", Pin: "door"})
	h.clock.Advance(time.Millisecond)
	h.drain(t)

	h.sched.RequestStop(model.StopRequest{Sound: "alarm.wav", Pin: "window"})
	h.clock.Advance(time.Millisecond)
	h.drain(t)

	_, stopped := h.factory.all()[0].counts()
	assert.Equal(t, 0, stopped)
	assert.NotContains(t, h.logs.String(), "level=ERROR")
}

func TestStopBeforeRegistrationRace(t *testing.T) {
	h := newHarness(t, morning(), nil, "beep.wav")

	h.sched.RequestStop(model.StopRequest{Sound: "beep.wav", Pin: "P", Delay: model.Millis(0)})
	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Pin: "P", Delay: model.Millis(50)})

	// The stop is due immediately and finds nothing registered.
	require.Eventually(t, func() bool {
		return h.sched.Pending() == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, h.sched.Registry().Len())

	h.clock.Advance(50 * time.Millisecond)
	h.drain(t)

	handle, ok := h.sched.Registry().Lookup("P")
	require.True(t, ok)
	started, stopped := handle.(*fakeHandle).counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 0, stopped)
}

func TestClose_DropsPendingTasks(t *testing.T) {
	h := newHarness(t, morning(), nil, "beep.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Delay: model.Millis(100)})
	require.Equal(t, 1, h.sched.Pending())

	h.sched.Close()
	assert.Equal(t, 0, h.sched.Pending())

	h.clock.Advance(time.Second)
	assert.Equal(t, 0, h.factory.totalStarts())

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav"})
	assert.Equal(t, 0, h.sched.Pending())

	// Closing twice is harmless.
	h.sched.Close()
}

func TestPendingTasks_OrderedByDue(t *testing.T) {
	h := newHarness(t, morning(), nil, "a.wav", "b.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "a.wav", Delay: model.Millis(300)})
	h.sched.RequestStop(model.StopRequest{Sound: "b.wav", Pin: "x", Delay: model.Millis(100)})
	h.sched.RequestPlay(model.PlayRequest{Sound: "b.wav", Delay: model.Millis(200), Pin: "x"})

	tasks := h.sched.PendingTasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "stop", tasks[0].Kind)
	assert.Equal(t, "x", tasks[0].Pin)
	assert.Equal(t, "b.wav", tasks[1].Sound)
	assert.Equal(t, "a.wav", tasks[2].Sound)
}

func TestTaskKindString(t *testing.T) {
	assert.Equal(t, "play", TaskPlay.String())
	assert.Equal(t, "stop", TaskStop.String())
	assert.Equal(t, "unknown", TaskKind(9).String())
}

func TestDebugLines(t *testing.T) {
	h := newHarness(t, morning(), quietEvening, "beep.wav")

	h.sched.RequestPlay(model.PlayRequest{Sound: "beep.wav", Delay: model.Millis(250), Pin: "door"})
	h.sched.RequestStop(model.StopRequest{Sound: "beep.wav", Pin: "door", Delay: model.Millis(500)})

	out := h.logs.String()
	assert.Contains(t, out, "quiet time window")
	assert.Contains(t, out, "start=22:00")
	assert.Contains(t, out, `msg="playing sound" sound=beep.wav delay_ms=250 pin=door`)
	assert.Contains(t, out, `msg="stopping sound" sound=beep.wav delay_ms=500 pin=door`)
}
