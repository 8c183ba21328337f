// Package scheduler decides whether and when sounds play, and binds pinned
// playbacks so they can be stopped later.
//
// Play and stop requests never block. Each accepted request becomes a Task
// on a timer queue; when its delay elapses the task is handed to a single
// event loop goroutine, so deferred actions never overlap one another.
// Play and stop tasks are not sequenced against each other: a stop whose
// delay elapses before a play for the same pin finds nothing registered and
// does nothing, and the play then proceeds normally.
package scheduler

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/soundpin/internal/audio"
	"github.com/jmylchreest/soundpin/internal/catalog"
	"github.com/jmylchreest/soundpin/internal/config"
	"github.com/jmylchreest/soundpin/internal/model"
	"github.com/jmylchreest/soundpin/internal/quiet"
	"github.com/jmylchreest/soundpin/internal/registry"
)

// HandleFactory creates playback handles for sound files.
type HandleFactory interface {
	NewHandle(path string) (audio.Handle, error)
}

// Options are the collaborators a Scheduler is built from.
type Options struct {
	// Config is the frozen process configuration. Required.
	Config *config.Config
	// Catalog resolves sound identifiers. Defaults to Config.SoundsDir.
	Catalog *catalog.Catalog
	// Factory creates playback handles. Required.
	Factory HandleFactory
	// Registry holds pinned handles. A new one is created if nil.
	Registry *registry.Registry
	// Clock drives quiet-hours evaluation and delays. Defaults to the real clock.
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Scheduler is the play/stop orchestrator.
type Scheduler struct {
	cfg      *config.Config
	policy   *quiet.Policy
	catalog  *catalog.Catalog
	factory  HandleFactory
	registry *registry.Registry
	clock    clockwork.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[ulid.ULID]*Task
	closed  bool

	queue   chan *Task
	done    chan struct{}
	stopped chan struct{}
}

// New creates a Scheduler and starts its event loop.
func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.New(opts.Config.SoundsDir)
	}
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}

	s := &Scheduler{
		cfg:      opts.Config,
		policy:   quiet.NewPolicy(opts.Config.Quiet, opts.Clock, opts.Logger),
		catalog:  opts.Catalog,
		factory:  opts.Factory,
		registry: opts.Registry,
		clock:    opts.Clock,
		logger:   opts.Logger,
		pending:  make(map[ulid.ULID]*Task),
		queue:    make(chan *Task),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go s.run()

	return s
}

// RequestPlay evaluates quiet hours and the sound's existence right away,
// then schedules playback after the request's delay (or the configured
// default delay). It returns without waiting for the delay.
func (s *Scheduler) RequestPlay(req model.PlayRequest) {
	if s.policy.IsQuiet() {
		s.logger.Info("not playing sound as quiet hours are in effect", "sound", req.Sound)
		return
	}

	delay := s.cfg.DefaultDelay.Duration()
	if req.Delay != nil {
		delay = *req.Delay
	}

	// Checked now, not when the delay elapses.
	path, ok := s.catalog.Resolve(req.Sound)
	if !ok {
		s.logger.Warn("sound does not exist", "sound", req.Sound, "path", path)
		return
	}

	s.logger.Debug("playing sound", "sound", req.Sound, "delay_ms", delay.Milliseconds(), "pin", string(req.Pin))

	s.schedule(&Task{
		Kind:  TaskPlay,
		Sound: req.Sound,
		Pin:   req.Pin,
		Delay: delay,
		path:  path,
	})
}

// RequestStop schedules a stop of the playback bound to req.Pin after the
// request's delay (immediately if none). Requests without a pin are logged
// and dropped.
func (s *Scheduler) RequestStop(req model.StopRequest) {
	if req.Pin.Empty() {
		s.logger.Warn("could not stop sound, pin was not supplied", "sound", req.Sound)
		return
	}

	var delay time.Duration
	if req.Delay != nil {
		delay = *req.Delay
	}

	s.logger.Debug("stopping sound", "sound", req.Sound, "delay_ms", delay.Milliseconds(), "pin", string(req.Pin))

	s.schedule(&Task{
		Kind:  TaskStop,
		Sound: req.Sound,
		Pin:   req.Pin,
		Delay: delay,
	})
}

// schedule puts t on the timer queue.
func (s *Scheduler) schedule(t *Task) {
	if t.Delay < 0 {
		t.Delay = 0
	}
	t.ID = ulid.Make()
	t.Due = s.clock.Now().Add(t.Delay)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("scheduler closed, dropping task", "kind", t.Kind.String(), "sound", t.Sound)
		return
	}

	s.pending[t.ID] = t
	t.timer = s.clock.AfterFunc(t.Delay, func() {
		s.enqueue(t)
	})
}

// enqueue hands a fired task to the event loop.
func (s *Scheduler) enqueue(t *Task) {
	select {
	case s.queue <- t:
	case <-s.done:
	}
}

// run is the event loop. Tasks execute one at a time, in the order their
// timers fire.
func (s *Scheduler) run() {
	defer close(s.stopped)

	for {
		select {
		case <-s.done:
			return
		case t := <-s.queue:
			s.execute(t)
		}
	}
}

func (s *Scheduler) execute(t *Task) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, t.ID)
		s.mu.Unlock()
	}()

	switch t.Kind {
	case TaskPlay:
		s.firePlay(t)
	case TaskStop:
		s.fireStop(t)
	}
}

// firePlay creates a new handle, binds it to the pin if there is one, and
// starts it. Unpinned handles are fire-and-forget.
func (s *Scheduler) firePlay(t *Task) {
	h, err := s.factory.NewHandle(t.path)
	if err != nil {
		s.logger.Warn("failed to create player", "sound", t.Sound, "path", t.path, "error", err)
		return
	}

	if !t.Pin.Empty() {
		if s.registry.Register(t.Pin, h) {
			// The previous handle is abandoned, not stopped.
			s.logger.Debug("replaced player bound to pin", "pin", string(t.Pin), "sound", t.Sound)
		}
	}

	if err := h.Start(); err != nil {
		s.logger.Warn("failed to start player", "sound", t.Sound, "error", err)
		return
	}

	s.logger.Debug("started sound", "sound", t.Sound, "pin", string(t.Pin), "task", t.ID.String())
}

// fireStop stops the handle bound to the task's pin. Nothing registered is
// not an error.
func (s *Scheduler) fireStop(t *Task) {
	h, ok := s.registry.Lookup(t.Pin)
	if !ok {
		s.logger.Debug("no player bound to pin", "pin", string(t.Pin))
		return
	}

	h.Stop()
	s.logger.Debug("stopped sound", "sound", t.Sound, "pin", string(t.Pin), "task", t.ID.String())
}

// Pending returns the number of tasks scheduled but not yet executed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// PendingTasks returns the scheduled tasks ordered by due time.
func (s *Scheduler) PendingTasks() []TaskInfo {
	s.mu.Lock()
	infos := make([]TaskInfo, 0, len(s.pending))
	for _, t := range s.pending {
		infos = append(infos, t.info())
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Due.Equal(infos[j].Due) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Due.Before(infos[j].Due)
	})
	return infos
}

// Registry returns the registry holding pinned handles.
func (s *Scheduler) Registry() *registry.Registry {
	return s.registry
}

// Quiet reports whether quiet hours are in effect right now.
func (s *Scheduler) Quiet() bool {
	return s.policy.IsQuiet()
}

// Close stops the event loop at process shutdown. Tasks that have not fired
// yet are dropped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, t := range s.pending {
		t.timer.Stop()
	}
	dropped := len(s.pending)
	s.pending = make(map[ulid.ULID]*Task)
	s.mu.Unlock()

	close(s.done)
	<-s.stopped

	s.logger.Debug("scheduler closed", "dropped_tasks", dropped)
}
