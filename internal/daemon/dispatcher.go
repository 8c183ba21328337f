package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/soundpin/internal/audio"
	"github.com/jmylchreest/soundpin/internal/catalog"
	"github.com/jmylchreest/soundpin/internal/config"
	"github.com/jmylchreest/soundpin/internal/logging"
	"github.com/jmylchreest/soundpin/internal/model"
	"github.com/jmylchreest/soundpin/internal/scheduler"
)

// AudioBackend creates playback handles and is stopped on shutdown.
type AudioBackend interface {
	scheduler.HandleFactory
	Stop()
}

// BackendFunc builds the audio backend for a frozen configuration.
type BackendFunc func(ctx context.Context, cfg *config.Config) AudioBackend

// Status is a snapshot of the dispatcher's state.
type Status struct {
	Configured   bool                 `json:"configured" yaml:"configured"`
	Quiet        bool                 `json:"quiet" yaml:"quiet"`
	QuietWindow  string               `json:"quiet_window,omitempty" yaml:"quiet_window,omitempty"`
	DefaultDelay config.Duration      `json:"default_delay" yaml:"default_delay"`
	SoundsDir    string               `json:"sounds_dir,omitempty" yaml:"sounds_dir,omitempty"`
	Debug        bool                 `json:"debug" yaml:"debug"`
	Pins         []string             `json:"pins" yaml:"pins"`
	Pending      []scheduler.TaskInfo `json:"pending" yaml:"pending"`
}

// DispatcherOptions configure a Dispatcher.
type DispatcherOptions struct {
	Logs    *logging.Logger
	Clock   clockwork.Clock
	Backend BackendFunc
	// OnConfigured is called once, after the first configuration is applied.
	OnConfigured func(cfg *config.Config)
}

// Dispatcher routes CONFIG, PLAY_SOUND and STOP_SOUND notifications to the
// playback scheduler. The scheduler is built from the first configuration
// delivered; later configurations are ignored.
type Dispatcher struct {
	ctx     context.Context
	logs    *logging.Logger
	logger  *slog.Logger
	clock   clockwork.Clock
	backend BackendFunc
	holder  *config.Holder

	onConfigured func(cfg *config.Config)

	mu      sync.RWMutex
	sched   *scheduler.Scheduler
	audio   AudioBackend
	started bool
	closed  bool
}

// NewDispatcher creates a Dispatcher that has not been configured yet.
func NewDispatcher(ctx context.Context, opts DispatcherOptions) *Dispatcher {
	if opts.Logs == nil {
		opts.Logs = logging.New(nil)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	d := &Dispatcher{
		ctx:     ctx,
		logs:    opts.Logs,
		logger:  opts.Logs.Component("dispatcher"),
		clock:   opts.Clock,
		backend: opts.Backend,
		holder:  config.NewHolder(),

		onConfigured: opts.OnConfigured,
	}
	if d.backend == nil {
		d.backend = d.defaultBackend
	}
	return d
}

// defaultBackend plays through the beep speaker.
func (d *Dispatcher) defaultBackend(ctx context.Context, cfg *config.Config) AudioBackend {
	m := audio.NewManager(cfg.SoundsDir, cfg.Volume, d.logs.Component("audio"))
	m.Start(ctx)
	if path, ok := catalog.New(cfg.SoundsDir).Resolve(cfg.StartupSound); ok {
		m.Preload(path)
	}
	return m
}

// Receive handles a raw notification by name. Unknown notifications are
// ignored.
func (d *Dispatcher) Receive(notification string, payload []byte) {
	switch notification {
	case model.NotificationConfig:
		cfg, err := config.ParseJSON(payload)
		if err != nil {
			d.logger.Warn("could not apply config", "error", err)
			return
		}
		d.Configure(cfg)
	case model.NotificationPlay:
		d.PlayPayload(payload)
	case model.NotificationStop:
		d.StopPayload(payload)
	default:
		d.logger.Debug("ignoring notification", "notification", notification)
	}
}

// Configure freezes cfg as the process configuration if none is set yet,
// builds the scheduler, and plays the startup sound. Returns false if a
// configuration was already loaded.
func (d *Dispatcher) Configure(cfg *config.Config) bool {
	if !d.holder.Set(cfg) {
		d.logger.Debug("config already loaded, ignoring")
		return false
	}

	d.logs.SetDebug(cfg.Debug)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return true
	}
	d.audio = d.backend(d.ctx, cfg)
	d.sched = scheduler.New(scheduler.Options{
		Config:  cfg,
		Factory: d.audio,
		Clock:   d.clock,
		Logger:  d.logs.Component("scheduler"),
	})
	d.started = true
	sched := d.sched
	d.mu.Unlock()

	d.logger.Info("config loaded",
		"sounds_dir", cfg.SoundsDir,
		"quiet", cfg.Quiet.String(),
		"default_delay", cfg.DefaultDelay.Duration(),
		"debug", cfg.Debug,
	)

	if cfg.StartupSound != "" {
		sched.RequestPlay(model.PlayRequest{Sound: cfg.StartupSound})
	}
	if d.onConfigured != nil {
		d.onConfigured(cfg)
	}
	return true
}

// PlayPayload decodes a PLAY_SOUND payload and requests playback.
func (d *Dispatcher) PlayPayload(payload []byte) {
	req, err := model.DecodePlay(payload)
	if err != nil {
		d.logger.Warn("could not play sound", "error", err)
		return
	}
	d.Play(req)
}

// StopPayload decodes a STOP_SOUND payload and requests a stop.
func (d *Dispatcher) StopPayload(payload []byte) {
	req, err := model.DecodeStop(payload)
	if err != nil {
		if errors.Is(err, model.ErrMissingPin) {
			// The scheduler logs the missing pin itself.
			d.Stop(req)
			return
		}
		d.logger.Warn("could not stop sound", "error", err)
		return
	}
	d.Stop(req)
}

// Play requests playback of req.
func (d *Dispatcher) Play(req model.PlayRequest) {
	sched := d.scheduler()
	if sched == nil {
		d.logger.Warn("not configured yet, dropping play request", "sound", req.Sound)
		return
	}
	sched.RequestPlay(req)
}

// Stop requests that the playback bound to req.Pin be stopped.
func (d *Dispatcher) Stop(req model.StopRequest) {
	sched := d.scheduler()
	if sched == nil {
		d.logger.Warn("not configured yet, dropping stop request", "sound", req.Sound)
		return
	}
	sched.RequestStop(req)
}

// Config returns the frozen configuration, or nil before the first CONFIG.
func (d *Dispatcher) Config() *config.Config {
	return d.holder.Get()
}

// Status returns a snapshot of the dispatcher's state.
func (d *Dispatcher) Status() Status {
	cfg := d.holder.Get()
	sched := d.scheduler()

	status := Status{
		Configured: cfg != nil,
		Pins:       []string{},
		Pending:    []scheduler.TaskInfo{},
	}
	if cfg == nil || sched == nil {
		return status
	}

	status.QuietWindow = cfg.Quiet.String()
	status.DefaultDelay = cfg.DefaultDelay
	status.SoundsDir = cfg.SoundsDir
	status.Debug = cfg.Debug
	status.Quiet = sched.Quiet()
	status.Pending = sched.PendingTasks()
	for _, pin := range sched.Registry().Pins() {
		status.Pins = append(status.Pins, string(pin))
	}
	return status
}

// StatusJSON returns Status encoded as JSON.
func (d *Dispatcher) StatusJSON() (string, error) {
	data, err := json.Marshal(d.Status())
	if err != nil {
		return "", fmt.Errorf("failed to encode status: %w", err)
	}
	return string(data), nil
}

// Close stops the scheduler and the audio backend.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	sched := d.sched
	backend := d.audio
	d.mu.Unlock()

	if sched != nil {
		sched.Close()
	}
	if backend != nil {
		backend.Stop()
	}
	d.logger.Debug("dispatcher closed")
}

func (d *Dispatcher) scheduler() *scheduler.Scheduler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || !d.started {
		return nil
	}
	return d.sched
}
