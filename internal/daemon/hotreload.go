package daemon

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/soundpin/internal/config"
)

// ConfigWatcher polls the daemon config file and delivers each valid
// version to a callback. soundpind uses it with --wait-config to pick up
// the first configuration written after startup; the dispatcher ignores
// every delivery after the first.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger
	clock  clockwork.Clock

	// Path to watch
	configPath string

	// Last known modification time
	lastModTime time.Time

	// Polling interval
	pollInterval time.Duration

	// Callbacks
	onLoadCallback  func(cfg *config.Config)
	onErrorCallback func(err error)

	// Control channels
	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewConfigWatcher creates a new ConfigWatcher for the config file at path.
// If path is empty, the default config path is used.
func NewConfigWatcher(path string, clock clockwork.Clock, logger *slog.Logger) (*ConfigWatcher, error) {
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			return nil, err
		}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigWatcher{
		logger:       logger,
		clock:        clock,
		configPath:   path,
		pollInterval: 1 * time.Second,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Path returns the watched config file path.
func (w *ConfigWatcher) Path() string {
	return w.configPath
}

// SetPollInterval sets the polling interval for file changes.
func (w *ConfigWatcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollInterval = interval
}

// SetLoadCallback sets the callback invoked with each valid config.
func (w *ConfigWatcher) SetLoadCallback(callback func(cfg *config.Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onLoadCallback = callback
}

// SetErrorCallback sets the callback invoked when a changed file fails to parse.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins watching the config file. A file that already exists is
// treated as unchanged until it is modified again.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true

	if info, err := os.Stat(w.configPath); err == nil {
		w.lastModTime = info.ModTime()
	}

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	interval := w.pollInterval
	w.mu.Unlock()

	go w.watchLoop(ctx, interval)

	w.logger.Debug("config watcher started", "path", w.configPath, "interval", interval)
	return nil
}

// Stop stops watching the config file.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh
	w.logger.Debug("config watcher stopped")
}

// watchLoop is the main polling loop.
func (w *ConfigWatcher) watchLoop(ctx context.Context, interval time.Duration) {
	defer close(w.doneCh)

	ticker := w.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.Chan():
			w.checkForChanges()
		}
	}
}

// checkForChanges loads the config file if it has been modified.
func (w *ConfigWatcher) checkForChanges() {
	w.mu.RLock()
	loadCallback := w.onLoadCallback
	errorCallback := w.onErrorCallback
	lastModTime := w.lastModTime
	w.mu.RUnlock()

	info, err := os.Stat(w.configPath)
	if err != nil {
		// File might not exist yet
		if !os.IsNotExist(err) {
			w.logger.Debug("failed to stat config file", "path", w.configPath, "error", err)
		}
		return
	}

	modTime := info.ModTime()
	if !modTime.After(lastModTime) {
		return
	}

	w.mu.Lock()
	w.lastModTime = modTime
	w.mu.Unlock()

	w.logger.Debug("config file changed", "path", w.configPath, "modTime", modTime)

	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		w.logger.Warn("config file changed but validation failed", "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return
	}

	if loadCallback != nil {
		loadCallback(cfg)
	}
}
