package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the sounds directory and invalidates cached sounds when
// their files change or disappear.
type Watcher struct {
	mu      sync.Mutex
	logger  *slog.Logger
	player  *Player
	dir     string
	watcher *fsnotify.Watcher

	done    chan struct{}
	stopped chan struct{}
	running bool
}

// NewWatcher creates a new sounds directory watcher.
func NewWatcher(dir string, player *Player, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		logger: logger,
		player: player,
		dir:    dir,
	}
}

// Start begins watching the sounds directory.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create sounds watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch sounds directory: %w", err)
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.stopped = make(chan struct{})
	w.running = true

	go w.watchLoop(ctx, watcher, w.done, w.stopped)

	w.logger.Debug("sounds watcher started", "dir", w.dir)
	return nil
}

// Stop stops watching the sounds directory.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	stopped := w.stopped
	watcher := w.watcher
	w.mu.Unlock()

	<-stopped
	_ = watcher.Close()
	w.logger.Debug("sounds watcher stopped")
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// watchLoop is the main watch loop.
func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done, stopped chan struct{}) {
	defer close(stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("sounds watcher error", "error", err)
		}
	}
}

// handleEvent drops the cached decode of any file that was rewritten,
// replaced or removed.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	if w.player != nil && w.player.Cached(event.Name) {
		w.logger.Debug("sound file changed, invalidating cache", "path", event.Name, "op", event.Op.String())
		w.player.InvalidateCache(event.Name)
	}
}
