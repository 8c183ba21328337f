package audio

import (
	"context"
	"log/slog"
)

// Manager owns the player and the sounds directory watcher for one
// configured sounds directory.
type Manager struct {
	logger  *slog.Logger
	player  *Player
	watcher *Watcher
	dir     string
}

// NewManager creates a new audio manager for dir. volume is 0-100.
func NewManager(dir string, volume int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	player := NewPlayer(logger)
	player.SetVolume(float64(volume) / 100.0)

	return &Manager{
		logger:  logger,
		player:  player,
		watcher: NewWatcher(dir, player, logger),
		dir:     dir,
	}
}

// Start starts the sounds directory watcher. A directory that cannot be
// watched only disables cache invalidation, so the error is logged rather
// than returned.
func (m *Manager) Start(ctx context.Context) {
	if err := m.watcher.Start(ctx); err != nil {
		m.logger.Warn("sounds watcher disabled, cached sounds will not be refreshed", "dir", m.dir, "error", err)
		return
	}
	m.logger.Info("audio manager started", "dir", m.dir, "volume", m.player.GetVolume())
}

// Stop shuts down the audio manager.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// NewHandle creates a playback handle for the sound file at path.
func (m *Manager) NewHandle(path string) (Handle, error) {
	return m.player.NewHandle(path)
}

// Preload decodes the sound file at path ahead of its first playback.
func (m *Manager) Preload(path string) {
	if err := m.player.Preload(path); err != nil {
		m.logger.Warn("failed to preload sound", "path", path, "error", err)
	}
}
