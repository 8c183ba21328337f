package config

import "sync"

// Holder keeps the process configuration. The first configuration stored
// wins; every later Set is ignored.
type Holder struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewHolder creates an empty Holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Set stores cfg if no configuration has been stored yet.
// Returns false when a configuration was already present or cfg is nil.
func (h *Holder) Set(cfg *Config) bool {
	if cfg == nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cfg != nil {
		return false
	}
	h.cfg = cfg
	return true
}

// Get returns the frozen configuration, or nil if none has been set.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Loaded reports whether a configuration has been stored.
func (h *Holder) Loaded() bool {
	return h.Get() != nil
}
