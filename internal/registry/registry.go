// Package registry binds playback handles to pins so they can be stopped later.
package registry

import (
	"sort"
	"sync"

	"github.com/jmylchreest/soundpin/internal/audio"
	"github.com/jmylchreest/soundpin/internal/model"
)

// Registry maps a pin to at most one playback handle.
// Unpinned playbacks never enter the registry.
type Registry struct {
	mu      sync.Mutex
	handles map[model.Pin]audio.Handle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		handles: make(map[model.Pin]audio.Handle),
	}
}

// Register stores h under pin. Any handle previously stored under pin is
// discarded without being stopped, so a pinned sound that is re-played
// before it is stopped keeps playing and can no longer be reached.
// Returns true if a previous handle was replaced. Empty pins are ignored.
func (r *Registry) Register(pin model.Pin, h audio.Handle) bool {
	if pin.Empty() || h == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.handles[pin]
	r.handles[pin] = h
	return replaced
}

// Lookup returns the handle registered under pin.
func (r *Registry) Lookup(pin model.Pin) (audio.Handle, bool) {
	if pin.Empty() {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[pin]
	return h, ok
}

// Len returns the number of registered pins.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Pins returns the registered pins in sorted order.
func (r *Registry) Pins() []model.Pin {
	r.mu.Lock()
	pins := make([]model.Pin, 0, len(r.handles))
	for pin := range r.handles {
		pins = append(pins, pin)
	}
	r.mu.Unlock()

	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}
