package forum

import (
	"fmt"
	"sync"
)

// Factory creates a new, unconnected Forum instance.
type Factory func() Forum

// Registry maps driver names to factories. Driver packages are registered
// explicitly at startup, so only the dialects the build wires in are
// available.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterDriver registers a factory for a driver name.
func (r *Registry) RegisterDriver(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// Open creates a Forum for cfg.Driver and connects it.
func (r *Registry) Open(cfg ConnConfig) (Forum, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported forum driver: %s (available: %v)", cfg.Driver, r.Drivers())
	}

	f := factory()
	if err := f.Connect(cfg); err != nil {
		return nil, fmt.Errorf("connect forum database: %w", err)
	}
	return f, nil
}

// Drivers returns the registered driver names.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drivers := make([]string, 0, len(r.factories))
	for d := range r.factories {
		drivers = append(drivers, d)
	}
	return drivers
}
