package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// =====================================================
// ADAPTER REGISTRY
// =====================================================

// Registry maps gateway type -> adapter. Registration happens once at
// startup; lookups are concurrent.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Duplicate registration is a programming
// error and fails loudly.
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := adapter.Type()
	if _, exists := r.adapters[t]; exists {
		return fmt.Errorf("gateway adapter %q already registered", t)
	}
	r.adapters[t] = adapter
	return nil
}

// Get returns the adapter for a gateway type.
func (r *Registry) Get(gatewayType string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[gatewayType]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for gateway %q", gatewayType)
	}
	return adapter, nil
}

// Types lists registered gateway types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
