package capability

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks which variants are registered for each capability and
// which one is the default. Thread-safe for concurrent access.
type Registry struct {
	mu sync.RWMutex

	// providers maps instance name -> ProviderInfo
	providers map[string]ProviderInfo

	// byCapability maps capability type -> provider names in registration order
	byCapability map[Type][]string
}

// NewRegistry creates a new capability registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:    make(map[string]ProviderInfo),
		byCapability: make(map[Type][]string),
	}
}

// Register adds a provider to the registry.
// Returns error if a provider with the same name already exists.
func (r *Registry) Register(info ProviderInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[info.Name]; exists {
		return fmt.Errorf("provider %q already registered", info.Name)
	}

	r.providers[info.Name] = info
	r.byCapability[info.Capability] = append(r.byCapability[info.Capability], info.Name)
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (ProviderInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.providers[name]
	return info, ok
}

// GetByCapability returns all providers that implement a capability.
func (r *Registry) GetByCapability(cap Type) []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.byCapability[cap]
	result := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		if info, ok := r.providers[name]; ok {
			result = append(result, info)
		}
	}
	return result
}

// GetDefault returns the default provider for a capability.
// If no default is set, returns the first enabled provider.
func (r *Registry) GetDefault(cap Type) (ProviderInfo, bool) {
	providers := r.GetByCapability(cap)

	for _, p := range providers {
		if p.IsDefault && p.Enabled {
			return p, true
		}
	}
	for _, p := range providers {
		if p.Enabled {
			return p, true
		}
	}
	return ProviderInfo{}, false
}

// SetDefault sets a provider as the default for its capability.
// Clears the default flag from other providers of the same capability.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.providers[name]
	if !ok {
		return fmt.Errorf("provider %q not found", name)
	}

	for _, pName := range r.byCapability[info.Capability] {
		p := r.providers[pName]
		p.IsDefault = false
		r.providers[pName] = p
	}

	info.IsDefault = true
	r.providers[name] = info
	return nil
}

// ListCapabilities returns every capability with at least one provider, sorted.
func (r *Registry) ListCapabilities() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Type, 0, len(r.byCapability))
	for cap, names := range r.byCapability {
		if len(names) > 0 {
			result = append(result, cap)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// All returns all registered providers sorted by name.
func (r *Registry) All() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ProviderInfo, 0, len(r.providers))
	for _, info := range r.providers {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// HasCapability checks if any provider implements a capability.
func (r *Registry) HasCapability(cap Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCapability[cap]) > 0
}
