package capability

import (
	"fmt"
	"sync"
)

// Resolver provides type-safe access to provider implementations.
// It bridges the registry (metadata) with the instances.
//
// Usage:
//
//	resolver := capability.NewResolver(registry)
//	resolver.RegisterImplementation("cache:redis", redisCache)
//	cache, _ := resolve[CacheProvider](resolver, Cache)
type Resolver struct {
	registry        *Registry
	implementations sync.Map // name -> implementation
}

// NewResolver creates a new resolver for the given registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// RegisterImplementation associates an implementation with a provider name.
func (r *Resolver) RegisterImplementation(name string, impl any) {
	r.implementations.Store(name, impl)
}

// resolve returns the default provider of a capability as T.
func resolve[T any](r *Resolver, cap Type) (T, error) {
	var zero T
	info, ok := r.registry.GetDefault(cap)
	if !ok {
		return zero, fmt.Errorf("no enabled %s provider: %w", cap, ErrProviderUnavailable)
	}
	return resolveNamed[T](r, cap, info.Name)
}

// resolveNamed returns a specific provider of a capability as T.
func resolveNamed[T any](r *Resolver, cap Type, name string) (T, error) {
	var zero T
	info, ok := r.registry.Get(name)
	if !ok {
		return zero, fmt.Errorf("%s provider %q not found: %w", cap, name, ErrProviderUnavailable)
	}
	if info.Capability != cap {
		return zero, fmt.Errorf("provider %q is not a %s provider", name, cap)
	}
	impl, ok := r.implementations.Load(name)
	if !ok {
		return zero, fmt.Errorf("%s provider %q implementation not registered: %w", cap, name, ErrProviderUnavailable)
	}
	provider, ok := impl.(T)
	if !ok {
		return zero, fmt.Errorf("provider %q does not implement the %s contract", name, cap)
	}
	return provider, nil
}
