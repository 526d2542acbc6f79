package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Container holds the registered providers of every capability and gives
// type-safe access to them.
//
// Usage:
//
//	container := capability.NewContainer()
//	container.RegisterCache("redis", redisCache, true)
//	cache, _ := container.Cache()
type Container struct {
	mu       sync.Mutex
	registry *Registry
	resolver *Resolver

	// Lifecycle management, run in reverse registration order
	closers []func() error
}

// NewContainer creates a new capability container.
func NewContainer() *Container {
	registry := NewRegistry()
	return &Container{
		registry: registry,
		resolver: NewResolver(registry),
	}
}

// Registry returns the underlying registry.
func (c *Container) Registry() *Registry {
	return c.registry
}

// Resolver returns the underlying resolver.
func (c *Container) Resolver() *Resolver {
	return c.resolver
}

// =============================================================================
// Provider Registration
// =============================================================================

// qualifiedName creates a unique registry name from capability and variant.
func qualifiedName(cap Type, variant string) string {
	return fmt.Sprintf("%s:%s", cap, variant)
}

func (c *Container) register(cap Type, variant string, impl any, isDefault, fallback bool, closer func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	qname := qualifiedName(cap, variant)
	info := ProviderInfo{
		Name:       qname,
		Variant:    variant,
		Capability: cap,
		Enabled:    true,
		IsDefault:  isDefault,
		Fallback:   fallback,
	}
	if err := c.registry.Register(info); err != nil {
		return err
	}
	if isDefault {
		if err := c.registry.SetDefault(qname); err != nil {
			return err
		}
	}

	c.resolver.RegisterImplementation(qname, impl)
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	return nil
}

// RegisterContext registers a context provider.
func (c *Container) RegisterContext(variant string, p ContextProvider, isDefault bool) error {
	return c.register(Context, variant, p, isDefault, false, nil)
}

// RegisterBilling registers a billing provider.
func (c *Container) RegisterBilling(variant string, p BillingProvider, isDefault bool) error {
	return c.register(Billing, variant, p, isDefault, false, nil)
}

// RegisterAnalytics registers an analytics provider. On Close it is closed
// when it implements io.Closer and flushed otherwise.
func (c *Container) RegisterAnalytics(variant string, p AnalyticsProvider, isDefault bool) error {
	closer := func() error { return p.Flush(context.Background()) }
	if cl, ok := p.(io.Closer); ok {
		closer = cl.Close
	}
	return c.register(Analytics, variant, p, isDefault, false, closer)
}

// RegisterMedia registers a media provider.
func (c *Container) RegisterMedia(variant string, p MediaProvider, isDefault bool) error {
	return c.register(Media, variant, p, isDefault, false, nil)
}

// RegisterCache registers a cache provider. It is closed on Close.
func (c *Container) RegisterCache(variant string, p CacheProvider, isDefault bool) error {
	return c.register(Cache, variant, p, isDefault, false, p.Close)
}

// RegisterVideo registers a video provider.
func (c *Container) RegisterVideo(variant string, p VideoProvider, isDefault bool) error {
	return c.register(Video, variant, p, isDefault, false, nil)
}

// markFallback flags a registered provider as a fallback selection.
func (c *Container) markFallback(cap Type, variant string) {
	c.registry.mu.Lock()
	defer c.registry.mu.Unlock()
	name := qualifiedName(cap, variant)
	if info, ok := c.registry.providers[name]; ok {
		info.Fallback = true
		c.registry.providers[name] = info
	}
}

// =============================================================================
// Provider Access (delegated to Resolver)
// =============================================================================

// Context returns the default context provider.
func (c *Container) Context() (ContextProvider, error) {
	return resolve[ContextProvider](c.resolver, Context)
}

// Billing returns the default billing provider.
func (c *Container) Billing() (BillingProvider, error) {
	return resolve[BillingProvider](c.resolver, Billing)
}

// Analytics returns the default analytics provider.
func (c *Container) Analytics() (AnalyticsProvider, error) {
	return resolve[AnalyticsProvider](c.resolver, Analytics)
}

// Media returns the default media provider.
func (c *Container) Media() (MediaProvider, error) {
	return resolve[MediaProvider](c.resolver, Media)
}

// Cache returns the default cache provider.
func (c *Container) Cache() (CacheProvider, error) {
	return resolve[CacheProvider](c.resolver, Cache)
}

// Video returns the default video provider.
func (c *Container) Video() (VideoProvider, error) {
	return resolve[VideoProvider](c.resolver, Video)
}

// =============================================================================
// Lifecycle
// =============================================================================

// Close releases all resources held by providers, last registered first.
func (c *Container) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing providers: %w", errors.Join(errs...))
	}
	return nil
}

// =============================================================================
// Capability Info
// =============================================================================

// ListCapabilities returns all registered capability types.
func (c *Container) ListCapabilities() []Type {
	return c.registry.ListCapabilities()
}

// ListProviders returns all registered providers.
func (c *Container) ListProviders() []ProviderInfo {
	return c.registry.All()
}

// HasCapability checks if a capability has any providers registered.
func (c *Container) HasCapability(cap Type) bool {
	return c.registry.HasCapability(cap)
}
