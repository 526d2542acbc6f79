package capability

import (
	"context"
	"sync"
)

// Lazy builds the process providers on first access and returns the same
// result, or the same error, on every later call.
type Lazy struct {
	once  sync.Once
	build func(context.Context) (*Providers, error)
	p     *Providers
	err   error
}

// NewLazy wraps a provider constructor, typically a closure over Select.
func NewLazy(build func(context.Context) (*Providers, error)) *Lazy {
	return &Lazy{build: build}
}

// Get returns the providers, building them on the first call.
func (l *Lazy) Get(ctx context.Context) (*Providers, error) {
	l.once.Do(func() {
		l.p, l.err = l.build(ctx)
	})
	return l.p, l.err
}

// Close releases the providers if they were built.
func (l *Lazy) Close() error {
	l.once.Do(func() {})
	if l.p == nil {
		return nil
	}
	return l.p.Close()
}
