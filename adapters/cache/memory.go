package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/artpar/cmskit/core/capability"
)

// DefaultSweepInterval is how often the memory variant drops expired entries.
const DefaultSweepInterval = time.Minute

// Memory is an in-process cache. Expired entries are never returned and are
// removed by a background sweeper that Close stops.
type Memory struct {
	cfg Config

	mu   sync.RWMutex
	data map[string]memEntry

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates a memory cache and starts its sweeper. A non-positive
// interval uses DefaultSweepInterval.
func NewMemory(cfg Config, sweepEvery time.Duration) *Memory {
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{
		cfg:    cfg.withDefaults(),
		data:   make(map[string]memEntry),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.sweepLoop(ctx, sweepEvery)
	return m
}

func (m *Memory) Name() string { return VariantMemory }

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok || m.cfg.expired(e.expiresAt) {
		return nil, false
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(value) {
		return ErrInvalidValue
	}
	e := memEntry{value: append([]byte(nil), value...), expiresAt: m.cfg.expiry(ttl)}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeletePattern(ctx context.Context, pattern string) error {
	re := Glob(pattern)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if re.MatchString(k) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.data = make(map[string]memEntry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) IsEnabled() bool { return true }

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Sweep removes expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.data {
		if m.cfg.expired(e.expiresAt) {
			delete(m.data, k)
			n++
		}
	}
	return n
}

// Close stops the sweeper and waits for it to exit. Safe to call twice.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		<-m.done
	})
	return nil
}

func (m *Memory) sweepLoop(ctx context.Context, every time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

var _ capability.CacheProvider = (*Memory)(nil)
