// Package testing provides in-memory test doubles for all capability interfaces.
// These can be used in unit tests to avoid external dependencies.
//
// Usage:
//
//	billing := testing.NewMockBilling("hosted")
//	billing.SetActive("ctx-1", false)
//
//	// Run tests...
//
//	// Verify expectations
//	if billing.CheckoutCalls() != 1 { ... }
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/billing"
	"github.com/artpar/cmskit/domain/quota"
)

// =============================================================================
// Mock Context Provider
// =============================================================================

// MockContext grants every user their own context and tracks per-collection
// ownership in memory.
type MockContext struct {
	name string
	mu   sync.RWMutex

	owners   map[string]string // collectionID -> userID
	readOnly map[string]bool
	err      error
}

// NewMockContext creates a new mock context provider.
func NewMockContext(name string) *MockContext {
	return &MockContext{
		name:     name,
		owners:   make(map[string]string),
		readOnly: make(map[string]bool),
	}
}

func (m *MockContext) Name() string { return m.name }

func (m *MockContext) GetContext(ctx context.Context, userID string) (capability.OwnerContext, error) {
	if err := m.failure(); err != nil {
		return capability.OwnerContext{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	role := "owner"
	if m.readOnly[userID] {
		role = "viewer"
	}
	return capability.OwnerContext{ID: userID, UserID: userID, Role: role}, nil
}

func (m *MockContext) OwnedCollections(ctx context.Context, userID string) ([]string, error) {
	if err := m.failure(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, owner := range m.owners {
		if owner == userID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockContext) CanCreate(ctx context.Context, userID string) (bool, error) {
	if err := m.failure(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.readOnly[userID], nil
}

func (m *MockContext) CanEdit(ctx context.Context, userID, collectionID string) (bool, error) {
	if err := m.failure(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owners[collectionID] == userID && !m.readOnly[userID], nil
}

func (m *MockContext) CanDelete(ctx context.Context, userID, collectionID string) (bool, error) {
	return m.CanEdit(ctx, userID, collectionID)
}

// SetOwner records userID as the owner of collectionID.
func (m *MockContext) SetOwner(collectionID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[collectionID] = userID
}

// SetReadOnly makes a user a viewer of their context.
func (m *MockContext) SetReadOnly(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly[userID] = true
}

// SetError makes every call fail with err.
func (m *MockContext) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockContext) failure() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// =============================================================================
// Mock Billing Provider
// =============================================================================

// MockBilling is an in-memory billing provider. Contexts are active unless
// marked otherwise.
type MockBilling struct {
	name string
	mu   sync.RWMutex

	inactive      map[string]bool
	checkoutCalls int
	webhooks      [][]byte
	checkoutErr   error
}

// NewMockBilling creates a new mock billing provider.
func NewMockBilling(name string) *MockBilling {
	return &MockBilling{name: name, inactive: make(map[string]bool)}
}

func (m *MockBilling) Name() string { return m.name }

func (m *MockBilling) HasActiveSubscription(ctx context.Context, contextID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.inactive[contextID], nil
}

func (m *MockBilling) GetSubscription(ctx context.Context, contextID string) (billing.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := billing.Unlimited(contextID)
	if m.inactive[contextID] {
		s.Status = billing.SubscriptionStatusCancelled
	}
	return s, nil
}

func (m *MockBilling) CreateCheckoutURL(ctx context.Context, req billing.CheckoutRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkoutCalls++
	if m.checkoutErr != nil {
		return "", m.checkoutErr
	}
	return fmt.Sprintf("https://checkout.mock.test/%s/%s", req.ContextID, req.PlanID), nil
}

func (m *MockBilling) HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, payload)
	return billing.WebhookEvent{ID: fmt.Sprintf("evt_mock_%d", len(m.webhooks)), Type: "test.event"}, nil
}

// SetActive marks a context as subscribed or not.
func (m *MockBilling) SetActive(contextID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inactive[contextID] = !active
}

// SetCheckoutError makes CreateCheckoutURL fail.
func (m *MockBilling) SetCheckoutError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkoutErr = err
}

// CheckoutCalls returns the number of checkout requests.
func (m *MockBilling) CheckoutCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkoutCalls
}

// Webhooks returns the received webhook payloads.
func (m *MockBilling) Webhooks() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]byte(nil), m.webhooks...)
}

// =============================================================================
// Mock Cache Provider
// =============================================================================

// MockCache is an in-memory cache with call tracking and error injection.
type MockCache struct {
	name string
	mu   sync.RWMutex

	data     map[string]cacheEntry
	closed   bool
	gets     int
	hits     int
	patterns []string
	setErr   error
	delErr   error
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMockCache creates a new mock cache provider.
func NewMockCache(name string) *MockCache {
	return &MockCache{name: name, data: make(map[string]cacheEntry)}
}

func (m *MockCache) Name() string { return m.name }

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	e, ok := m.data[key]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		return nil, false
	}
	m.hits++
	return append([]byte(nil), e.value...), true
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	e := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, key)
	return nil
}

func (m *MockCache) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, pattern)
	if m.delErr != nil {
		return m.delErr
	}
	re := regexp.MustCompile("^" + strings.NewReplacer(`\*`, ".*", `\?`, ".").Replace(regexp.QuoteMeta(pattern)) + "$")
	for k := range m.data {
		if re.MatchString(k) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MockCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]cacheEntry)
	return nil
}

func (m *MockCache) IsEnabled() bool { return true }

func (m *MockCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Keys returns all stored keys, sorted.
func (m *MockCache) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Hits returns the number of successful reads.
func (m *MockCache) Hits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits
}

// Patterns returns every pattern passed to DeletePattern.
func (m *MockCache) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.patterns...)
}

// Closed reports whether Close was called.
func (m *MockCache) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// SetWriteError makes Set fail with err.
func (m *MockCache) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

// SetDeleteError makes Delete and DeletePattern fail with err.
func (m *MockCache) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delErr = err
}

// =============================================================================
// Mock Media Provider
// =============================================================================

// MockMedia stores uploads in memory and enforces an optional byte limit.
type MockMedia struct {
	name string
	mu   sync.RWMutex

	objects   map[string]mockObject
	limit     int64
	uploadErr error
	deletes   []string
}

type mockObject struct {
	contextID string
	data      []byte
}

// NewMockMedia creates a new mock media provider with no limit.
func NewMockMedia(name string) *MockMedia {
	return &MockMedia{name: name, objects: make(map[string]mockObject), limit: quota.Unlimited}
}

func (m *MockMedia) Name() string { return m.name }

func (m *MockMedia) Upload(ctx context.Context, req capability.UploadRequest) (capability.UploadResult, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return capability.UploadResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return capability.UploadResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return capability.UploadResult{}, m.uploadErr
	}
	used := m.usedLocked(req.ContextID)
	if check := quota.Check(used, quota.Config{StorageBytes: m.limit}, int64(len(data))); !check.Allowed {
		return capability.UploadResult{}, capability.ErrQuotaExceeded
	}
	key := fmt.Sprintf("%s/%d-%s", req.ContextID, len(m.objects)+1, req.Filename)
	m.objects[key] = mockObject{contextID: req.ContextID, data: data}
	return capability.UploadResult{Key: key, URL: "https://media.mock.test/" + key, Size: int64(len(data))}, nil
}

func (m *MockMedia) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	delete(m.objects, key)
	return nil
}

func (m *MockMedia) Usage(ctx context.Context, contextID string) (quota.Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return quota.UsageOf(m.usedLocked(contextID), quota.Config{StorageBytes: m.limit}), nil
}

func (m *MockMedia) usedLocked(contextID string) int64 {
	var n int64
	for _, o := range m.objects {
		if o.contextID == contextID {
			n += int64(len(o.data))
		}
	}
	return n
}

// SetLimit caps storage per context, in bytes.
func (m *MockMedia) SetLimit(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = bytes
}

// SetUploadError makes Upload fail with err.
func (m *MockMedia) SetUploadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErr = err
}

// ObjectCount returns the number of stored objects.
func (m *MockMedia) ObjectCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Deletes returns every key passed to Delete.
func (m *MockMedia) Deletes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.deletes...)
}

// =============================================================================
// Mock Analytics Provider
// =============================================================================

// MockAnalytics records tracked events.
type MockAnalytics struct {
	name string
	mu   sync.RWMutex

	events  []capability.Event
	flushes int
}

// NewMockAnalytics creates a new mock analytics provider.
func NewMockAnalytics(name string) *MockAnalytics {
	return &MockAnalytics{name: name}
}

func (m *MockAnalytics) Name() string { return m.name }

func (m *MockAnalytics) Track(ctx context.Context, ev capability.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *MockAnalytics) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Events returns the tracked events.
func (m *MockAnalytics) Events() []capability.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]capability.Event(nil), m.events...)
}

// EventNames returns the names of the tracked events in order.
func (m *MockAnalytics) EventNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.events))
	for i, e := range m.events {
		names[i] = e.Name
	}
	return names
}

// Flushes returns the number of Flush calls.
func (m *MockAnalytics) Flushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// =============================================================================
// Mock Video Provider
// =============================================================================

// MockVideo accepts uploads when enabled.
type MockVideo struct {
	name    string
	enabled bool
	mu      sync.Mutex
	uploads int
	stored  map[string]bool
}

// NewMockVideo creates a new mock video provider.
func NewMockVideo(name string, enabled bool) *MockVideo {
	return &MockVideo{name: name, enabled: enabled, stored: make(map[string]bool)}
}

func (m *MockVideo) Name() string  { return m.name }
func (m *MockVideo) Enabled() bool { return m.enabled }

func (m *MockVideo) Upload(ctx context.Context, req capability.UploadRequest) (capability.VideoResult, error) {
	if !m.enabled {
		return capability.VideoResult{}, capability.ErrNotAvailableInMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	id := fmt.Sprintf("vid_%d", m.uploads)
	m.stored[id] = true
	return capability.VideoResult{ID: id, Status: "processing"}, nil
}

func (m *MockVideo) Delete(ctx context.Context, id string) error {
	if !m.enabled {
		return capability.ErrNotAvailableInMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stored, id)
	return nil
}

// VideoCount returns the number of stored videos.
func (m *MockVideo) VideoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

// =============================================================================
// Failing constructors
// =============================================================================

// ErrUnreachable is returned by Unreachable.
var ErrUnreachable = errors.New("backend unreachable")

// Unreachable returns a constructor that always fails, standing in for a
// hosted backend that cannot be reached at start.
func Unreachable[T any]() func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		var zero T
		return zero, ErrUnreachable
	}
}

// Ready returns a constructor that always succeeds with impl.
func Ready[T any](impl T) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		return impl, nil
	}
}

// Compile-time interface checks.
var (
	_ capability.ContextProvider   = (*MockContext)(nil)
	_ capability.BillingProvider   = (*MockBilling)(nil)
	_ capability.CacheProvider     = (*MockCache)(nil)
	_ capability.MediaProvider     = (*MockMedia)(nil)
	_ capability.AnalyticsProvider = (*MockAnalytics)(nil)
	_ capability.VideoProvider     = (*MockVideo)(nil)
)
