package capability

import (
	"context"
	"io"
	"time"

	"github.com/artpar/cmskit/domain/billing"
	"github.com/artpar/cmskit/domain/quota"
)

// =============================================================================
// Context Capability
// =============================================================================

// OwnerContext is the tenant a user acts within. In self-hosted mode every
// user is their own context.
type OwnerContext struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Shared bool   `json:"shared"`
}

// ContextProvider resolves ownership and permissions.
type ContextProvider interface {
	// Name returns the variant name.
	Name() string

	// GetContext returns the context a user acts within.
	GetContext(ctx context.Context, userID string) (OwnerContext, error)

	// OwnedCollections returns the IDs of the collections a user can see.
	OwnedCollections(ctx context.Context, userID string) ([]string, error)

	// CanCreate reports whether a user may create collections.
	CanCreate(ctx context.Context, userID string) (bool, error)

	// CanEdit reports whether a user may change a collection and its items.
	CanEdit(ctx context.Context, userID, collectionID string) (bool, error)

	// CanDelete reports whether a user may delete a collection.
	CanDelete(ctx context.Context, userID, collectionID string) (bool, error)
}

// =============================================================================
// Billing Capability
// =============================================================================

// BillingProvider reports and changes subscription state.
type BillingProvider interface {
	// Name returns the variant name.
	Name() string

	// HasActiveSubscription reports whether a context may use paid features.
	HasActiveSubscription(ctx context.Context, contextID string) (bool, error)

	// GetSubscription returns the subscription of a context.
	GetSubscription(ctx context.Context, contextID string) (billing.Subscription, error)

	// CreateCheckoutURL returns a hosted checkout page URL.
	CreateCheckoutURL(ctx context.Context, req billing.CheckoutRequest) (string, error)

	// HandleWebhook verifies and applies a billing notification.
	HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.WebhookEvent, error)
}

// =============================================================================
// Cache Capability
// =============================================================================

// CacheProvider caches rendered content. A read error is a miss.
type CacheProvider interface {
	// Name returns the variant name.
	Name() string

	// Get retrieves a value. ok is false on a miss, an expired entry or a
	// read failure.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set stores a value. A zero ttl uses the provider default; a negative
	// ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob (* and ?).
	DeletePattern(ctx context.Context, pattern string) error

	// Clear removes every key.
	Clear(ctx context.Context) error

	// IsEnabled reports whether values are retained at all.
	IsEnabled() bool

	// Close releases resources and stops background work.
	Close() error
}

// =============================================================================
// Media Capability (uploads and storage quota)
// =============================================================================

// UploadRequest is a file to store for a context.
type UploadRequest struct {
	ContextID   string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResult describes a stored object.
type UploadResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// MediaProvider stores uploads and reports storage usage.
type MediaProvider interface {
	// Name returns the variant name.
	Name() string

	// Upload stores a file. Fails with ErrQuotaExceeded when the context
	// has no room left.
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)

	// Delete removes a stored object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Usage reports the storage position of a context.
	Usage(ctx context.Context, contextID string) (quota.Usage, error)
}

// =============================================================================
// Analytics Capability
// =============================================================================

// Event is one tracked analytics event.
type Event struct {
	Name       string         `json:"name"`
	ContextID  string         `json:"context_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	At         time.Time      `json:"at"`
}

// AnalyticsProvider records events without blocking the caller.
type AnalyticsProvider interface {
	// Name returns the variant name.
	Name() string

	// Track queues an event. It never fails the caller.
	Track(ctx context.Context, ev Event)

	// Flush writes queued events.
	Flush(ctx context.Context) error
}

// =============================================================================
// Video Capability
// =============================================================================

// VideoResult describes an uploaded video.
type VideoResult struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// VideoProvider hosts videos.
type VideoProvider interface {
	// Name returns the variant name.
	Name() string

	// Enabled reports whether video uploads are offered.
	Enabled() bool

	// Upload sends a video to the host. Fails with ErrNotAvailableInMode
	// when video hosting is off.
	Upload(ctx context.Context, req UploadRequest) (VideoResult, error)

	// Delete removes an uploaded video. A missing video is not an error.
	Delete(ctx context.Context, id string) error
}
