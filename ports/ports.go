// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/cmskit/domain/collection"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ConfigStore persists the configuration document of each collection.
// The document is replaced whole; there is no partial update.
type ConfigStore interface {
	// Load returns the configuration of a collection, or ErrNotFound.
	Load(ctx context.Context, collectionID string) (collection.Config, error)

	// Replace overwrites the configuration of a collection.
	Replace(ctx context.Context, collectionID string, cfg collection.Config) error
}

// CollectionStore persists collections.
type CollectionStore interface {
	// Create stores a new collection together with its initial configuration.
	Create(ctx context.Context, c collection.Collection, cfg collection.Config) error

	// Get retrieves a collection by ID.
	Get(ctx context.Context, id string) (collection.Collection, error)

	// ListByOwner returns the collections owned by a user or context.
	ListByOwner(ctx context.Context, ownerID string) ([]collection.Collection, error)

	// Delete removes a collection, its configuration and its items.
	Delete(ctx context.Context, id string) error
}

// ItemStore persists collection items.
type ItemStore interface {
	// Create stores a new item.
	Create(ctx context.Context, it collection.Item) error

	// Get retrieves an item of a collection.
	Get(ctx context.Context, collectionID, id string) (collection.Item, error)

	// Update overwrites an item.
	Update(ctx context.Context, it collection.Item) error

	// List returns the items of a collection, newest first.
	List(ctx context.Context, collectionID string, limit int) ([]collection.Item, error)
}

// Role is a member's permission level inside a shared context.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// CanWrite reports whether the role may create and edit content.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleEditor
}

// Membership links a user to a shared context.
type Membership struct {
	ContextID string
	UserID    string
	Role      Role
	CreatedAt time.Time
}

// MembershipStore persists context memberships for multi-tenant ownership.
type MembershipStore interface {
	// ForUser returns the membership of a user, or ErrNotFound.
	ForUser(ctx context.Context, userID string) (Membership, error)

	// Add creates or replaces a membership.
	Add(ctx context.Context, m Membership) error
}

// AnalyticsSink persists analytics events.
type AnalyticsSink interface {
	// Record stores a batch of events.
	Record(ctx context.Context, events []AnalyticsRecord) error
}

// AnalyticsRecord is a stored analytics event.
type AnalyticsRecord struct {
	Name       string
	ContextID  string
	UserID     string
	Properties map[string]any
	At         time.Time
}
