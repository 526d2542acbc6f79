// Package memory provides in-memory implementations for testing and for
// running without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/domain/field"
	"github.com/artpar/cmskit/ports"
)

// Store holds collections, their configurations, items and memberships.
// The typed views share one lock so that deleting a collection removes its
// configuration and items atomically.
type Store struct {
	mu          sync.RWMutex
	collections map[string]collection.Collection
	configs     map[string]collection.Config
	items       map[string]map[string]collection.Item // collection ID -> item ID
	memberships map[string]ports.Membership           // by user ID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]collection.Collection),
		configs:     make(map[string]collection.Config),
		items:       make(map[string]map[string]collection.Item),
		memberships: make(map[string]ports.Membership),
	}
}

// Collections returns the collection view.
func (s *Store) Collections() *CollectionStore { return &CollectionStore{s: s} }

// Configs returns the configuration view.
func (s *Store) Configs() *ConfigStore { return &ConfigStore{s: s} }

// Items returns the item view.
func (s *Store) Items() *ItemStore { return &ItemStore{s: s} }

// Memberships returns the membership view.
func (s *Store) Memberships() *MembershipStore { return &MembershipStore{s: s} }

// CollectionStore is an in-memory implementation of ports.CollectionStore.
type CollectionStore struct{ s *Store }

func (c *CollectionStore) Create(ctx context.Context, col collection.Collection, cfg collection.Config) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, ok := c.s.collections[col.ID]; ok {
		return fmt.Errorf("collection %s already exists", col.ID)
	}
	c.s.collections[col.ID] = col
	c.s.configs[col.ID] = cloneConfig(cfg)
	return nil
}

func (c *CollectionStore) Get(ctx context.Context, id string) (collection.Collection, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	col, ok := c.s.collections[id]
	if !ok {
		return collection.Collection{}, ports.ErrNotFound
	}
	return col, nil
}

func (c *CollectionStore) ListByOwner(ctx context.Context, ownerID string) ([]collection.Collection, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	var out []collection.Collection
	for _, col := range c.s.collections {
		if col.OwnerID == ownerID {
			out = append(out, col)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *CollectionStore) Delete(ctx context.Context, id string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, ok := c.s.collections[id]; !ok {
		return ports.ErrNotFound
	}
	delete(c.s.collections, id)
	delete(c.s.configs, id)
	delete(c.s.items, id)
	return nil
}

// ConfigStore is an in-memory implementation of ports.ConfigStore.
type ConfigStore struct{ s *Store }

func (c *ConfigStore) Load(ctx context.Context, collectionID string) (collection.Config, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	cfg, ok := c.s.configs[collectionID]
	if !ok {
		return collection.Config{}, ports.ErrNotFound
	}
	return cloneConfig(cfg), nil
}

func (c *ConfigStore) Replace(ctx context.Context, collectionID string, cfg collection.Config) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, ok := c.s.collections[collectionID]; !ok {
		return ports.ErrNotFound
	}
	c.s.configs[collectionID] = cloneConfig(cfg)
	return nil
}

// ItemStore is an in-memory implementation of ports.ItemStore.
type ItemStore struct{ s *Store }

func (i *ItemStore) Create(ctx context.Context, it collection.Item) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	if _, ok := i.s.collections[it.CollectionID]; !ok {
		return ports.ErrNotFound
	}
	byID := i.s.items[it.CollectionID]
	if byID == nil {
		byID = make(map[string]collection.Item)
		i.s.items[it.CollectionID] = byID
	}
	if _, ok := byID[it.ID]; ok {
		return fmt.Errorf("item %s already exists", it.ID)
	}
	byID[it.ID] = cloneItem(it)
	return nil
}

func (i *ItemStore) Get(ctx context.Context, collectionID, id string) (collection.Item, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	it, ok := i.s.items[collectionID][id]
	if !ok {
		return collection.Item{}, ports.ErrNotFound
	}
	return cloneItem(it), nil
}

func (i *ItemStore) Update(ctx context.Context, it collection.Item) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	byID := i.s.items[it.CollectionID]
	if _, ok := byID[it.ID]; !ok {
		return ports.ErrNotFound
	}
	byID[it.ID] = cloneItem(it)
	return nil
}

func (i *ItemStore) List(ctx context.Context, collectionID string, limit int) ([]collection.Item, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	out := make([]collection.Item, 0, len(i.s.items[collectionID]))
	for _, it := range i.s.items[collectionID] {
		out = append(out, cloneItem(it))
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID > out[b].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MembershipStore is an in-memory implementation of ports.MembershipStore.
type MembershipStore struct{ s *Store }

func (m *MembershipStore) ForUser(ctx context.Context, userID string) (ports.Membership, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	mb, ok := m.s.memberships[userID]
	if !ok {
		return ports.Membership{}, ports.ErrNotFound
	}
	return mb, nil
}

func (m *MembershipStore) Add(ctx context.Context, mb ports.Membership) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.memberships[mb.UserID] = mb
	return nil
}

func cloneConfig(cfg collection.Config) collection.Config {
	out := collection.Config{
		CustomFields:  append(make([]field.Config, 0, len(cfg.CustomFields)), cfg.CustomFields...),
		BuiltInFields: make(map[string]collection.BuiltInFieldSettings, len(cfg.BuiltInFields)),
	}
	for k, v := range cfg.BuiltInFields {
		out.BuiltInFields[k] = v
	}
	return out
}

func cloneItem(it collection.Item) collection.Item {
	if it.Data != nil {
		data := make(map[string]any, len(it.Data))
		for k, v := range it.Data {
			data[k] = v
		}
		it.Data = data
	}
	it.Tags = append([]string(nil), it.Tags...)
	return it
}

var (
	_ ports.CollectionStore = (*CollectionStore)(nil)
	_ ports.ConfigStore     = (*ConfigStore)(nil)
	_ ports.ItemStore       = (*ItemStore)(nil)
	_ ports.MembershipStore = (*MembershipStore)(nil)
)
