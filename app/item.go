package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/ports"
	"github.com/rs/zerolog"
)

// ItemInput is the editable part of an item.
type ItemInput struct {
	Title   string         `json:"title"`
	Slug    string         `json:"slug,omitempty"`
	Content string         `json:"content,omitempty"`
	Author  string         `json:"author,omitempty"`
	Date    string         `json:"date,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
	Cover   string         `json:"cover,omitempty"`
	Data    map[string]any `json:"item_data,omitempty"`
}

func (in ItemInput) applyTo(it *collection.Item) {
	it.Title = strings.TrimSpace(in.Title)
	it.Slug = strings.TrimSpace(in.Slug)
	if it.Slug == "" {
		it.Slug = collection.NameSlug(it.Title)
	}
	it.Content = in.Content
	it.Author = in.Author
	it.Date = in.Date
	it.Tags = in.Tags
	it.Cover = in.Cover
	it.Data = in.Data
	if it.Data == nil {
		it.Data = map[string]any{}
	}
}

// ItemService creates, updates and reads items. Reads go through the cache.
type ItemService struct {
	access
	configs   ports.ConfigStore
	items     ports.ItemStore
	cache     capability.CacheProvider
	analytics capability.AnalyticsProvider
	idGen     ports.IDGenerator
	clock     ports.Clock
	metrics   Metrics
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewItemService creates a new item service. A zero cacheTTL uses the
// cache provider's default.
func NewItemService(
	collections ports.CollectionStore,
	configs ports.ConfigStore,
	items ports.ItemStore,
	owner capability.ContextProvider,
	cache capability.CacheProvider,
	analytics capability.AnalyticsProvider,
	idGen ports.IDGenerator,
	clock ports.Clock,
	metrics Metrics,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) *ItemService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ItemService{
		access:    access{owner: owner, collections: collections},
		configs:   configs,
		items:     items,
		cache:     cache,
		analytics: analytics,
		idGen:     idGen,
		clock:     clock,
		metrics:   metrics,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Create validates an item against its collection's configuration and
// stores it.
func (s *ItemService) Create(ctx context.Context, userID, collectionID string, in ItemInput) (collection.Item, error) {
	c, oc, err := s.edit(ctx, userID, collectionID)
	if err != nil {
		return collection.Item{}, err
	}
	cfg, err := loadConfig(ctx, s.configs, collectionID)
	if err != nil {
		return collection.Item{}, err
	}

	now := s.clock.Now()
	it := collection.Item{
		ID:           s.idGen.New(),
		CollectionID: c.ID,
		OwnerID:      c.OwnerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	in.applyTo(&it)
	if err := s.validate(cfg, it); err != nil {
		return collection.Item{}, err
	}

	if err := s.items.Create(ctx, it); err != nil {
		return collection.Item{}, fmt.Errorf("create item: %w", err)
	}
	s.logger.Debug().Str("collection_id", c.ID).Str("item_id", it.ID).Msg("item created")
	s.analytics.Track(ctx, capability.Event{
		Name:       "item.created",
		ContextID:  oc.ID,
		UserID:     userID,
		Properties: map[string]any{"collection_id": c.ID, "item_id": it.ID},
	})
	return it, nil
}

// Update replaces the editable part of an item. Publication state and
// creation time are kept.
func (s *ItemService) Update(ctx context.Context, userID, collectionID, itemID string, in ItemInput) (collection.Item, error) {
	if _, _, err := s.edit(ctx, userID, collectionID); err != nil {
		return collection.Item{}, err
	}
	cfg, err := loadConfig(ctx, s.configs, collectionID)
	if err != nil {
		return collection.Item{}, err
	}
	it, err := s.items.Get(ctx, collectionID, itemID)
	if err != nil {
		return collection.Item{}, fmt.Errorf("get item: %w", err)
	}

	in.applyTo(&it)
	it.UpdatedAt = s.clock.Now()
	if err := s.validate(cfg, it); err != nil {
		return collection.Item{}, err
	}

	if err := s.items.Update(ctx, it); err != nil {
		return collection.Item{}, fmt.Errorf("update item: %w", err)
	}
	if err := s.cache.Delete(ctx, collection.CacheKey(collectionID, itemID)); err != nil {
		s.logger.Warn().Err(err).Str("item_id", itemID).Msg("cache invalidation failed")
	}
	return it, nil
}

// Get returns an item, from the cache when present. A cache failure falls
// back to the store.
func (s *ItemService) Get(ctx context.Context, userID, collectionID, itemID string) (collection.Item, error) {
	if _, _, err := s.read(ctx, userID, collectionID); err != nil {
		return collection.Item{}, err
	}

	key := collection.CacheKey(collectionID, itemID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var it collection.Item
		if err := json.Unmarshal(data, &it); err == nil {
			return it, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	it, err := s.items.Get(ctx, collectionID, itemID)
	if err != nil {
		return collection.Item{}, fmt.Errorf("get item: %w", err)
	}
	if data, err := json.Marshal(it); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return it, nil
}

// List returns the newest items of a collection. A limit of zero returns
// every item.
func (s *ItemService) List(ctx context.Context, userID, collectionID string, limit int) ([]collection.Item, error) {
	if _, _, err := s.read(ctx, userID, collectionID); err != nil {
		return nil, err
	}
	items, err := s.items.List(ctx, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *ItemService) validate(cfg collection.Config, it collection.Item) error {
	res := collection.ValidateItem(cfg, it)
	if res.Valid {
		return nil
	}
	s.metrics.ValidationFailed(TargetItem, issueCodes(res)...)
	return res.Err()
}
