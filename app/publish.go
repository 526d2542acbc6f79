package app

import (
	"context"
	"fmt"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/ports"
	"github.com/rs/zerolog"
)

// PublishService publishes items and invalidates their cached copies.
type PublishService struct {
	access
	items     ports.ItemStore
	cache     capability.CacheProvider
	analytics capability.AnalyticsProvider
	clock     ports.Clock
	logger    zerolog.Logger
}

// NewPublishService creates a new publish service.
func NewPublishService(
	collections ports.CollectionStore,
	items ports.ItemStore,
	owner capability.ContextProvider,
	cache capability.CacheProvider,
	analytics capability.AnalyticsProvider,
	clock ports.Clock,
	logger zerolog.Logger,
) *PublishService {
	return &PublishService{
		access:    access{owner: owner, collections: collections},
		items:     items,
		cache:     cache,
		analytics: analytics,
		clock:     clock,
		logger:    logger,
	}
}

// Publish marks an item published. Every cached item of the collection is
// dropped afterwards; an invalidation failure is logged and the publish
// still succeeds.
func (s *PublishService) Publish(ctx context.Context, userID, collectionID, itemID string) (collection.Item, error) {
	return s.setPublished(ctx, userID, collectionID, itemID, true)
}

// Unpublish clears the publication time of an item.
func (s *PublishService) Unpublish(ctx context.Context, userID, collectionID, itemID string) (collection.Item, error) {
	return s.setPublished(ctx, userID, collectionID, itemID, false)
}

func (s *PublishService) setPublished(ctx context.Context, userID, collectionID, itemID string, published bool) (collection.Item, error) {
	_, oc, err := s.edit(ctx, userID, collectionID)
	if err != nil {
		return collection.Item{}, err
	}
	it, err := s.items.Get(ctx, collectionID, itemID)
	if err != nil {
		return collection.Item{}, fmt.Errorf("get item: %w", err)
	}

	now := s.clock.Now()
	name := "item.unpublished"
	if published {
		it.PublishedAt = &now
		name = "item.published"
	} else {
		it.PublishedAt = nil
	}
	it.UpdatedAt = now
	if err := s.items.Update(ctx, it); err != nil {
		return collection.Item{}, fmt.Errorf("update item: %w", err)
	}

	if err := s.cache.DeletePattern(ctx, collection.CachePattern(collectionID)); err != nil {
		s.logger.Warn().Err(err).
			Str("collection_id", collectionID).
			Str("item_id", itemID).
			Msg("cache invalidation failed after publish")
	}

	s.logger.Info().
		Str("collection_id", collectionID).
		Str("item_id", itemID).
		Bool("published", published).
		Msg("publication changed")
	s.analytics.Track(ctx, capability.Event{
		Name:       name,
		ContextID:  oc.ID,
		UserID:     userID,
		Properties: map[string]any{"collection_id": collectionID, "item_id": itemID},
	})
	return it, nil
}
