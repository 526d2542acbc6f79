package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/domain/field"
	"github.com/artpar/cmskit/ports"
	"github.com/rs/zerolog"
)

// CollectionService manages collections and their configuration documents.
type CollectionService struct {
	access
	configs   ports.ConfigStore
	cache     capability.CacheProvider
	analytics capability.AnalyticsProvider
	idGen     ports.IDGenerator
	clock     ports.Clock
	metrics   Metrics
	logger    zerolog.Logger
}

// NewCollectionService creates a new collection service.
func NewCollectionService(
	collections ports.CollectionStore,
	configs ports.ConfigStore,
	owner capability.ContextProvider,
	cache capability.CacheProvider,
	analytics capability.AnalyticsProvider,
	idGen ports.IDGenerator,
	clock ports.Clock,
	metrics Metrics,
	logger zerolog.Logger,
) *CollectionService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CollectionService{
		access:    access{owner: owner, collections: collections},
		configs:   configs,
		cache:     cache,
		analytics: analytics,
		idGen:     idGen,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// FieldsView is the resolved field list of a collection: built-in fields
// with their effective visibility, then the custom fields.
type FieldsView struct {
	BuiltIn []collection.ResolvedField `json:"builtIn"`
	Custom  []field.Config             `json:"custom"`
}

// Create creates a collection owned by the caller's context. The initial
// configuration may be empty.
func (s *CollectionService) Create(ctx context.Context, userID, name string, cfg collection.Config) (collection.Collection, field.Result, error) {
	oc, err := s.ownerContext(ctx, userID)
	if err != nil {
		return collection.Collection{}, field.Result{}, err
	}
	ok, err := s.owner.CanCreate(ctx, userID)
	if err != nil {
		return collection.Collection{}, field.Result{}, fmt.Errorf("check create permission: %w", err)
	}
	if !ok {
		return collection.Collection{}, field.Result{}, capability.ErrForbidden
	}

	res := collection.Validate(cfg)
	cfg = collection.Normalize(cfg)
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		res.Add("name", field.CodeRequired, "Name is required")
	case utf8.RuneCountInString(name) > 100:
		res.Add("name", field.CodeTooLong, "Name must be at most 100 characters")
	}
	if !res.Valid {
		s.metrics.ValidationFailed(TargetConfig, issueCodes(res)...)
		return collection.Collection{}, res, res.Err()
	}

	now := s.clock.Now()
	c := collection.Collection{
		ID:        s.idGen.New(),
		OwnerID:   oc.ID,
		Name:      name,
		Slug:      collection.NameSlug(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.collections.Create(ctx, c, cfg); err != nil {
		return collection.Collection{}, res, fmt.Errorf("create collection: %w", err)
	}

	s.logger.Info().
		Str("collection_id", c.ID).
		Str("context_id", oc.ID).
		Int("custom_fields", len(cfg.CustomFields)).
		Msg("collection created")
	s.analytics.Track(ctx, capability.Event{
		Name:       "collection.created",
		ContextID:  oc.ID,
		UserID:     userID,
		Properties: map[string]any{"collection_id": c.ID},
	})
	return c, res, nil
}

// List returns the collections visible to the caller.
func (s *CollectionService) List(ctx context.Context, userID string) ([]collection.Collection, error) {
	if _, err := s.ownerContext(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.owner.OwnedCollections(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned collections: %w", err)
	}
	out := make([]collection.Collection, 0, len(ids))
	for _, id := range ids {
		c, err := s.collections.Get(ctx, id)
		if errors.Is(err, ports.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get collection %s: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Get returns one collection of the caller's context.
func (s *CollectionService) Get(ctx context.Context, userID, id string) (collection.Collection, error) {
	c, _, err := s.read(ctx, userID, id)
	return c, err
}

// Delete removes a collection with its configuration and items.
func (s *CollectionService) Delete(ctx context.Context, userID, id string) error {
	_, oc, err := s.read(ctx, userID, id)
	if err != nil {
		return err
	}
	ok, err := s.owner.CanDelete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("check delete permission: %w", err)
	}
	if !ok {
		return capability.ErrForbidden
	}
	if err := s.collections.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	s.invalidate(ctx, id)

	s.logger.Info().Str("collection_id", id).Str("context_id", oc.ID).Msg("collection deleted")
	s.analytics.Track(ctx, capability.Event{
		Name:       "collection.deleted",
		ContextID:  oc.ID,
		UserID:     userID,
		Properties: map[string]any{"collection_id": id},
	})
	return nil
}

// LoadConfig returns the configuration document of a collection. A
// collection without a stored document has the empty configuration.
func (s *CollectionService) LoadConfig(ctx context.Context, userID, id string) (collection.Config, error) {
	if _, _, err := s.read(ctx, userID, id); err != nil {
		return collection.Config{}, err
	}
	return loadConfig(ctx, s.configs, id)
}

// ReplaceConfig validates and stores a whole configuration document. An
// invalid document is not stored; the result carries every issue and the
// error is a *field.ValidationError. Warnings are returned on success.
func (s *CollectionService) ReplaceConfig(ctx context.Context, userID, id string, cfg collection.Config) (field.Result, error) {
	_, oc, err := s.edit(ctx, userID, id)
	if err != nil {
		return field.Result{}, err
	}

	res := collection.Validate(cfg)
	if !res.Valid {
		s.metrics.ValidationFailed(TargetConfig, issueCodes(res)...)
		s.logger.Debug().
			Str("collection_id", id).
			Str("first_error", res.FirstError()).
			Int("issues", len(res.Issues)).
			Msg("config rejected")
		return res, res.Err()
	}

	cfg = collection.Normalize(cfg)
	if err := s.configs.Replace(ctx, id, cfg); err != nil {
		return res, fmt.Errorf("replace config: %w", err)
	}
	s.invalidate(ctx, id)

	s.logger.Info().
		Str("collection_id", id).
		Int("custom_fields", len(cfg.CustomFields)).
		Int("warnings", len(res.Warnings)).
		Msg("config replaced")
	s.analytics.Track(ctx, capability.Event{
		Name:       "collection.config_replaced",
		ContextID:  oc.ID,
		UserID:     userID,
		Properties: map[string]any{"collection_id": id, "custom_fields": len(cfg.CustomFields)},
	})
	return res, nil
}

// Fields resolves the built-in field visibility of a collection and lists
// its custom fields.
func (s *CollectionService) Fields(ctx context.Context, userID, id string) (FieldsView, error) {
	cfg, err := s.LoadConfig(ctx, userID, id)
	if err != nil {
		return FieldsView{}, err
	}
	custom := make([]field.Config, len(cfg.CustomFields))
	for i, f := range cfg.CustomFields {
		custom[i] = field.Normalize(f)
	}
	return FieldsView{BuiltIn: collection.Resolve(cfg), Custom: custom}, nil
}

// invalidate drops cached items of a collection. A cache failure never
// fails the caller.
func (s *CollectionService) invalidate(ctx context.Context, id string) {
	if err := s.cache.DeletePattern(ctx, collection.CachePattern(id)); err != nil {
		s.logger.Warn().Err(err).Str("collection_id", id).Msg("cache invalidation failed")
	}
}
