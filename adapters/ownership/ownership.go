// Package ownership provides the context variants. Row-level ownership
// makes every user their own context; membership ownership lets users share
// a context with a role.
package ownership

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/ports"
)

// Variant names.
const (
	VariantRowLevel   = "row_level"
	VariantMembership = "membership"
)

// RowLevel scopes every collection to the user that created it.
type RowLevel struct {
	collections ports.CollectionStore
}

// NewRowLevel creates the self-hosted context provider.
func NewRowLevel(collections ports.CollectionStore) *RowLevel {
	return &RowLevel{collections: collections}
}

func (p *RowLevel) Name() string { return VariantRowLevel }

func (p *RowLevel) GetContext(_ context.Context, userID string) (capability.OwnerContext, error) {
	if userID == "" {
		return capability.OwnerContext{}, capability.ErrForbidden
	}
	return personal(userID), nil
}

func (p *RowLevel) OwnedCollections(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, capability.ErrForbidden
	}
	return collectionIDs(ctx, p.collections, userID)
}

func (p *RowLevel) CanCreate(_ context.Context, userID string) (bool, error) {
	return userID != "", nil
}

func (p *RowLevel) CanEdit(ctx context.Context, userID, collectionID string) (bool, error) {
	return ownedBy(ctx, p.collections, collectionID, userID)
}

func (p *RowLevel) CanDelete(ctx context.Context, userID, collectionID string) (bool, error) {
	return ownedBy(ctx, p.collections, collectionID, userID)
}

// Membership resolves a user's context through their membership. Users
// without one act in a personal context they own.
type Membership struct {
	members     ports.MembershipStore
	collections ports.CollectionStore
}

// NewMembership creates the hosted context provider.
func NewMembership(members ports.MembershipStore, collections ports.CollectionStore) *Membership {
	return &Membership{members: members, collections: collections}
}

func (p *Membership) Name() string { return VariantMembership }

func (p *Membership) GetContext(ctx context.Context, userID string) (capability.OwnerContext, error) {
	if userID == "" {
		return capability.OwnerContext{}, capability.ErrForbidden
	}
	m, err := p.members.ForUser(ctx, userID)
	if errors.Is(err, ports.ErrNotFound) {
		return personal(userID), nil
	}
	if err != nil {
		return capability.OwnerContext{}, fmt.Errorf("load membership: %w", err)
	}
	return capability.OwnerContext{
		ID:     m.ContextID,
		UserID: userID,
		Role:   string(m.Role),
		Shared: m.ContextID != userID,
	}, nil
}

func (p *Membership) OwnedCollections(ctx context.Context, userID string) ([]string, error) {
	oc, err := p.GetContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	return collectionIDs(ctx, p.collections, oc.ID)
}

func (p *Membership) CanCreate(ctx context.Context, userID string) (bool, error) {
	oc, err := p.GetContext(ctx, userID)
	if errors.Is(err, capability.ErrForbidden) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ports.Role(oc.Role).CanWrite(), nil
}

func (p *Membership) CanEdit(ctx context.Context, userID, collectionID string) (bool, error) {
	return p.allowed(ctx, userID, collectionID, ports.Role.CanWrite)
}

func (p *Membership) CanDelete(ctx context.Context, userID, collectionID string) (bool, error) {
	return p.allowed(ctx, userID, collectionID, func(r ports.Role) bool { return r == ports.RoleOwner })
}

func (p *Membership) allowed(ctx context.Context, userID, collectionID string, roleOK func(ports.Role) bool) (bool, error) {
	oc, err := p.GetContext(ctx, userID)
	if errors.Is(err, capability.ErrForbidden) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !roleOK(ports.Role(oc.Role)) {
		return false, nil
	}
	return ownedBy(ctx, p.collections, collectionID, oc.ID)
}

func personal(userID string) capability.OwnerContext {
	return capability.OwnerContext{ID: userID, UserID: userID, Role: string(ports.RoleOwner)}
}

func collectionIDs(ctx context.Context, store ports.CollectionStore, ownerID string) ([]string, error) {
	cs, err := store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids, nil
}

// ownedBy reports whether ownerID owns the collection. A missing collection
// is not owned by anyone.
func ownedBy(ctx context.Context, store ports.CollectionStore, collectionID, ownerID string) (bool, error) {
	if ownerID == "" {
		return false, nil
	}
	c, err := store.Get(ctx, collectionID)
	if errors.Is(err, ports.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load collection: %w", err)
	}
	return c.OwnerID == ownerID, nil
}

var (
	_ capability.ContextProvider = (*RowLevel)(nil)
	_ capability.ContextProvider = (*Membership)(nil)
)
