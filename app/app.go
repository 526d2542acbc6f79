// Package app contains the services that combine domain rules, stores and
// the active providers. Handlers call these; nothing here knows which
// deployment mode is running.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/collection"
	"github.com/artpar/cmskit/domain/field"
	"github.com/artpar/cmskit/ports"
)

var (
	// ErrPaymentRequired is returned when the caller's context has no
	// active subscription.
	ErrPaymentRequired = errors.New("active subscription required")

	// ErrInvalidUpload is returned for an upload without a filename or body.
	ErrInvalidUpload = errors.New("invalid upload")
)

// Metrics receives service-level counts. *metrics.Collector satisfies it.
type Metrics interface {
	ValidationFailed(target string, codes ...string)
	UploadFinished(provider, outcome string, bytes int64)
}

// NopMetrics discards every count.
type NopMetrics struct{}

func (NopMetrics) ValidationFailed(string, ...string)   {}
func (NopMetrics) UploadFinished(string, string, int64) {}

// Upload outcomes reported to Metrics.
const (
	OutcomeStored   = "stored"
	OutcomeQuota    = "quota_exceeded"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Validation targets reported to Metrics.
const (
	TargetConfig   = "config"
	TargetItem     = "item"
	TargetCheckout = "checkout"
)

// access resolves what a user may do with a collection.
type access struct {
	owner       capability.ContextProvider
	collections ports.CollectionStore
}

// ownerContext returns the owner context of a signed-in user.
func (a access) ownerContext(ctx context.Context, userID string) (capability.OwnerContext, error) {
	if userID == "" {
		return capability.OwnerContext{}, capability.ErrForbidden
	}
	oc, err := a.owner.GetContext(ctx, userID)
	if err != nil {
		return capability.OwnerContext{}, fmt.Errorf("resolve context: %w", err)
	}
	return oc, nil
}

// write returns the caller's context when the provider lets them add to
// and remove from it.
func (a access) write(ctx context.Context, userID string) (capability.OwnerContext, error) {
	oc, err := a.ownerContext(ctx, userID)
	if err != nil {
		return oc, err
	}
	ok, err := a.owner.CanCreate(ctx, userID)
	if err != nil {
		return oc, fmt.Errorf("check write permission: %w", err)
	}
	if !ok {
		return oc, capability.ErrForbidden
	}
	return oc, nil
}

// read returns a collection owned by the user's context. Collections of
// other contexts are reported as missing.
func (a access) read(ctx context.Context, userID, collectionID string) (collection.Collection, capability.OwnerContext, error) {
	oc, err := a.ownerContext(ctx, userID)
	if err != nil {
		return collection.Collection{}, oc, err
	}
	c, err := a.collections.Get(ctx, collectionID)
	if err != nil {
		return collection.Collection{}, oc, fmt.Errorf("get collection: %w", err)
	}
	if c.OwnerID != oc.ID {
		return collection.Collection{}, oc, fmt.Errorf("get collection: %w", ports.ErrNotFound)
	}
	return c, oc, nil
}

// edit is read plus the provider's edit permission.
func (a access) edit(ctx context.Context, userID, collectionID string) (collection.Collection, capability.OwnerContext, error) {
	c, oc, err := a.read(ctx, userID, collectionID)
	if err != nil {
		return c, oc, err
	}
	ok, err := a.owner.CanEdit(ctx, userID, collectionID)
	if err != nil {
		return c, oc, fmt.Errorf("check edit permission: %w", err)
	}
	if !ok {
		return c, oc, capability.ErrForbidden
	}
	return c, oc, nil
}

// loadConfig treats a missing document as the empty configuration.
func loadConfig(ctx context.Context, configs ports.ConfigStore, collectionID string) (collection.Config, error) {
	cfg, err := configs.Load(ctx, collectionID)
	if errors.Is(err, ports.ErrNotFound) {
		return collection.Empty(), nil
	}
	if err != nil {
		return collection.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func issueCodes(r field.Result) []string {
	codes := make([]string, len(r.Issues))
	for i, iss := range r.Issues {
		codes[i] = iss.Code
	}
	return codes
}
