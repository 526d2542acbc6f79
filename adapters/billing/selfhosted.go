// Package billing provides the self-hosted billing variant. The hosted
// variant lives in the remote package.
package billing

import (
	"context"
	"fmt"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/billing"
)

// SelfHosted treats every context as paid. There is no checkout and no
// webhook in this mode.
type SelfHosted struct{}

// NewSelfHosted creates the self-hosted billing provider.
func NewSelfHosted() SelfHosted { return SelfHosted{} }

func (SelfHosted) Name() string { return "self_hosted" }

func (SelfHosted) HasActiveSubscription(context.Context, string) (bool, error) {
	return true, nil
}

func (SelfHosted) GetSubscription(_ context.Context, contextID string) (billing.Subscription, error) {
	return billing.Unlimited(contextID), nil
}

func (SelfHosted) CreateCheckoutURL(context.Context, billing.CheckoutRequest) (string, error) {
	return "", fmt.Errorf("checkout: %w", capability.ErrNotAvailableInMode)
}

func (SelfHosted) HandleWebhook(context.Context, []byte, string) (billing.WebhookEvent, error) {
	return billing.WebhookEvent{}, fmt.Errorf("billing webhook: %w", capability.ErrNotAvailableInMode)
}

var _ capability.BillingProvider = SelfHosted{}
