package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/artpar/cmskit/core/capability"
	domain "github.com/artpar/cmskit/domain/billing"
)

func TestSelfHosted(t *testing.T) {
	ctx := context.Background()
	p := NewSelfHosted()

	active, err := p.HasActiveSubscription(ctx, "user_1")
	if err != nil || !active {
		t.Errorf("HasActiveSubscription() = %v, %v, want true, nil", active, err)
	}

	sub, err := p.GetSubscription(ctx, "user_1")
	if err != nil {
		t.Fatalf("GetSubscription() error = %v", err)
	}
	if sub.ContextID != "user_1" || sub.PlanID != domain.SelfHostedPlanID || !sub.IsActive() {
		t.Errorf("unexpected subscription %+v", sub)
	}

	if _, err := p.CreateCheckoutURL(ctx, domain.CheckoutRequest{ContextID: "user_1", PlanID: "pro"}); !errors.Is(err, capability.ErrNotAvailableInMode) {
		t.Errorf("CreateCheckoutURL() error = %v, want ErrNotAvailableInMode", err)
	}
	if _, err := p.HandleWebhook(ctx, []byte(`{}`), "sig"); !errors.Is(err, capability.ErrNotAvailableInMode) {
		t.Errorf("HandleWebhook() error = %v, want ErrNotAvailableInMode", err)
	}
}
