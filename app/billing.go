package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/billing"
	"github.com/artpar/cmskit/domain/field"
	"github.com/artpar/cmskit/ports"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingService exposes the billing provider to signed-in users.
type BillingService struct {
	access
	billing   capability.BillingProvider
	analytics capability.AnalyticsProvider
	validate  *validator.Validate
	metrics   Metrics
	logger    zerolog.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(
	owner capability.ContextProvider,
	billingProvider capability.BillingProvider,
	analytics capability.AnalyticsProvider,
	metrics Metrics,
	logger zerolog.Logger,
) *BillingService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &BillingService{
		access:    access{owner: owner},
		billing:   billingProvider,
		analytics: analytics,
		validate:  newRequestValidator(),
		metrics:   metrics,
		logger:    logger,
	}
}

// SubscriptionView is a context's subscription and whether it is active.
type SubscriptionView struct {
	Subscription billing.Subscription `json:"subscription"`
	Active       bool                 `json:"active"`
}

// Subscription returns the subscription of the caller's context.
func (s *BillingService) Subscription(ctx context.Context, userID string) (SubscriptionView, error) {
	oc, err := s.ownerContext(ctx, userID)
	if err != nil {
		return SubscriptionView{}, err
	}
	sub, err := s.billing.GetSubscription(ctx, oc.ID)
	if err != nil {
		return SubscriptionView{}, fmt.Errorf("get subscription: %w", err)
	}
	active, err := s.billing.HasActiveSubscription(ctx, oc.ID)
	if err != nil {
		return SubscriptionView{}, fmt.Errorf("check subscription: %w", err)
	}
	return SubscriptionView{Subscription: sub, Active: active}, nil
}

// Checkout returns a checkout page URL for the caller's context. The
// context ID of the request is always the caller's, and only the context's
// owner may start one.
func (s *BillingService) Checkout(ctx context.Context, userID string, req billing.CheckoutRequest) (string, error) {
	oc, err := s.write(ctx, userID)
	if err != nil {
		return "", err
	}
	if ports.Role(oc.Role) != ports.RoleOwner {
		return "", capability.ErrForbidden
	}
	req.ContextID = oc.ID

	if err := s.validate.Struct(req); err != nil {
		res := checkoutResult(err)
		s.metrics.ValidationFailed(TargetCheckout, issueCodes(res)...)
		return "", res.Err()
	}

	url, err := s.billing.CreateCheckoutURL(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create checkout: %w", err)
	}
	s.logger.Info().Str("context_id", oc.ID).Str("plan_id", req.PlanID).Msg("checkout created")
	s.analytics.Track(ctx, capability.Event{
		Name:       "billing.checkout_created",
		ContextID:  oc.ID,
		UserID:     userID,
		Properties: map[string]any{"plan_id": req.PlanID},
	})
	return url, nil
}

// Webhook hands a signed notification to the billing provider.
func (s *BillingService) Webhook(ctx context.Context, payload []byte, signature string) (billing.WebhookEvent, error) {
	ev, err := s.billing.HandleWebhook(ctx, payload, signature)
	if err != nil {
		if !errors.Is(err, capability.ErrNotAvailableInMode) {
			s.logger.Warn().Err(err).Msg("billing webhook rejected")
		}
		return billing.WebhookEvent{}, err
	}
	s.logger.Info().
		Str("event_id", ev.ID).
		Str("type", ev.Type).
		Str("context_id", ev.Subscription.ContextID).
		Msg("billing webhook applied")
	return ev, nil
}

// checkoutResult turns validator errors into a validation result keyed by
// JSON field name.
func checkoutResult(err error) field.Result {
	res := field.Result{Valid: true}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		res.Add("", field.CodeInvalid, err.Error())
		return res
	}
	for _, fe := range verrs {
		path := fe.Field()
		switch fe.Tag() {
		case "required":
			res.Add(path, field.CodeRequired, path+" is required")
		default:
			res.Add(path, field.CodeInvalidValue, fmt.Sprintf("%s must be a valid %s", path, fe.Tag()))
		}
	}
	return res
}

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
