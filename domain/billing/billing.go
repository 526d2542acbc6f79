// Package billing provides subscription value types and pure functions.
package billing

import "time"

// SubscriptionStatus represents subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid    SubscriptionStatus = "unpaid"
)

// ParseStatus maps a provider status string to a SubscriptionStatus.
// Unknown values map to unpaid so that they never grant access.
func ParseStatus(s string) SubscriptionStatus {
	switch SubscriptionStatus(s) {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCancelled,
		SubscriptionStatusPaused, SubscriptionStatusTrialing, SubscriptionStatusUnpaid:
		return SubscriptionStatus(s)
	case "canceled":
		return SubscriptionStatusCancelled
	}
	return SubscriptionStatusUnpaid
}

// Subscription is the billing state of one owner context (value type).
type Subscription struct {
	ID                 string             `json:"id"`
	ContextID          string             `json:"context_id"`
	PlanID             string             `json:"plan_id"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
}

// IsActive returns true if the subscription is in an active state.
func (s Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// IsCancelling returns true if subscription will cancel at period end.
func (s Subscription) IsCancelling() bool {
	return s.CancelAtPeriodEnd
}

// ActiveAt reports whether the subscription grants access at t: it must be
// active and, when a period end is known, not past it.
func (s Subscription) ActiveAt(t time.Time) bool {
	if !s.IsActive() {
		return false
	}
	return s.CurrentPeriodEnd.IsZero() || !t.After(s.CurrentPeriodEnd)
}

// SelfHostedPlanID names the implicit plan of a self-hosted install.
const SelfHostedPlanID = "self_hosted"

// Unlimited returns the subscription every self-hosted context has.
func Unlimited(contextID string) Subscription {
	return Subscription{
		ID:        "self_hosted:" + contextID,
		ContextID: contextID,
		PlanID:    SelfHostedPlanID,
		Status:    SubscriptionStatusActive,
	}
}

// CheckoutRequest asks the billing backend for a hosted checkout page.
type CheckoutRequest struct {
	ContextID  string `json:"context_id" validate:"required"`
	PlanID     string `json:"plan_id" validate:"required"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// WebhookEvent is a billing backend notification after signature checks.
type WebhookEvent struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	Subscription Subscription `json:"subscription"`
}

// Webhook event types.
const (
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
)

// Apply returns the subscription state after ev. Events for other contexts
// and unknown event types leave cur unchanged.
func Apply(cur Subscription, ev WebhookEvent) Subscription {
	if cur.ContextID != "" && ev.Subscription.ContextID != cur.ContextID {
		return cur
	}
	switch ev.Type {
	case EventSubscriptionUpdated:
		next := ev.Subscription
		next.Status = ParseStatus(string(next.Status))
		return next
	case EventSubscriptionDeleted:
		next := cur
		if next.ContextID == "" {
			next = ev.Subscription
		}
		next.Status = SubscriptionStatusCancelled
		next.CancelledAt = ev.Subscription.CancelledAt
		return next
	}
	return cur
}
