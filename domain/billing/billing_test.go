package billing

import (
	"testing"
	"time"
)

func TestSubscription_IsActive(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		want   bool
	}{
		{SubscriptionStatusActive, true},
		{SubscriptionStatusTrialing, true},
		{SubscriptionStatusPastDue, false},
		{SubscriptionStatusCancelled, false},
		{SubscriptionStatusPaused, false},
		{SubscriptionStatusUnpaid, false},
	}
	for _, tt := range tests {
		s := Subscription{Status: tt.status}
		if got := s.IsActive(); got != tt.want {
			t.Errorf("IsActive(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSubscription_ActiveAt(t *testing.T) {
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	s := Subscription{Status: SubscriptionStatusActive, CurrentPeriodEnd: end}

	if !s.ActiveAt(end.Add(-time.Hour)) {
		t.Error("expected active before period end")
	}
	if !s.ActiveAt(end) {
		t.Error("expected active at period end")
	}
	if s.ActiveAt(end.Add(time.Second)) {
		t.Error("expected inactive after period end")
	}
	if !(Subscription{Status: SubscriptionStatusActive}).ActiveAt(end) {
		t.Error("expected open-ended subscription active")
	}
}

func TestUnlimited(t *testing.T) {
	s := Unlimited("ctx-1")
	if !s.IsActive() || s.ContextID != "ctx-1" || s.PlanID != SelfHostedPlanID {
		t.Errorf("unexpected subscription %+v", s)
	}
	if s.IsCancelling() {
		t.Error("self-hosted subscription should never cancel")
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]SubscriptionStatus{
		"active":   SubscriptionStatusActive,
		"trialing": SubscriptionStatusTrialing,
		"canceled": SubscriptionStatusCancelled,
		"past_due": SubscriptionStatusPastDue,
		"bogus":    SubscriptionStatusUnpaid,
		"":         SubscriptionStatusUnpaid,
	}
	for in, want := range tests {
		if got := ParseStatus(in); got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestApply(t *testing.T) {
	cur := Subscription{ID: "sub_1", ContextID: "ctx-1", PlanID: "pro", Status: SubscriptionStatusActive}
	when := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	updated := Apply(cur, WebhookEvent{Type: EventSubscriptionUpdated, Subscription: Subscription{
		ID: "sub_1", ContextID: "ctx-1", PlanID: "team", Status: "past_due",
	}})
	if updated.PlanID != "team" || updated.Status != SubscriptionStatusPastDue {
		t.Errorf("unexpected update result %+v", updated)
	}

	deleted := Apply(cur, WebhookEvent{Type: EventSubscriptionDeleted, Subscription: Subscription{
		ContextID: "ctx-1", CancelledAt: &when,
	}})
	if deleted.Status != SubscriptionStatusCancelled || deleted.PlanID != "pro" || deleted.CancelledAt == nil {
		t.Errorf("unexpected delete result %+v", deleted)
	}

	other := Apply(cur, WebhookEvent{Type: EventSubscriptionUpdated, Subscription: Subscription{ContextID: "ctx-2"}})
	if other != cur {
		t.Errorf("event for another context changed state: %+v", other)
	}

	unknown := Apply(cur, WebhookEvent{Type: "invoice.paid", Subscription: Subscription{ContextID: "ctx-1"}})
	if unknown != cur {
		t.Errorf("unknown event changed state: %+v", unknown)
	}
}
