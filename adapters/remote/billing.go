package remote

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/billing"
	"github.com/artpar/cmskit/ports"
)

// ErrInvalidSignature is returned for webhooks whose signature does not match.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// BillingProvider delegates subscription state to the control plane.
//
// API Contract:
//
//	GET /billing/contexts/{context_id}/subscription
//	Response: {"subscription": {...}}
//
//	POST /billing/checkout
//	Request:  {"context_id": "...", "plan_id": "...", "success_url": "...", "cancel_url": "..."}
//	Response: {"url": "https://..."}
//
// Webhooks are signed with HMAC-SHA256 over the raw body (hex). A verified
// event updates the locally cached subscription immediately.
type BillingProvider struct {
	client *Client
	secret string
	clock  ports.Clock
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cachedSubscription
}

type cachedSubscription struct {
	sub       billing.Subscription
	fetchedAt time.Time
}

// BillingConfig configures the remote billing provider.
type BillingConfig struct {
	WebhookSecret string
	CacheTTL      time.Duration // how long a fetched subscription is reused
	Clock         ports.Clock
}

// NewBillingProvider creates a remote billing provider.
func NewBillingProvider(client *Client, cfg BillingConfig) *BillingProvider {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}
	return &BillingProvider{
		client: client,
		secret: cfg.WebhookSecret,
		clock:  cfg.Clock,
		ttl:    cfg.CacheTTL,
		cache:  make(map[string]cachedSubscription),
	}
}

func (p *BillingProvider) Name() string { return "hosted" }

// RemoteSubscription is the wire format for subscriptions.
type RemoteSubscription struct {
	ID                 string     `json:"id"`
	ContextID          string     `json:"context_id"`
	PlanID             string     `json:"plan_id"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
}

func (p *BillingProvider) HasActiveSubscription(ctx context.Context, contextID string) (bool, error) {
	sub, err := p.GetSubscription(ctx, contextID)
	if err != nil {
		return false, err
	}
	return sub.ActiveAt(p.clock.Now()), nil
}

// GetSubscription returns the cached subscription or fetches it. A context
// the control plane does not know has no subscription, which is not an error.
func (p *BillingProvider) GetSubscription(ctx context.Context, contextID string) (billing.Subscription, error) {
	now := p.clock.Now()
	p.mu.Lock()
	c, ok := p.cache[contextID]
	p.mu.Unlock()
	if ok && now.Sub(c.fetchedAt) < p.ttl {
		return c.sub, nil
	}

	var resp struct {
		Subscription RemoteSubscription `json:"subscription"`
	}
	err := p.client.Request(ctx, http.MethodGet, "/billing/contexts/"+url.PathEscape(contextID)+"/subscription", nil, &resp)
	var sub billing.Subscription
	switch {
	case IsNotFound(err):
		sub = billing.Subscription{ContextID: contextID, Status: billing.SubscriptionStatusUnpaid}
	case err != nil:
		return billing.Subscription{}, fmt.Errorf("get subscription: %w", err)
	default:
		sub = toSubscription(resp.Subscription)
		if sub.ContextID == "" {
			sub.ContextID = contextID
		}
	}

	p.store(contextID, sub, now)
	return sub, nil
}

func (p *BillingProvider) CreateCheckoutURL(ctx context.Context, req billing.CheckoutRequest) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := p.client.Request(ctx, http.MethodPost, "/billing/checkout", req, &resp); err != nil {
		return "", fmt.Errorf("create checkout: %w", err)
	}
	if resp.URL == "" {
		return "", errors.New("create checkout: empty url in response")
	}
	return resp.URL, nil
}

// HandleWebhook verifies the signature, decodes the event and applies it
// to the cached subscription of its context.
func (p *BillingProvider) HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.WebhookEvent, error) {
	if !p.verify(payload, signature) {
		return billing.WebhookEvent{}, ErrInvalidSignature
	}

	var wire struct {
		ID           string             `json:"id"`
		Type         string             `json:"type"`
		Subscription RemoteSubscription `json:"subscription"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return billing.WebhookEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	ev := billing.WebhookEvent{ID: wire.ID, Type: wire.Type, Subscription: toSubscription(wire.Subscription)}
	contextID := ev.Subscription.ContextID
	if contextID == "" {
		return ev, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cur, cached := p.cache[contextID]
	switch {
	case cached:
		p.cache[contextID] = cachedSubscription{sub: billing.Apply(cur.sub, ev), fetchedAt: p.clock.Now()}
	case ev.Type == billing.EventSubscriptionUpdated || ev.Type == billing.EventSubscriptionDeleted:
		p.cache[contextID] = cachedSubscription{sub: billing.Apply(billing.Subscription{}, ev), fetchedAt: p.clock.Now()}
	}
	return ev, nil
}

func (p *BillingProvider) verify(payload []byte, signature string) bool {
	if p.secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Sign returns the signature the control plane puts on payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *BillingProvider) store(contextID string, sub billing.Subscription, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[contextID] = cachedSubscription{sub: sub, fetchedAt: at}
}

func toSubscription(rs RemoteSubscription) billing.Subscription {
	return billing.Subscription{
		ID:                 rs.ID,
		ContextID:          rs.ContextID,
		PlanID:             rs.PlanID,
		Status:             billing.ParseStatus(rs.Status),
		CurrentPeriodStart: rs.CurrentPeriodStart,
		CurrentPeriodEnd:   rs.CurrentPeriodEnd,
		CancelAtPeriodEnd:  rs.CancelAtPeriodEnd,
		CancelledAt:        rs.CanceledAt,
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Ensure interface compliance.
var _ capability.BillingProvider = (*BillingProvider)(nil)
