package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Candidate is one variant that may serve a capability.
type Candidate[T any] struct {
	Variant string
	Build   func(ctx context.Context) (T, error)
}

// Plan lists, per capability, the variants to try in order of preference.
// The first variant that builds is selected; later ones are fallbacks.
type Plan struct {
	Mode      Mode
	Context   []Candidate[ContextProvider]
	Billing   []Candidate[BillingProvider]
	Analytics []Candidate[AnalyticsProvider]
	Media     []Candidate[MediaProvider]
	Cache     []Candidate[CacheProvider]
	Video     []Candidate[VideoProvider]
}

// Degradation records a preferred variant that failed to initialize and the
// variant that replaced it.
type Degradation struct {
	Capability Type   `json:"capability"`
	From       string `json:"from"`
	To         string `json:"to"`
	Reason     string `json:"reason"`
}

// Observer is notified when selection falls back.
type Observer interface {
	ProviderFallback(cap Type, from, to string)
}

// Providers is the process-scoped set of active providers. It is built once
// by Select and never changes afterwards.
type Providers struct {
	Mode      Mode
	Context   ContextProvider
	Billing   BillingProvider
	Analytics AnalyticsProvider
	Media     MediaProvider
	Cache     CacheProvider
	Video     VideoProvider

	container *Container
	degraded  []Degradation
}

// Container returns the container the providers are registered in.
func (p *Providers) Container() *Container {
	return p.container
}

// Degraded returns the fallbacks taken during selection.
func (p *Providers) Degraded() []Degradation {
	out := make([]Degradation, len(p.degraded))
	copy(out, p.degraded)
	return out
}

// Close releases provider resources.
func (p *Providers) Close() error {
	return p.container.Close()
}

// Select builds one provider per capability from plan. A variant that fails
// to build, or panics, is skipped in favour of the next one and the
// degradation is logged. Select fails only when every variant of a
// capability fails.
func Select(ctx context.Context, plan Plan, log zerolog.Logger, obs Observer) (*Providers, error) {
	c := NewContainer()
	p := &Providers{Mode: plan.Mode, container: c}
	s := selector{p: p, log: log, obs: obs}

	var err error
	if p.Context, err = choose(ctx, s, Context, plan.Context, c.RegisterContext); err != nil {
		return nil, s.abort(err)
	}
	if p.Billing, err = choose(ctx, s, Billing, plan.Billing, c.RegisterBilling); err != nil {
		return nil, s.abort(err)
	}
	if p.Analytics, err = choose(ctx, s, Analytics, plan.Analytics, c.RegisterAnalytics); err != nil {
		return nil, s.abort(err)
	}
	if p.Media, err = choose(ctx, s, Media, plan.Media, c.RegisterMedia); err != nil {
		return nil, s.abort(err)
	}
	if p.Cache, err = choose(ctx, s, Cache, plan.Cache, c.RegisterCache); err != nil {
		return nil, s.abort(err)
	}
	if p.Video, err = choose(ctx, s, Video, plan.Video, c.RegisterVideo); err != nil {
		return nil, s.abort(err)
	}

	log.Info().
		Str("mode", string(plan.Mode)).
		Int("fallbacks", len(p.degraded)).
		Msg("providers selected")
	return p, nil
}

type selector struct {
	p   *Providers
	log zerolog.Logger
	obs Observer
}

func (s selector) abort(err error) error {
	if cerr := s.p.container.Close(); cerr != nil {
		s.log.Warn().Err(cerr).Msg("closing partially selected providers")
	}
	return err
}

func choose[T any](ctx context.Context, s selector, cap Type, cands []Candidate[T], register func(string, T, bool) error) (T, error) {
	var zero T
	if len(cands) == 0 {
		return zero, fmt.Errorf("%s: no variants configured: %w", cap, ErrProviderUnavailable)
	}

	var failures []error
	for i, cand := range cands {
		impl, err := build(ctx, cand)
		if err != nil {
			s.log.Warn().
				Str("capability", cap.String()).
				Str("variant", cand.Variant).
				Err(err).
				Msg("provider failed to initialize")
			failures = append(failures, fmt.Errorf("%s: %w", cand.Variant, err))
			continue
		}

		if err := register(cand.Variant, impl, true); err != nil {
			return zero, fmt.Errorf("register %s provider %s: %w", cap, cand.Variant, err)
		}

		if i > 0 {
			from := cands[0].Variant
			s.p.degraded = append(s.p.degraded, Degradation{
				Capability: cap,
				From:       from,
				To:         cand.Variant,
				Reason:     errors.Join(failures...).Error(),
			})
			s.p.container.markFallback(cap, cand.Variant)
			s.log.Warn().
				Str("capability", cap.String()).
				Str("from", from).
				Str("to", cand.Variant).
				Msg("provider degraded to fallback")
			if s.obs != nil {
				s.obs.ProviderFallback(cap, from, cand.Variant)
			}
		} else {
			s.log.Debug().
				Str("capability", cap.String()).
				Str("variant", cand.Variant).
				Msg("provider selected")
		}
		return impl, nil
	}
	return zero, fmt.Errorf("%s: %w: %w", cap, ErrProviderUnavailable, errors.Join(failures...))
}

func build[T any](ctx context.Context, cand Candidate[T]) (impl T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during init: %v", r)
		}
	}()
	if cand.Build == nil {
		return impl, errors.New("no constructor")
	}
	return cand.Build(ctx)
}
