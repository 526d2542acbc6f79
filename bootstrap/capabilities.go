package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/artpar/cmskit/adapters/analytics"
	"github.com/artpar/cmskit/adapters/billing"
	"github.com/artpar/cmskit/adapters/cache"
	"github.com/artpar/cmskit/adapters/metrics"
	"github.com/artpar/cmskit/adapters/ownership"
	"github.com/artpar/cmskit/adapters/remote"
	"github.com/artpar/cmskit/adapters/storage"
	"github.com/artpar/cmskit/adapters/video"
	"github.com/artpar/cmskit/config"
	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/quota"
	"github.com/artpar/cmskit/ports"
)

// remotePingTimeout bounds the reachability check of hosted providers.
const remotePingTimeout = 5 * time.Second

// providerDeps is what the provider constructors draw on.
type providerDeps struct {
	cfg     *config.Config
	stores  *Stores
	remote  *remote.Client
	clock   ports.Clock
	ids     ports.IDGenerator
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// buildPlan lists the variants to try per capability. The configured or
// mode-preferred variant comes first; the self-hosted default follows it
// so that a failing hosted backend degrades instead of stopping the process.
func buildPlan(d providerDeps) capability.Plan {
	mode, _ := capability.ParseMode(d.cfg.Mode)
	return capability.Plan{
		Mode:      mode,
		Context:   contextCandidates(d),
		Billing:   billingCandidates(d),
		Analytics: analyticsCandidates(d),
		Media:     mediaCandidates(d),
		Cache:     cacheCandidates(d),
		Video:     videoCandidates(d),
	}
}

func contextCandidates(d providerDeps) []capability.Candidate[capability.ContextProvider] {
	rowLevel := capability.Candidate[capability.ContextProvider]{
		Variant: ownership.VariantRowLevel,
		Build: func(context.Context) (capability.ContextProvider, error) {
			return ownership.NewRowLevel(d.stores.Collections), nil
		},
	}
	if !d.cfg.Hosted() {
		return []capability.Candidate[capability.ContextProvider]{rowLevel}
	}
	membership := capability.Candidate[capability.ContextProvider]{
		Variant: ownership.VariantMembership,
		Build: func(context.Context) (capability.ContextProvider, error) {
			if d.stores.Memberships == nil {
				return nil, errors.New("membership store is not available")
			}
			return ownership.NewMembership(d.stores.Memberships, d.stores.Collections), nil
		},
	}
	return []capability.Candidate[capability.ContextProvider]{membership, rowLevel}
}

func billingCandidates(d providerDeps) []capability.Candidate[capability.BillingProvider] {
	selfHosted := capability.Candidate[capability.BillingProvider]{
		Variant: "self_hosted",
		Build: func(context.Context) (capability.BillingProvider, error) {
			return billing.NewSelfHosted(), nil
		},
	}
	if !d.cfg.Hosted() {
		return []capability.Candidate[capability.BillingProvider]{selfHosted}
	}
	hosted := capability.Candidate[capability.BillingProvider]{
		Variant: "hosted",
		Build: func(ctx context.Context) (capability.BillingProvider, error) {
			if err := pingRemote(ctx, d.remote); err != nil {
				return nil, err
			}
			return remote.NewBillingProvider(d.remote, remote.BillingConfig{
				WebhookSecret: d.cfg.Billing.WebhookSecret,
				CacheTTL:      d.cfg.Billing.CacheTTL,
				Clock:         d.clock,
			}), nil
		},
	}
	return []capability.Candidate[capability.BillingProvider]{hosted, selfHosted}
}

func analyticsCandidates(d providerDeps) []capability.Candidate[capability.AnalyticsProvider] {
	noop := capability.Candidate[capability.AnalyticsProvider]{
		Variant: "noop",
		Build: func(context.Context) (capability.AnalyticsProvider, error) {
			return analytics.NewNoop(), nil
		},
	}
	buffered := func(name string, sink ports.AnalyticsSink) *analytics.Buffered {
		return analytics.NewBuffered(sink, analytics.Config{
			Name:          name,
			BatchSize:     d.cfg.Analytics.BatchSize,
			FlushInterval: d.cfg.Analytics.FlushInterval,
			Clock:         d.clock,
			Logger:        d.logger,
		})
	}

	var preferred capability.Candidate[capability.AnalyticsProvider]
	switch d.cfg.Analytics.Provider {
	case "remote":
		preferred = capability.Candidate[capability.AnalyticsProvider]{
			Variant: "remote",
			Build: func(ctx context.Context) (capability.AnalyticsProvider, error) {
				if err := pingRemote(ctx, d.remote); err != nil {
					return nil, err
				}
				return buffered("remote", remote.NewAnalyticsSink(d.remote)), nil
			},
		}
	case "sqlite":
		preferred = capability.Candidate[capability.AnalyticsProvider]{
			Variant: "sqlite",
			Build: func(context.Context) (capability.AnalyticsProvider, error) {
				if d.stores.Analytics == nil {
					return nil, fmt.Errorf("analytics store is not available with the %s driver", d.cfg.Database.Driver)
				}
				return buffered("sqlite", d.stores.Analytics), nil
			},
		}
	default:
		return []capability.Candidate[capability.AnalyticsProvider]{noop}
	}
	return []capability.Candidate[capability.AnalyticsProvider]{preferred, noop}
}

func mediaCandidates(d providerDeps) []capability.Candidate[capability.MediaProvider] {
	m := d.cfg.Media
	scfg := storage.Config{
		Quota: quota.Config{
			StorageBytes:   m.QuotaBytes,
			MaxUploadBytes: m.MaxUploadBytes,
			EnforceMode:    quota.EnforceHard,
		},
		BaseURL: m.BaseURL,
		IDs:     d.ids,
	}
	local := capability.Candidate[capability.MediaProvider]{
		Variant: storage.VariantLocal,
		Build: func(context.Context) (capability.MediaProvider, error) {
			return storage.NewLocal(m.Dir, scfg)
		},
	}
	if m.Provider != storage.VariantS3 {
		return []capability.Candidate[capability.MediaProvider]{local}
	}
	remoteCfg := scfg
	remoteCfg.BaseURL = d.cfg.S3.PublicURL
	s3Media := capability.Candidate[capability.MediaProvider]{
		Variant: storage.VariantS3,
		Build: func(ctx context.Context) (capability.MediaProvider, error) {
			client, err := newS3Client(ctx, d.cfg.S3)
			if err != nil {
				return nil, err
			}
			return storage.NewS3(client, d.cfg.S3.Bucket, remoteCfg)
		},
	}
	return []capability.Candidate[capability.MediaProvider]{s3Media, local}
}

func cacheCandidates(d providerDeps) []capability.Candidate[capability.CacheProvider] {
	c := d.cfg.Cache
	ccfg := cache.Config{DefaultTTL: c.TTL, Prefix: c.Prefix, Clock: d.clock}
	instrument := func(p capability.CacheProvider) capability.CacheProvider {
		if d.metrics == nil {
			return p
		}
		return metrics.InstrumentCache(p, d.metrics)
	}
	disabled := capability.Candidate[capability.CacheProvider]{
		Variant: cache.VariantDisabled,
		Build: func(context.Context) (capability.CacheProvider, error) {
			return instrument(cache.NewDisabled()), nil
		},
	}

	var build func(ctx context.Context) (capability.CacheProvider, error)
	switch c.Provider {
	case cache.VariantMemory:
		build = func(context.Context) (capability.CacheProvider, error) {
			return cache.NewMemory(ccfg, c.SweepInterval), nil
		}
	case cache.VariantFilesystem:
		build = func(context.Context) (capability.CacheProvider, error) {
			return cache.NewFilesystem(c.Dir, ccfg)
		}
	case cache.VariantRedis:
		build = func(ctx context.Context) (capability.CacheProvider, error) {
			return cache.NewRedis(ctx, cache.RedisConfig{
				Addr:     d.cfg.Redis.Addr,
				Password: d.cfg.Redis.Password,
				DB:       d.cfg.Redis.DB,
				Cache:    ccfg,
			})
		}
	case cache.VariantS3:
		build = func(ctx context.Context) (capability.CacheProvider, error) {
			client, err := newS3Client(ctx, d.cfg.S3)
			if err != nil {
				return nil, err
			}
			return cache.NewS3(client, d.cfg.S3.CacheBucket, ccfg)
		}
	default:
		return []capability.Candidate[capability.CacheProvider]{disabled}
	}

	preferred := capability.Candidate[capability.CacheProvider]{
		Variant: c.Provider,
		Build: func(ctx context.Context) (capability.CacheProvider, error) {
			p, err := build(ctx)
			if err != nil {
				return nil, err
			}
			return instrument(p), nil
		},
	}
	return []capability.Candidate[capability.CacheProvider]{preferred, disabled}
}

func videoCandidates(d providerDeps) []capability.Candidate[capability.VideoProvider] {
	none := capability.Candidate[capability.VideoProvider]{
		Variant: video.VariantNone,
		Build: func(context.Context) (capability.VideoProvider, error) {
			return video.NewNone(), nil
		},
	}
	if d.cfg.Video.Provider != video.VariantRemote {
		return []capability.Candidate[capability.VideoProvider]{none}
	}
	hosted := capability.Candidate[capability.VideoProvider]{
		Variant: video.VariantRemote,
		Build: func(ctx context.Context) (capability.VideoProvider, error) {
			if err := pingRemote(ctx, d.remote); err != nil {
				return nil, err
			}
			return remote.NewVideoProvider(d.remote), nil
		},
	}
	return []capability.Candidate[capability.VideoProvider]{hosted, none}
}

func pingRemote(ctx context.Context, client *remote.Client) error {
	ctx, cancel := context.WithTimeout(ctx, remotePingTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("control plane unreachable: %w", err)
	}
	return nil
}

// newS3Client builds an S3 client from the default AWS credential chain.
// A custom endpoint switches to path-style addressing for S3-compatible
// servers.
func newS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
