package cache

import (
	"context"
	"time"

	"github.com/artpar/cmskit/core/capability"
)

// Disabled retains nothing. Every read misses and every write succeeds.
type Disabled struct{}

// NewDisabled returns the disabled variant.
func NewDisabled() Disabled { return Disabled{} }

func (Disabled) Name() string { return VariantDisabled }

func (Disabled) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Disabled) Delete(context.Context, string) error { return nil }

func (Disabled) DeletePattern(context.Context, string) error { return nil }

func (Disabled) Clear(context.Context) error { return nil }

func (Disabled) IsEnabled() bool { return false }

func (Disabled) Close() error { return nil }

var _ capability.CacheProvider = Disabled{}
