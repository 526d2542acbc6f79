// Package video provides the disabled video variant used when no video host
// is configured. The hosted variant lives in the remote package.
package video

import (
	"context"
	"fmt"

	"github.com/artpar/cmskit/core/capability"
)

// Variant names.
const (
	VariantNone   = "none"
	VariantRemote = "remote"
)

// None offers no video uploads.
type None struct{}

// NewNone creates the disabled video provider.
func NewNone() None { return None{} }

func (None) Name() string  { return VariantNone }
func (None) Enabled() bool { return false }

func (None) Upload(context.Context, capability.UploadRequest) (capability.VideoResult, error) {
	return capability.VideoResult{}, fmt.Errorf("video upload: %w", capability.ErrNotAvailableInMode)
}

func (None) Delete(context.Context, string) error {
	return fmt.Errorf("video delete: %w", capability.ErrNotAvailableInMode)
}

var _ capability.VideoProvider = None{}
