package video

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/artpar/cmskit/core/capability"
)

func TestNone(t *testing.T) {
	v := NewNone()
	if v.Enabled() {
		t.Error("expected video disabled")
	}
	if v.Name() != VariantNone {
		t.Errorf("Name() = %q, want %q", v.Name(), VariantNone)
	}
	_, err := v.Upload(context.Background(), capability.UploadRequest{ContextID: "c", Body: strings.NewReader("x")})
	if !errors.Is(err, capability.ErrNotAvailableInMode) {
		t.Errorf("Upload() error = %v, want ErrNotAvailableInMode", err)
	}
	if err := v.Delete(context.Background(), "vid_1"); !errors.Is(err, capability.ErrNotAvailableInMode) {
		t.Errorf("Delete() error = %v, want ErrNotAvailableInMode", err)
	}
}
