// Package storage provides the media variants behind
// capability.MediaProvider: local disk for self-hosted installs and
// S3-compatible object storage for hosted ones. Both enforce the storage
// quota of the owner context.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/quota"
	"github.com/artpar/cmskit/ports"
)

// Variant names.
const (
	VariantLocal = "local"
	VariantS3    = "s3"
)

// Config holds settings shared by both variants.
type Config struct {
	// Quota limits each context. StorageBytes = quota.Unlimited disables
	// the total cap.
	Quota quota.Config

	// BaseURL prefixes object keys to form public URLs.
	BaseURL string

	// IDs generates the unique part of object keys.
	IDs ports.IDGenerator
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename keeps a safe base name for use inside an object key.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Trim(unsafeName.ReplaceAllString(name, "-"), "-.")
	if name == "" {
		return "file"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

// objectKey returns "<context>/<id>-<filename>".
func objectKey(ids ports.IDGenerator, contextID, filename string) string {
	return contextID + "/" + ids.New() + "-" + SanitizeFilename(filename)
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// admit checks a declared upload size against the quota before any bytes
// are written.
func admit(cfg quota.Config, used, size int64) error {
	if size <= 0 {
		return nil
	}
	if res := quota.Check(used, cfg, size); !res.Allowed {
		return fmt.Errorf("%w: %s", capability.ErrQuotaExceeded, res.Reason)
	}
	return nil
}

// room returns how many bytes may still be written, or -1 for no limit.
// A context already over its quota has no room left.
func room(cfg quota.Config, used int64) int64 {
	limit, unlimited := int64(0), true
	if cfg.StorageBytes >= 0 && cfg.EnforceMode != quota.EnforceWarn {
		limit, unlimited = max(int64(float64(cfg.StorageBytes)*(1+cfg.GracePct))-used, 0), false
	}
	if cfg.MaxUploadBytes > 0 && (unlimited || cfg.MaxUploadBytes < limit) {
		limit, unlimited = cfg.MaxUploadBytes, false
	}
	if unlimited {
		return -1
	}
	return limit
}

// limitedBody wraps r so that reading more than max bytes fails with
// ErrQuotaExceeded. A negative max reads without limit.
func limitedBody(r io.Reader, max int64) io.Reader {
	if max < 0 {
		return r
	}
	return &capReader{r: io.LimitReader(r, max+1), max: max}
}

type capReader struct {
	r   io.Reader
	n   int64
	max int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.max {
		return n, capability.ErrQuotaExceeded
	}
	return n, err
}

func checkContext(ctx context.Context, req capability.UploadRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.ContextID == "" {
		return fmt.Errorf("upload: context id is required")
	}
	if strings.ContainsAny(req.ContextID, `/\`) || req.ContextID == "." || req.ContextID == ".." {
		return fmt.Errorf("upload: invalid context id %q", req.ContextID)
	}
	if req.Body == nil {
		return fmt.Errorf("upload: body is required")
	}
	return nil
}
