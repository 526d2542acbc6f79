package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/quota"
)

// Local stores uploads under a directory, one subdirectory per context.
type Local struct {
	root string
	cfg  Config
}

// NewLocal creates the root directory if needed.
func NewLocal(root string, cfg Config) (*Local, error) {
	if root == "" {
		return nil, errors.New("media directory is required")
	}
	if cfg.IDs == nil {
		return nil, errors.New("media storage needs an id generator")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "/media"
	}
	return &Local{root: root, cfg: cfg}, nil
}

func (l *Local) Name() string { return VariantLocal }

// Root returns the media directory.
func (l *Local) Root() string { return l.root }

func (l *Local) Upload(ctx context.Context, req capability.UploadRequest) (capability.UploadResult, error) {
	if err := checkContext(ctx, req); err != nil {
		return capability.UploadResult{}, err
	}
	used, err := l.used(req.ContextID)
	if err != nil {
		return capability.UploadResult{}, err
	}
	if err := admit(l.cfg.Quota, used, req.Size); err != nil {
		return capability.UploadResult{}, err
	}

	key := objectKey(l.cfg.IDs, req.ContextID, req.Filename)
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return capability.UploadResult{}, fmt.Errorf("create context directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return capability.UploadResult{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, limitedBody(&ctxReader{ctx: ctx, r: req.Body}, room(l.cfg.Quota, used)))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return capability.UploadResult{}, fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return capability.UploadResult{}, fmt.Errorf("commit upload: %w", err)
	}

	return capability.UploadResult{Key: key, URL: publicURL(l.cfg.BaseURL, key), Size: n}, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	p := l.path(key)
	if p == "" {
		return fmt.Errorf("invalid media key %q", key)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) Usage(ctx context.Context, contextID string) (quota.Usage, error) {
	used, err := l.used(contextID)
	if err != nil {
		return quota.Usage{}, err
	}
	return quota.UsageOf(used, l.cfg.Quota), nil
}

// path maps a key to a file below root. Keys that would escape root map
// to "".
func (l *Local) path(key string) string {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return ""
	}
	return filepath.Join(l.root, clean)
}

func (l *Local) used(contextID string) (int64, error) {
	var total int64
	err := filepath.WalkDir(filepath.Join(l.root, contextID), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure storage: %w", err)
	}
	return total, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ capability.MediaProvider = (*Local)(nil)
