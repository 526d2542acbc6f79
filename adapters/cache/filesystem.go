package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/artpar/cmskit/core/capability"
)

const (
	entrySuffix = ".json"
	tempPrefix  = ".tmp-"
)

// Filesystem stores one file per entry under a directory. File names are
// the blake2b-256 hash of the key; writes go to a temp file that is renamed
// into place so readers never see a partial entry.
type Filesystem struct {
	dir string
	cfg Config
}

// NewFilesystem creates the cache directory if needed and checks that it
// is writable.
func NewFilesystem(dir string, cfg Config) (*Filesystem, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, tempPrefix+"probe-*")
	if err != nil {
		return nil, fmt.Errorf("cache directory not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Filesystem{dir: dir, cfg: cfg.withDefaults()}, nil
}

func (f *Filesystem) Name() string { return VariantFilesystem }

// Dir returns the cache directory.
func (f *Filesystem) Dir() string { return f.dir }

func (f *Filesystem) path(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+entrySuffix)
}

func (f *Filesystem) Get(ctx context.Context, key string) ([]byte, bool) {
	p := f.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	env, at, err := decode(data)
	if err != nil || env.Key != key {
		return nil, false
	}
	if f.cfg.expired(at) {
		os.Remove(p)
		return nil, false
	}
	return env.Value, true
}

func (f *Filesystem) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := encode(key, value, f.cfg.expiry(ttl))
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

func (f *Filesystem) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// DeletePattern reads every entry to recover its key, since file names are
// hashes.
func (f *Filesystem) DeletePattern(ctx context.Context, pattern string) error {
	re := Glob(pattern)
	return f.walk(ctx, func(path string, env envelope) error {
		if !re.MatchString(env.Key) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

func (f *Filesystem) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, entrySuffix) || strings.HasPrefix(name, tempPrefix)) {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Filesystem) IsEnabled() bool { return true }

func (f *Filesystem) Close() error { return nil }

// walk calls fn for every readable entry. Unreadable or corrupt files are
// skipped.
func (f *Filesystem) walk(ctx context.Context, fn func(path string, env envelope) error) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), entrySuffix) {
			continue
		}
		path := filepath.Join(f.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		env, _, err := decode(data)
		if err != nil {
			continue
		}
		if err := fn(path, env); err != nil {
			return err
		}
	}
	return nil
}

var _ capability.CacheProvider = (*Filesystem)(nil)
