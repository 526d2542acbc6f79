package cache_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cmskit/adapters/cache"
	"github.com/artpar/cmskit/adapters/clock"
	"github.com/artpar/cmskit/core/capability"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGlob(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"item:c1:*", "item:c1:abc", true},
		{"item:c1:*", "item:c1:", true},
		{"item:c1:*", "item:c2:abc", false},
		{"item:?:x", "item:a:x", true},
		{"item:?:x", "item:ab:x", false},
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"[x]*", "[x]1", true},
		{"[x]*", "x1", false},
		{"*", "anything", true},
		{"exact", "exact", true},
		{"exact", "exact2", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, cache.Glob(tt.pattern).MatchString(tt.key))
		})
	}
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	c := cache.NewDisabled()

	require.NoError(t, c.Set(ctx, "item:c1:i1", []byte(`{"title":"Hello"}`), 0))
	_, ok := c.Get(ctx, "item:c1:i1")
	assert.False(t, ok, "disabled cache must always miss")
	assert.False(t, c.IsEnabled())
	assert.NoError(t, c.DeletePattern(ctx, "item:c1:*"))
	assert.NoError(t, c.Close())
}

// ----------------------------------------------------------------------------
// Shared behavior of every retaining variant
// ----------------------------------------------------------------------------

type factory func(t *testing.T, cfg cache.Config) capability.CacheProvider

func variants() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T, cfg cache.Config) capability.CacheProvider {
			c := cache.NewMemory(cfg, time.Hour)
			t.Cleanup(func() { c.Close() })
			return c
		},
		"filesystem": func(t *testing.T, cfg cache.Config) capability.CacheProvider {
			c, err := cache.NewFilesystem(t.TempDir(), cfg)
			require.NoError(t, err)
			return c
		},
		"redis": func(t *testing.T, cfg cache.Config) capability.CacheProvider {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			c := cache.NewRedisWithClient(client, cfg)
			t.Cleanup(func() { c.Close() })
			return c
		},
		"s3": func(t *testing.T, cfg cache.Config) capability.CacheProvider {
			c, err := cache.NewS3(newFakeS3(2), "bucket", cfg)
			require.NoError(t, err)
			return c
		},
	}
}

func TestVariants_SetGetDelete(t *testing.T) {
	for name, newCache := range variants() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newCache(t, cache.Config{Prefix: "cms:"})

			_, ok := c.Get(ctx, "item:c1:i1")
			assert.False(t, ok, "expected miss before Set")

			value := []byte(`{"title":"Hello","tags":["a","b"]}`)
			require.NoError(t, c.Set(ctx, "item:c1:i1", value, time.Minute))

			got, ok := c.Get(ctx, "item:c1:i1")
			require.True(t, ok)
			assert.JSONEq(t, string(value), string(got))
			assert.True(t, c.IsEnabled())

			require.NoError(t, c.Delete(ctx, "item:c1:i1"))
			_, ok = c.Get(ctx, "item:c1:i1")
			assert.False(t, ok, "expected miss after Delete")

			assert.NoError(t, c.Delete(ctx, "never-set"), "deleting a missing key is not an error")
		})
	}
}

func TestVariants_Expiry(t *testing.T) {
	for name, newCache := range variants() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := clock.NewFake(epoch)
			c := newCache(t, cache.Config{Clock: clk, DefaultTTL: 10 * time.Minute})

			require.NoError(t, c.Set(ctx, "short", []byte(`1`), time.Minute))
			require.NoError(t, c.Set(ctx, "default", []byte(`2`), 0))
			require.NoError(t, c.Set(ctx, "forever", []byte(`3`), -1))

			clk.Advance(59 * time.Second)
			_, ok := c.Get(ctx, "short")
			assert.True(t, ok, "entry should live until its ttl")

			clk.Advance(time.Second)
			_, ok = c.Get(ctx, "short")
			assert.False(t, ok, "entry should expire at its ttl")

			_, ok = c.Get(ctx, "default")
			assert.True(t, ok, "zero ttl should use the default")

			clk.Advance(10 * time.Minute)
			_, ok = c.Get(ctx, "default")
			assert.False(t, ok, "default ttl should expire")

			clk.Advance(24 * time.Hour)
			_, ok = c.Get(ctx, "forever")
			assert.True(t, ok, "negative ttl should never expire")
		})
	}
}

func TestVariants_DeletePattern(t *testing.T) {
	for name, newCache := range variants() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newCache(t, cache.Config{Prefix: "p/"})

			keys := []string{"item:c1:a", "item:c1:b", "item:c1:c", "item:c10:a", "item:c2:a", "list:c1"}
			for _, k := range keys {
				require.NoError(t, c.Set(ctx, k, []byte(`{}`), time.Hour))
			}

			require.NoError(t, c.DeletePattern(ctx, "item:c1:*"))

			for _, k := range []string{"item:c1:a", "item:c1:b", "item:c1:c"} {
				_, ok := c.Get(ctx, k)
				assert.False(t, ok, "expected %s removed", k)
			}
			for _, k := range []string{"item:c10:a", "item:c2:a", "list:c1"} {
				_, ok := c.Get(ctx, k)
				assert.True(t, ok, "expected %s kept", k)
			}

			require.NoError(t, c.Clear(ctx))
			for _, k := range keys {
				_, ok := c.Get(ctx, k)
				assert.False(t, ok, "expected %s cleared", k)
			}
		})
	}
}

func TestVariants_RejectNonJSON(t *testing.T) {
	for name, newCache := range variants() {
		t.Run(name, func(t *testing.T) {
			c := newCache(t, cache.Config{})
			err := c.Set(context.Background(), "k", []byte("not json"), 0)
			assert.ErrorIs(t, err, cache.ErrInvalidValue)
			_, ok := c.Get(context.Background(), "k")
			assert.False(t, ok)
		})
	}
}

// ----------------------------------------------------------------------------
// Memory
// ----------------------------------------------------------------------------

func TestMemory_SweeperRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	c := cache.NewMemory(cache.Config{Clock: clk}, 5*time.Millisecond)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", []byte(`1`), time.Second))
	require.NoError(t, c.Set(ctx, "b", []byte(`2`), time.Hour))
	assert.Equal(t, 2, c.Len())

	clk.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	_, ok := c.Get(ctx, "b")
	assert.True(t, ok)
}

func TestMemory_Sweep(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	c := cache.NewMemory(cache.Config{Clock: clk}, time.Hour)
	defer c.Close()

	_ = c.Set(ctx, "a", []byte(`1`), time.Second)
	_ = c.Set(ctx, "b", []byte(`2`), time.Second)
	_ = c.Set(ctx, "c", []byte(`3`), -1)

	assert.Equal(t, 0, c.Sweep())
	clk.Advance(time.Second)
	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestMemory_CloseTwice(t *testing.T) {
	c := cache.NewMemory(cache.Config{}, time.Millisecond)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory(cache.Config{}, time.Hour)
	defer c.Close()

	v := []byte(`"abc"`)
	_ = c.Set(ctx, "k", v, 0)
	v[1] = 'z'

	got, _ := c.Get(ctx, "k")
	assert.Equal(t, `"abc"`, string(got))
	got[1] = 'y'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, `"abc"`, string(again))
}

func TestMemory_CancelledContext(t *testing.T) {
	c := cache.NewMemory(cache.Config{}, time.Hour)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Set(ctx, "k", []byte(`1`), 0), context.Canceled)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

// ----------------------------------------------------------------------------
// Filesystem
// ----------------------------------------------------------------------------

func TestFilesystem_AtomicLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := cache.NewFilesystem(dir, cache.Config{})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "item:c1:i1", []byte(`{"a":1}`), 0))
	require.NoError(t, c.Set(ctx, "item:c1:i1", []byte(`{"a":2}`), 0))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "expected one entry file and no temp files")

	name := entries[0].Name()
	assert.True(t, strings.HasSuffix(name, ".json"))
	assert.Len(t, strings.TrimSuffix(name, ".json"), 64, "expected a hex blake2b-256 name")

	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"item:c1:i1","value":{"a":2},"expires_at":`+expiresAtOf(t, raw)+`}`, string(raw))
}

func expiresAtOf(t *testing.T, raw []byte) string {
	t.Helper()
	i := bytes.Index(raw, []byte(`"expires_at":`))
	require.GreaterOrEqual(t, i, 0)
	rest := raw[i+len(`"expires_at":`):]
	end := bytes.IndexAny(rest, ",}")
	n, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))
	return string(rest[:end])
}

func TestFilesystem_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := cache.NewFilesystem(dir, cache.Config{})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", []byte(`1`), 0))
	entries, _ := os.ReadDir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, entries[0].Name()), []byte("{broken"), 0o644))

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, c.DeletePattern(ctx, "*"), "corrupt files are skipped")
}

func TestFilesystem_ExpiredEntryRemoved(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	clk := clock.NewFake(epoch)
	c, err := cache.NewFilesystem(dir, cache.Config{Clock: clk})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", []byte(`1`), time.Second))
	clk.Advance(time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "expired entry should be removed on read")
}

func TestFilesystem_RequiresDir(t *testing.T) {
	_, err := cache.NewFilesystem("", cache.Config{})
	assert.Error(t, err)
}

// ----------------------------------------------------------------------------
// Redis
// ----------------------------------------------------------------------------

func TestRedis_ConnectionError(t *testing.T) {
	_, err := cache.NewRedis(context.Background(), cache.RedisConfig{Addr: "localhost:1"})
	assert.Error(t, err)
}

func TestRedis_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedis(context.Background(), cache.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "redis", c.Name())
}

func TestRedis_ServerTTLAndPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisWithClient(client, cache.Config{Prefix: "cms:"})
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte(`1`), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte(`1`), -1))

	assert.True(t, mr.Exists("cms:k"))
	assert.Equal(t, time.Minute, mr.TTL("cms:k").Round(time.Second))
	assert.Equal(t, time.Duration(0), mr.TTL("cms:forever"))

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_PatternMetacharactersAreLiteral(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisWithClient(client, cache.Config{})
	defer c.Close()

	_ = c.Set(ctx, "[a]:1", []byte(`1`), 0)
	_ = c.Set(ctx, "a:1", []byte(`1`), 0)

	require.NoError(t, c.DeletePattern(ctx, "[a]:*"))
	_, ok := c.Get(ctx, "[a]:1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a:1")
	assert.True(t, ok)
}

func TestRedis_UnreachableIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisWithClient(client, cache.Config{})
	_ = c.Set(context.Background(), "k", []byte(`1`), 0)

	mr.Close()
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok, "read failures are misses")
	c.Close()
}

// ----------------------------------------------------------------------------
// S3
// ----------------------------------------------------------------------------

func TestS3_RequiresBucket(t *testing.T) {
	_, err := cache.NewS3(newFakeS3(0), "", cache.Config{})
	assert.Error(t, err)
}

func TestS3_DeletePatternPaginates(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3(2)
	c, err := cache.NewS3(fake, "bucket", cache.Config{Prefix: "cache/"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(ctx, "item:c1:"+strconv.Itoa(i), []byte(`{}`), 0))
	}
	require.NoError(t, c.Set(ctx, "item:c2:0", []byte(`{}`), 0))

	require.NoError(t, c.DeletePattern(ctx, "item:c1:*"))
	assert.Equal(t, []string{"cache/item:c2:0"}, fake.keys())
	assert.GreaterOrEqual(t, fake.listCalls, 3, "expected paged listing")
}

// fakeS3 is an in-memory bucket that pages listings.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	pageSize  int
	listCalls int
}

func newFakeS3(pageSize int) *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: pageSize}
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	f.listCalls++
	var matched []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matched = append(matched, k)
		}
	}
	f.mu.Unlock()
	sort.Strings(matched)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for i, k := range matched {
			if k > tok {
				start = i
				break
			}
			start = len(matched)
		}
	}
	end := len(matched)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(matched))}
	for _, k := range matched[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(matched) && end > 0 {
		out.NextContinuationToken = aws.String(matched[end-1])
	}
	return out, nil
}
