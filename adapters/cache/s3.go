package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/artpar/cmskit/core/capability"
)

// S3API is the subset of the S3 client the object-storage cache uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores one object per entry in an S3-compatible bucket.
type S3 struct {
	api    S3API
	bucket string
	cfg    Config
}

// NewS3 creates an object-storage cache. Keys are stored under cfg.Prefix.
func NewS3(api S3API, bucket string, cfg Config) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 cache: bucket is required")
	}
	return &S3{api: api, bucket: bucket, cfg: cfg.withDefaults()}, nil
}

func (c *S3) Name() string { return VariantS3 }

func (c *S3) objectKey(key string) string { return c.cfg.Prefix + key }

func (c *S3) Get(ctx context.Context, key string) ([]byte, bool) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		return nil, false
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false
	}
	env, at, err := decode(data)
	if err != nil || c.cfg.expired(at) {
		return nil, false
	}
	return env.Value, true
}

func (c *S3) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := encode(key, value, c.cfg.expiry(ttl))
	if err != nil {
		return err
	}
	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (c *S3) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

// DeletePattern lists objects under the pattern's literal prefix and
// deletes those whose key matches.
func (c *S3) DeletePattern(ctx context.Context, pattern string) error {
	re := Glob(pattern)
	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.cfg.Prefix + literalPrefix(pattern)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), c.cfg.Prefix)
			if !re.MatchString(key) {
				continue
			}
			if err := c.Delete(ctx, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *S3) Clear(ctx context.Context) error {
	return c.DeletePattern(ctx, "*")
}

func (c *S3) IsEnabled() bool { return true }

func (c *S3) Close() error { return nil }

var _ capability.CacheProvider = (*S3)(nil)
