package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/quota"
)

// S3API is the subset of the S3 client media storage uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores uploads in an S3-compatible bucket under "<context>/".
type S3 struct {
	api    S3API
	bucket string
	cfg    Config
}

// NewS3 creates S3 media storage.
func NewS3(api S3API, bucket string, cfg Config) (*S3, error) {
	if bucket == "" {
		return nil, errors.New("media bucket is required")
	}
	if cfg.IDs == nil {
		return nil, errors.New("media storage needs an id generator")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + bucket + ".s3.amazonaws.com"
	}
	return &S3{api: api, bucket: bucket, cfg: cfg}, nil
}

func (s *S3) Name() string { return VariantS3 }

// Upload streams the body to the bucket. Bodies without a declared size
// are capped at the remaining quota while streaming.
func (s *S3) Upload(ctx context.Context, req capability.UploadRequest) (capability.UploadResult, error) {
	if err := checkContext(ctx, req); err != nil {
		return capability.UploadResult{}, err
	}
	used, err := s.used(ctx, req.ContextID)
	if err != nil {
		return capability.UploadResult{}, err
	}
	if err := admit(s.cfg.Quota, used, req.Size); err != nil {
		return capability.UploadResult{}, err
	}

	key := objectKey(s.cfg.IDs, req.ContextID, req.Filename)
	body := &countingReader{r: limitedBody(req.Body, room(s.cfg.Quota, used))}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if req.ContentType != "" {
		in.ContentType = aws.String(req.ContentType)
	}
	if req.Size > 0 {
		in.ContentLength = aws.Int64(req.Size)
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		if errors.Is(err, capability.ErrQuotaExceeded) {
			return capability.UploadResult{}, err
		}
		return capability.UploadResult{}, fmt.Errorf("s3 put %s: %w", key, err)
	}
	return capability.UploadResult{Key: key, URL: publicURL(s.cfg.BaseURL, key), Size: body.n}, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (s *S3) Usage(ctx context.Context, contextID string) (quota.Usage, error) {
	used, err := s.used(ctx, contextID)
	if err != nil {
		return quota.Usage{}, err
	}
	return quota.UsageOf(used, s.cfg.Quota), nil
}

func (s *S3) used(ctx context.Context, contextID string) (int64, error) {
	var total int64
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(contextID + "/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("measure storage: %w", err)
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}
	return total, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ capability.MediaProvider = (*S3)(nil)
