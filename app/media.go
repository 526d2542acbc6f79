package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/domain/quota"
	"github.com/artpar/cmskit/domain/upload"
	"github.com/artpar/cmskit/ports"
	"github.com/rs/zerolog"
)

// UploadInput is a file received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadOutcome is a finished upload. Video is set when the file went to
// the video provider.
type UploadOutcome struct {
	Placeholder upload.Placeholder      `json:"placeholder"`
	Video       *capability.VideoResult `json:"video,omitempty"`
}

// MediaService stores uploads through the media provider. Every upload is
// tracked as a pending placeholder until it ends; whatever way it ends, the
// placeholder is removed, and an object stored for an upload that did not
// complete is deleted.
type MediaService struct {
	access
	billing   capability.BillingProvider
	media     capability.MediaProvider
	video     capability.VideoProvider
	analytics capability.AnalyticsProvider
	tempIDs   ports.IDGenerator
	clock     ports.Clock
	metrics   Metrics
	logger    zerolog.Logger

	mu      sync.Mutex
	pending map[string]upload.Placeholder
}

// NewMediaService creates a new media service. tempIDs names placeholders.
func NewMediaService(
	owner capability.ContextProvider,
	billing capability.BillingProvider,
	media capability.MediaProvider,
	video capability.VideoProvider,
	analytics capability.AnalyticsProvider,
	tempIDs ports.IDGenerator,
	clock ports.Clock,
	metrics Metrics,
	logger zerolog.Logger,
) *MediaService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &MediaService{
		access:    access{owner: owner},
		billing:   billing,
		media:     media,
		video:     video,
		analytics: analytics,
		tempIDs:   tempIDs,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		pending:   make(map[string]upload.Placeholder),
	}
}

// Upload stores a file for the caller's context. Video files go to the
// video provider when it is enabled.
func (s *MediaService) Upload(ctx context.Context, userID string, in UploadInput) (out UploadOutcome, err error) {
	oc, err := s.write(ctx, userID)
	if err != nil {
		return UploadOutcome{}, err
	}
	if strings.TrimSpace(in.Filename) == "" || in.Body == nil {
		return UploadOutcome{}, ErrInvalidUpload
	}
	active, err := s.billing.HasActiveSubscription(ctx, oc.ID)
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("check subscription: %w", err)
	}
	if !active {
		return UploadOutcome{}, ErrPaymentRequired
	}

	p := upload.Start(s.tempIDs.New(), oc.ID, in.Filename, in.Size, s.clock.Now())
	s.register(p)

	toVideo := isVideo(in.ContentType) && s.video.Enabled()
	provider := s.media.Name()
	if toVideo {
		provider = s.video.Name()
	}
	var stored *capability.UploadResult
	var storedVideo *capability.VideoResult

	defer func() {
		s.unregister(p.TempID)
		if err == nil {
			s.metrics.UploadFinished(provider, OutcomeStored, in.Size)
			return
		}
		// The caller may be gone; delete with a context of our own.
		if stored != nil {
			if derr := s.media.Delete(context.WithoutCancel(ctx), stored.Key); derr != nil {
				s.logger.Error().Err(derr).Str("key", stored.Key).Msg("failed to delete orphaned upload")
			}
		}
		if storedVideo != nil {
			if derr := s.video.Delete(context.WithoutCancel(ctx), storedVideo.ID); derr != nil {
				s.logger.Error().Err(derr).Str("video_id", storedVideo.ID).Msg("failed to delete orphaned video")
			}
		}
		failed, _ := p.Fail(err.Error(), s.clock.Now())
		out = UploadOutcome{Placeholder: failed}
		s.metrics.UploadFinished(provider, uploadOutcome(err), 0)
		s.logger.Warn().Err(err).
			Str("temp_id", p.TempID).
			Str("context_id", oc.ID).
			Str("filename", in.Filename).
			Msg("upload failed")
	}()

	req := capability.UploadRequest{
		ContextID:   oc.ID,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        in.Size,
		Body:        in.Body,
	}

	var key, url string
	var video *capability.VideoResult
	if toVideo {
		vr, err := s.video.Upload(ctx, req)
		if err != nil {
			return out, fmt.Errorf("upload video: %w", err)
		}
		video, storedVideo = &vr, &vr
		key, url = vr.ID, vr.URL
	} else {
		res, err := s.media.Upload(ctx, req)
		if err != nil {
			return out, fmt.Errorf("upload: %w", err)
		}
		stored = &res
		key, url = res.Key, res.URL
		in.Size = res.Size
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	done, err := p.Complete(key, url, s.clock.Now())
	if err != nil {
		return out, err
	}
	s.logger.Info().
		Str("temp_id", p.TempID).
		Str("context_id", oc.ID).
		Str("key", key).
		Int64("size", in.Size).
		Msg("upload stored")
	s.analytics.Track(ctx, capability.Event{
		Name:       "media.uploaded",
		ContextID:  oc.ID,
		UserID:     userID,
		Properties: map[string]any{"key": key, "size": in.Size, "video": video != nil},
	})
	return UploadOutcome{Placeholder: done, Video: video}, nil
}

// Pending returns the in-flight uploads of the caller's context, oldest
// first.
func (s *MediaService) Pending(ctx context.Context, userID string) ([]upload.Placeholder, error) {
	oc, err := s.ownerContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []upload.Placeholder
	for _, p := range s.pending {
		if p.ContextID == oc.ID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].TempID < out[j].TempID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// Usage reports the storage position of the caller's context.
func (s *MediaService) Usage(ctx context.Context, userID string) (quota.Usage, error) {
	oc, err := s.ownerContext(ctx, userID)
	if err != nil {
		return quota.Usage{}, err
	}
	u, err := s.media.Usage(ctx, oc.ID)
	if err != nil {
		return quota.Usage{}, fmt.Errorf("get usage: %w", err)
	}
	return u, nil
}

// Delete removes a stored object of the caller's context.
func (s *MediaService) Delete(ctx context.Context, userID, key string) error {
	oc, err := s.write(ctx, userID)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(key, oc.ID+"/") {
		return capability.ErrForbidden
	}
	if err := s.media.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *MediaService) register(p upload.Placeholder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[p.TempID] = p
}

func (s *MediaService) unregister(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, tempID)
}

func isVideo(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "video/")
}

func uploadOutcome(err error) string {
	switch {
	case errors.Is(err, capability.ErrQuotaExceeded):
		return OutcomeQuota
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	}
	return OutcomeFailed
}
