package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/artpar/cmskit/core/capability"
)

// VideoProvider sends videos to the hosted video service.
//
// API Contract:
//
//	POST /videos
//	Headers:  X-Context-ID, X-Filename, X-Content-Size, Content-Type
//	Body:     raw video bytes
//	Response: {"id": "...", "url": "...", "status": "processing"}
//
//	DELETE /videos/{id}
//	Response: 204
type VideoProvider struct {
	client *Client
}

// NewVideoProvider creates a remote video provider.
func NewVideoProvider(client *Client) *VideoProvider {
	return &VideoProvider{client: client}
}

func (p *VideoProvider) Name() string { return "remote" }

func (p *VideoProvider) Enabled() bool { return true }

func (p *VideoProvider) Upload(ctx context.Context, req capability.UploadRequest) (capability.VideoResult, error) {
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"X-Context-ID": req.ContextID,
		"X-Filename":   req.Filename,
	}
	if req.Size > 0 {
		headers["X-Content-Size"] = strconv.FormatInt(req.Size, 10)
	}

	var res capability.VideoResult
	if err := p.client.Do(ctx, http.MethodPost, "/videos", req.Body, contentType, headers, &res); err != nil {
		return capability.VideoResult{}, fmt.Errorf("upload video: %w", err)
	}
	return res, nil
}

func (p *VideoProvider) Delete(ctx context.Context, id string) error {
	err := p.client.Do(ctx, http.MethodDelete, "/videos/"+url.PathEscape(id), nil, "", nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete video: %w", err)
	}
	return nil
}

var _ capability.VideoProvider = (*VideoProvider)(nil)
