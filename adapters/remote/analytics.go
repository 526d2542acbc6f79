package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/artpar/cmskit/ports"
)

// AnalyticsSink posts event batches to the control plane.
//
// API Contract:
//
//	POST /analytics/events
//	Request:  {"events": [{"name": "...", "context_id": "...", "properties": {...}, "at": "..."}]}
//	Response: 202, empty body
type AnalyticsSink struct {
	client *Client
}

// NewAnalyticsSink creates a remote analytics sink.
func NewAnalyticsSink(client *Client) *AnalyticsSink {
	return &AnalyticsSink{client: client}
}

type remoteEvent struct {
	Name       string         `json:"name"`
	ContextID  string         `json:"context_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	At         time.Time      `json:"at"`
}

// Record sends one batch.
func (s *AnalyticsSink) Record(ctx context.Context, events []ports.AnalyticsRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := make([]remoteEvent, len(events))
	for i, e := range events {
		batch[i] = remoteEvent{
			Name:       e.Name,
			ContextID:  e.ContextID,
			UserID:     e.UserID,
			Properties: e.Properties,
			At:         e.At,
		}
	}
	return s.client.Request(ctx, http.MethodPost, "/analytics/events", map[string]any{"events": batch}, nil)
}

var _ ports.AnalyticsSink = (*AnalyticsSink)(nil)
