// Package upload models the placeholder lifecycle of a media upload.
//
// An upload starts as a Pending placeholder so the editor can show it
// immediately. It ends Uploaded, with the stored object's URL replacing the
// placeholder, or Failed, in which case the placeholder is removed. No other
// transitions exist.
package upload

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle position of a placeholder.
type State string

const (
	StatePending  State = "pending"
	StateUploaded State = "uploaded"
	StateFailed   State = "failed"
)

// ErrInvalidTransition is returned for any transition out of a final state.
var ErrInvalidTransition = errors.New("invalid upload transition")

// Placeholder is one in-flight upload (value type).
type Placeholder struct {
	TempID    string    `json:"temp_id"`
	ContextID string    `json:"context_id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	State     State     `json:"state"`
	Key       string    `json:"key,omitempty"`
	URL       string    `json:"url,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Start creates a pending placeholder.
func Start(tempID, contextID, filename string, size int64, now time.Time) Placeholder {
	return Placeholder{
		TempID:    tempID,
		ContextID: contextID,
		Filename:  filename,
		Size:      size,
		State:     StatePending,
		StartedAt: now,
	}
}

// Complete moves a pending placeholder to Uploaded.
func (p Placeholder) Complete(key, url string, now time.Time) (Placeholder, error) {
	if p.State != StatePending {
		return p, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.State, StateUploaded)
	}
	p.State = StateUploaded
	p.Key = key
	p.URL = url
	p.EndedAt = now
	return p, nil
}

// Fail moves a pending placeholder to Failed. A failed placeholder must be
// removed by its owner; Removable reports that.
func (p Placeholder) Fail(reason string, now time.Time) (Placeholder, error) {
	if p.State != StatePending {
		return p, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.State, StateFailed)
	}
	p.State = StateFailed
	p.Reason = reason
	p.EndedAt = now
	return p, nil
}

// IsFinal reports whether no further transitions are possible.
func (p Placeholder) IsFinal() bool {
	return p.State == StateUploaded || p.State == StateFailed
}

// Removable reports whether the placeholder must be dropped from the
// owner's list: it failed, or it never finished.
func (p Placeholder) Removable() bool {
	return p.State != StateUploaded
}
