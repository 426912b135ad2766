// Package events fans pipeline milestones out to interested services over a
// message bus: scored detections, triggered segments, and raised alerts.
package events

import "context"

// Publisher emits one pipeline event. Implementations must be safe for use
// from multiple feed run loops.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// Noop drops all events. Used when no bus is configured.
type Noop struct{}

// NewNoop returns a Publisher that publishes nothing.
func NewNoop() *Noop { return &Noop{} }

// Publish drops the event.
func (*Noop) Publish(context.Context, string, any) error { return nil }

// Close is a no-op.
func (*Noop) Close() {}
