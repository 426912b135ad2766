// Package clipstore persists triggered-segment clips to object storage so
// alerts can link durable evidence.
package clipstore

import "context"

// Store uploads one clip per triggered segment and returns a stable URL.
type Store interface {
	Upload(ctx context.Context, feedID, segmentID string, clip []byte) (string, error)
}

// Noop discards clips. Used when object storage is not configured.
type Noop struct{}

// NewNoop returns a Store that stores nothing.
func NewNoop() *Noop { return &Noop{} }

// Upload drops the clip and returns an empty URL.
func (*Noop) Upload(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
