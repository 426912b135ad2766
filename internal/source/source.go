// Package source abstracts where a feed's frames come from. The production
// implementation reads motion-JPEG over HTTP, the format IP cameras and
// restreamers commonly serve.
package source

import "context"

// Frame is one decoded-enough unit of video: a JPEG image and nothing else.
type Frame struct {
	JPEG []byte
}

// Source yields frames for one feed until closed or the stream ends.
type Source interface {
	Open(ctx context.Context) error
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// Opener creates a Source for a feed's stream URL. Indirection point for
// tests and for future protocol additions.
type Opener func(url string) Source
