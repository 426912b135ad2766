package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// MJPEGSource reads frames from a multipart/x-mixed-replace JPEG stream.
type MJPEGSource struct {
	url    string
	client *http.Client
	body   io.ReadCloser
	reader *multipart.Reader
}

// NewMJPEGSource builds a source for one stream URL. The HTTP client must
// have no overall timeout since the response body is a live stream.
func NewMJPEGSource(url string) *MJPEGSource {
	return &MJPEGSource{url: url, client: &http.Client{}}
}

// Open connects and validates the stream content type.
func (s *MJPEGSource) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("stream returned %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("parse stream content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return fmt.Errorf("stream is %s, want multipart mjpeg", mediaType)
	}

	s.body = resp.Body
	s.reader = multipart.NewReader(resp.Body, params["boundary"])
	return nil
}

// ReadFrame returns the next JPEG part. io.EOF means the stream ended.
func (s *MJPEGSource) ReadFrame(ctx context.Context) (Frame, error) {
	if s.reader == nil {
		return Frame{}, fmt.Errorf("stream not open")
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	part, err := s.reader.NextPart()
	if err != nil {
		return Frame{}, err
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame part: %w", err)
	}
	return Frame{JPEG: data}, nil
}

// Close tears the connection down. Safe to call before Open.
func (s *MJPEGSource) Close() error {
	s.reader = nil
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}
