package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func mjpegServer(t *testing.T, frames [][]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const boundary = "frameboundary"
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
		w.WriteHeader(http.StatusOK)
		for _, frame := range frames {
			fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame))
			w.Write(frame)
			fmt.Fprint(w, "\r\n")
		}
		fmt.Fprintf(w, "--%s--\r\n", boundary)
	}))
}

func TestMJPEGReadsFramesInOrder(t *testing.T) {
	frames := [][]byte{[]byte("frame-one"), []byte("frame-two"), []byte("frame-three")}
	srv := mjpegServer(t, frames)
	defer srv.Close()

	s := NewMJPEGSource(srv.URL)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	for i, want := range frames {
		got, err := s.ReadFrame(context.Background())
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if string(got.JPEG) != string(want) {
			t.Fatalf("frame %d = %q, want %q", i, got.JPEG, want)
		}
	}
	if _, err := s.ReadFrame(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("after last frame err = %v, want io.EOF", err)
	}
}

func TestMJPEGRejectsNonMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not a stream</html>"))
	}))
	defer srv.Close()

	s := NewMJPEGSource(srv.URL)
	if err := s.Open(context.Background()); err == nil {
		t.Fatal("expected error for non-multipart response")
	}
}

func TestMJPEGRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewMJPEGSource(srv.URL)
	if err := s.Open(context.Background()); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestMJPEGReadBeforeOpen(t *testing.T) {
	s := NewMJPEGSource("http://unused.local")
	if _, err := s.ReadFrame(context.Background()); err == nil {
		t.Fatal("expected error reading before open")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close before Open: %v", err)
	}
}
