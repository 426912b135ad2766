package frames

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestSaveAndRangeQuery(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	frame := testJPEG(t, 8, 8)
	for i := 0; i < 5; i++ {
		if err := store.Save("cam-7", base.Add(time.Duration(i)*time.Second), frame); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	// The two-second pad pulls in the frames at t=0 and t=4 even though
	// the query covers only t=2..t=2.
	got, err := store.FramesInRange("cam-7", base.Add(2*time.Second), base.Add(2*time.Second))
	if err != nil {
		t.Fatalf("FramesInRange: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d frames, want 5 (padded range)", len(got))
	}
}

func TestRangeQueryExcludesOtherFeeds(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	frame := testJPEG(t, 8, 8)
	if err := store.Save("cam-1", base, frame); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save("cam-2", base, frame); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.FramesInRange("cam-1", base, base)
	if err != nil {
		t.Fatalf("FramesInRange: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
}

func TestRangeQuerySpansMidnight(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	frame := testJPEG(t, 8, 8)
	before := time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)
	after := time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC)
	if err := store.Save("cam-7", before, frame); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save("cam-7", after, frame); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.FramesInRange("cam-7", before, after)
	if err != nil {
		t.Fatalf("FramesInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames across midnight, want 2", len(got))
	}
}

func TestRangeQuerySkipsUnparsableNames(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Save("cam-7", base, testJPEG(t, 8, 8)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	day := filepath.Join(dir, "cam-7", "2025-06-01")
	if err := os.WriteFile(filepath.Join(day, "not-a-timestamp.jpg"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("write junk file: %v", err)
	}

	got, err := store.FramesInRange("cam-7", base, base)
	if err != nil {
		t.Fatalf("FramesInRange: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1 (junk skipped)", len(got))
	}
}
