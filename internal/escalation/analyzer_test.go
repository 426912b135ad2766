package escalation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/safexstack/safex-monitor/internal/models"
	"github.com/safexstack/safex-monitor/internal/repo"
)

type fakeAnalyzeClient struct {
	decision models.EscalationDecision
	err      error
	got      *repo.SegmentAnalysisRequest
}

func (f *fakeAnalyzeClient) AnalyzeSegment(_ context.Context, req repo.SegmentAnalysisRequest) (models.EscalationDecision, error) {
	f.got = &req
	return f.decision, f.err
}

type fakeFrameSource struct {
	frames [][]byte
	err    error
}

func (f *fakeFrameSource) FramesInRange(string, time.Time, time.Time) ([][]byte, error) {
	return f.frames, f.err
}

type fakeClipStore struct {
	url string
	err error
}

func (f *fakeClipStore) Upload(context.Context, string, string, []byte) (string, error) {
	return f.url, f.err
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func testSegment() models.Segment {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var frames []models.FrameScore
	for i := 0; i < 3; i++ {
		frames = append(frames, models.NewFrameScore(int64(i), base.Add(time.Duration(i)*time.Second), 0.8, "scene", nil))
	}
	return models.NewSegment(frames)
}

func testFeedConfig() models.FeedRuntimeConfig {
	return models.FeedRuntimeConfig{FeedID: "cam-7", Instruction: "watch the fence", FPS: 10}
}

func TestAnalyzeSuccess(t *testing.T) {
	client := &fakeAnalyzeClient{decision: models.EscalationDecision{
		Narrative:   "Person climbing the fence.",
		ShouldAlert: true,
		Severity:    models.SeverityHigh,
	}}
	source := &fakeFrameSource{frames: [][]byte{testJPEG(t), testJPEG(t)}}
	clips := &fakeClipStore{url: "http://store.local/clips/seg.avi"}
	a := NewAnalyzer(client, source, clips, nil)

	decision, clipURL := a.Analyze(context.Background(), testFeedConfig(), testSegment())
	if !decision.ShouldAlert || decision.Severity != models.SeverityHigh {
		t.Fatalf("decision = %+v", decision)
	}
	if clipURL != clips.url {
		t.Fatalf("clip url = %q, want %q", clipURL, clips.url)
	}
	if client.got == nil || len(client.got.Clip) == 0 {
		t.Fatal("model was not handed an assembled clip")
	}
	if client.got.Instruction != "watch the fence" {
		t.Fatalf("instruction = %q", client.got.Instruction)
	}
}

func TestAnalyzeEmptyRehydrationIsObstruction(t *testing.T) {
	client := &fakeAnalyzeClient{}
	a := NewAnalyzer(client, &fakeFrameSource{}, nil, nil)

	decision, clipURL := a.Analyze(context.Background(), testFeedConfig(), testSegment())
	if !decision.ShouldAlert {
		t.Fatal("obstruction must alert")
	}
	if decision.Severity != models.SeverityCritical {
		t.Fatalf("severity = %v, want critical", decision.Severity)
	}
	if clipURL != "" {
		t.Fatalf("clip url = %q, want empty", clipURL)
	}
	if client.got != nil {
		t.Fatal("model must not be called when no frames exist")
	}
}

func TestAnalyzeModelFailureDegradesQuietly(t *testing.T) {
	client := &fakeAnalyzeClient{err: errors.New("gateway timeout")}
	source := &fakeFrameSource{frames: [][]byte{testJPEG(t)}}
	a := NewAnalyzer(client, source, nil, nil)

	decision, _ := a.Analyze(context.Background(), testFeedConfig(), testSegment())
	if decision.ShouldAlert {
		t.Fatal("a failed analysis must not alert on its own")
	}
	if decision.Reasoning == "" {
		t.Fatal("expected diagnostic reasoning")
	}
}

func TestAnalyzeClipUploadFailureKeepsDecision(t *testing.T) {
	client := &fakeAnalyzeClient{decision: models.EscalationDecision{ShouldAlert: true, Narrative: "x"}}
	source := &fakeFrameSource{frames: [][]byte{testJPEG(t)}}
	clips := &fakeClipStore{err: errors.New("bucket down")}
	a := NewAnalyzer(client, source, clips, nil)

	decision, clipURL := a.Analyze(context.Background(), testFeedConfig(), testSegment())
	if !decision.ShouldAlert {
		t.Fatal("upload failure must not suppress the decision")
	}
	if clipURL != "" {
		t.Fatalf("clip url = %q, want empty on failed upload", clipURL)
	}
}
