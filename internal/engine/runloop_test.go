package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/safexstack/safex-monitor/internal/models"
	"github.com/safexstack/safex-monitor/internal/repo"
	"github.com/safexstack/safex-monitor/internal/scoring"
	"github.com/safexstack/safex-monitor/internal/source"
)

type fakeSource struct {
	frames [][]byte
	next   int
	opens  int
}

func (s *fakeSource) Open(context.Context) error {
	s.opens++
	return nil
}

func (s *fakeSource) readRaw() ([]byte, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeControl struct {
	mu          sync.Mutex
	activePolls int
	maxPolls    int
	alerts      []repo.AlertRecord
	detections  int
}

func (c *fakeControl) CheckLiveness(context.Context, string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activePolls++
	if c.maxPolls > 0 && c.activePolls > c.maxPolls {
		return false, nil
	}
	return true, nil
}

func (c *fakeControl) PersistDetection(context.Context, string, models.FrameScore) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detections++
	return nil
}

func (c *fakeControl) PersistAlert(_ context.Context, _ string, alert repo.AlertRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
	return nil
}

type fakeAnalyzer struct {
	decision models.EscalationDecision
	calls    int
}

func (a *fakeAnalyzer) Analyze(context.Context, models.FeedRuntimeConfig, models.Segment) (models.EscalationDecision, string) {
	a.calls++
	return a.decision, "http://clips.local/seg.avi"
}

type fakeDispatcher struct {
	calls []models.EscalationDecision
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ string, decision models.EscalationDecision, _ models.AlertChannelConfig) {
	d.calls = append(d.calls, decision)
}

type fixedClassifier struct {
	score float64
	err   error
	errAt map[int]bool
	calls int
}

func (f *fixedClassifier) ClassifyFrame(context.Context, []byte, string, []scoring.FrameSummary) (scoring.Classification, error) {
	i := f.calls
	f.calls++
	if f.err != nil && (f.errAt == nil || f.errAt[i]) {
		return scoring.Classification{}, f.err
	}
	return scoring.Classification{Description: "scene", Score: f.score}, nil
}

func testLoopConfig() models.FeedRuntimeConfig {
	return models.FeedRuntimeConfig{
		FeedID:           "cam-7",
		SourceURL:        "http://cams.local/7",
		Instruction:      "watch the yard",
		FPS:              10,
		FrameSkip:        1,
		WindowSeconds:    5,
		TriggerThreshold: 0.7,
		SegmentLength:    3,
		HistoryDepth:     3,
		CheckInterval:    time.Hour, // never polls unless a test shortens it
	}
}

func newTestLoop(cfg models.FeedRuntimeConfig, src *fakeSource, classifier *fixedClassifier, control *fakeControl, analyzer *fakeAnalyzer, dispatcher *fakeDispatcher) *RunLoop {
	scorer := scoring.NewScorer(classifier, cfg.Instruction, cfg.FrameSkip, cfg.HistoryDepth, nil)
	return NewRunLoop(cfg, RunLoopDeps{
		Source:     &sourceAdapter{src},
		Scorer:     scorer,
		Buffer:     scoring.NewEventBuffer(cfg.WindowSeconds, cfg.FPS),
		Acc:        NewAccumulator(cfg.TriggerThreshold, cfg.SegmentLength, PruneParams{}, nil),
		Analyzer:   analyzer,
		Dispatcher: dispatcher,
		Control:    control,
	})
}

// sourceAdapter bridges the byte-slice fake onto the source interface.
type sourceAdapter struct{ inner *fakeSource }

func (a *sourceAdapter) Open(ctx context.Context) error { return a.inner.Open(ctx) }
func (a *sourceAdapter) Close() error                   { return a.inner.Close() }
func (a *sourceAdapter) ReadFrame(context.Context) (source.Frame, error) {
	data, err := a.inner.readRaw()
	return source.Frame{JPEG: data}, err
}

func TestRunStopsWhenFeedDeactivated(t *testing.T) {
	cfg := testLoopConfig()
	cfg.CheckInterval = 0 // poll every iteration
	control := &fakeControl{maxPolls: 1}
	src := &fakeSource{frames: manyFrames(100)}
	loop := newTestLoop(cfg, src, &fixedClassifier{score: 0.1}, control, &fakeAnalyzer{}, &fakeDispatcher{})

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.next >= 100 {
		t.Fatal("loop consumed the whole stream instead of stopping on deactivation")
	}
}

func TestRunReconnectsOnceThenFails(t *testing.T) {
	cfg := testLoopConfig()
	src := &fakeSource{} // every read is EOF
	control := &fakeControl{}
	loop := newTestLoop(cfg, src, &fixedClassifier{score: 0.1}, control, &fakeAnalyzer{}, &fakeDispatcher{})

	err := loop.Run(context.Background())
	if err == nil {
		t.Fatal("expected error after reconnect allowance exhausted")
	}
	if src.opens != 2 {
		t.Fatalf("source opened %d times, want 2 (initial + one reconnect)", src.opens)
	}
}

func TestRunTriggersAnalysisAndDispatch(t *testing.T) {
	cfg := testLoopConfig()
	src := &fakeSource{frames: manyFrames(3)}
	control := &fakeControl{}
	analyzer := &fakeAnalyzer{decision: models.EscalationDecision{
		Narrative:   "Person in restricted area.",
		ShouldAlert: true,
		Severity:    models.SeverityHigh,
	}}
	dispatcher := &fakeDispatcher{}
	loop := newTestLoop(cfg, src, &fixedClassifier{score: 0.9}, control, analyzer, dispatcher)

	// Stream ends after the three frames; the loop errors out after its
	// reconnect, which is fine for this test.
	_ = loop.Run(context.Background())

	if analyzer.calls != 1 {
		t.Fatalf("analyzer called %d times, want 1", analyzer.calls)
	}
	if len(dispatcher.calls) != 1 {
		t.Fatalf("dispatcher called %d times, want 1", len(dispatcher.calls))
	}
	if len(control.alerts) != 1 {
		t.Fatalf("alerts persisted = %d, want 1", len(control.alerts))
	}
	alert := control.alerts[0]
	if alert.Severity != models.SeverityHigh || alert.ClipURL == "" {
		t.Fatalf("persisted alert = %+v", alert)
	}
	stats := loop.Stats()
	if stats.SegmentsTriggered != 1 || stats.AlertsRaised != 1 || stats.FramesScored != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRunNoDispatchWhenAnalysisDeclines(t *testing.T) {
	cfg := testLoopConfig()
	src := &fakeSource{frames: manyFrames(3)}
	analyzer := &fakeAnalyzer{decision: models.EscalationDecision{ShouldAlert: false, Reasoning: "benign"}}
	dispatcher := &fakeDispatcher{}
	control := &fakeControl{}
	loop := newTestLoop(cfg, src, &fixedClassifier{score: 0.9}, control, analyzer, dispatcher)

	_ = loop.Run(context.Background())

	if analyzer.calls != 1 {
		t.Fatalf("analyzer called %d times, want 1", analyzer.calls)
	}
	if len(dispatcher.calls) != 0 {
		t.Fatal("dispatcher must not run for a declined decision")
	}
	if len(control.alerts) != 0 {
		t.Fatal("no alert should be persisted for a declined decision")
	}
}

func TestRunSurvivesScoringFailures(t *testing.T) {
	cfg := testLoopConfig()
	src := &fakeSource{frames: manyFrames(6)}
	control := &fakeControl{}
	classifier := &fixedClassifier{
		score: 0.9,
		err:   errors.New("model down"),
		errAt: map[int]bool{1: true, 2: true},
	}
	loop := newTestLoop(cfg, src, classifier, control, &fakeAnalyzer{}, &fakeDispatcher{})

	_ = loop.Run(context.Background())

	stats := loop.Stats()
	if stats.FramesScored != 6 {
		t.Fatalf("frames scored = %d, want 6 (failures still produce scores)", stats.FramesScored)
	}
	if control.detections != 6 {
		t.Fatalf("detections persisted = %d, want 6", control.detections)
	}
}

func TestRunRespectsFrameSkip(t *testing.T) {
	cfg := testLoopConfig()
	cfg.FrameSkip = 3
	src := &fakeSource{frames: manyFrames(9)}
	classifier := &fixedClassifier{score: 0.1}
	loop := newTestLoop(cfg, src, classifier, &fakeControl{}, &fakeAnalyzer{}, &fakeDispatcher{})

	_ = loop.Run(context.Background())

	if classifier.calls != 3 {
		t.Fatalf("classifier called %d times for 9 frames at stride 3, want 3", classifier.calls)
	}
	stats := loop.Stats()
	if stats.FramesRead != 9 || stats.FramesScored != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func manyFrames(n int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = []byte{0xff, 0xd8, byte(i)}
	}
	return frames
}
