package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/safexstack/safex-monitor/internal/cache"
	"github.com/safexstack/safex-monitor/internal/events"
	"github.com/safexstack/safex-monitor/internal/metrics"
	"github.com/safexstack/safex-monitor/internal/models"
	"github.com/safexstack/safex-monitor/internal/repo"
	"github.com/safexstack/safex-monitor/internal/scoring"
	"github.com/safexstack/safex-monitor/internal/source"
)

// ControlPlane is the subset of the control-plane client the loop needs.
type ControlPlane interface {
	CheckLiveness(ctx context.Context, feedID string) (bool, error)
	PersistDetection(ctx context.Context, feedID string, frame models.FrameScore) error
	PersistAlert(ctx context.Context, feedID string, alert repo.AlertRecord) error
}

// SegmentAnalyzer judges one triggered segment.
type SegmentAnalyzer interface {
	Analyze(ctx context.Context, cfg models.FeedRuntimeConfig, seg models.Segment) (models.EscalationDecision, string)
}

// AlertDispatcher executes an alerting decision's actions.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, feedID string, decision models.EscalationDecision, channels models.AlertChannelConfig)
}

// FrameSink persists raw frames for later segment rehydration.
type FrameSink interface {
	Save(feedID string, ts time.Time, jpeg []byte) error
}

// RunLoopDeps bundles the collaborators one run loop drives.
type RunLoopDeps struct {
	Source     source.Source
	Scorer     *scoring.Scorer
	Buffer     *scoring.EventBuffer
	Acc        *Accumulator
	Analyzer   SegmentAnalyzer
	Dispatcher AlertDispatcher
	Control    ControlPlane
	Frames     FrameSink
	Events     events.Publisher
	Cache      cache.Provider
	CacheTTL   time.Duration
	Logger     *slog.Logger
}

// RunLoop drives the full pipeline for one feed: read, score, accumulate,
// and on trigger analyze and dispatch. Everything runs on one goroutine;
// an in-flight escalation blocks frame intake.
type RunLoop struct {
	cfg  models.FeedRuntimeConfig
	deps RunLoopDeps

	framesRead        atomic.Int64
	framesScored      atomic.Int64
	segmentsTriggered atomic.Int64
	alertsRaised      atomic.Int64
}

// NewRunLoop wires a run loop for one activated feed.
func NewRunLoop(cfg models.FeedRuntimeConfig, deps RunLoopDeps) *RunLoop {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With(slog.String("feed_id", cfg.FeedID))
	if deps.Events == nil {
		deps.Events = events.NewNoop()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NoopProvider{}
	}
	return &RunLoop{cfg: cfg, deps: deps}
}

// Run blocks until the feed is deactivated, the stream dies past its one
// reconnect allowance, or ctx is cancelled. Cancellation and deactivation
// return nil; everything else is an error.
func (r *RunLoop) Run(ctx context.Context) error {
	if err := r.deps.Source.Open(ctx); err != nil {
		return fmt.Errorf("open feed source: %w", err)
	}
	defer r.deps.Source.Close()

	r.deps.Logger.Info("feed monitoring started",
		slog.String("source_url", r.cfg.SourceURL),
		slog.Float64("trigger_threshold", r.cfg.TriggerThreshold))

	var (
		frameID          int64
		justReconnected  bool
		lastLivenessPoll = time.Now()
	)

	for {
		if err := ctx.Err(); err != nil {
			r.deps.Logger.Info("feed monitoring cancelled")
			return nil
		}

		if time.Since(lastLivenessPoll) >= r.cfg.CheckInterval {
			lastLivenessPoll = time.Now()
			active, err := r.deps.Control.CheckLiveness(ctx, r.cfg.FeedID)
			if err != nil {
				// The control plane being unreachable is not a reason
				// to stop watching a camera.
				r.deps.Logger.Warn("liveness poll failed", slog.Any("error", err))
			} else if !active {
				r.deps.Logger.Info("feed deactivated, stopping")
				return nil
			}
		}

		frame, err := r.deps.Source.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if justReconnected {
				return fmt.Errorf("stream failed again after reconnect: %w", err)
			}
			r.deps.Logger.Warn("stream read failed, reconnecting once", slog.Any("error", err))
			r.deps.Source.Close()
			if err := r.deps.Source.Open(ctx); err != nil {
				return fmt.Errorf("reconnect failed: %w", err)
			}
			justReconnected = true
			continue
		}
		justReconnected = false

		ts := time.Now()
		id := frameID
		frameID++
		r.framesRead.Add(1)

		if r.deps.Frames != nil {
			if err := r.deps.Frames.Save(r.cfg.FeedID, ts, frame.JPEG); err != nil {
				r.deps.Logger.Warn("frame persist failed", slog.Any("error", err))
			}
		}

		if !r.deps.Scorer.ShouldScore(id) {
			continue
		}
		r.processScoredFrame(ctx, frame.JPEG, id, ts)
	}
}

func (r *RunLoop) processScoredFrame(ctx context.Context, jpeg []byte, frameID int64, ts time.Time) {
	started := time.Now()
	score := r.deps.Scorer.Score(ctx, jpeg, frameID, ts)
	outcome := metrics.OutcomeSuccess
	if isErrorScore(score) {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveScoring(time.Since(started), outcome)
	r.framesScored.Add(1)

	r.deps.Buffer.Add(score)

	if err := r.deps.Control.PersistDetection(ctx, r.cfg.FeedID, score); err != nil {
		r.deps.Logger.Warn("detection persist failed", slog.Any("error", err))
	}
	if err := r.deps.Events.Publish(ctx, "detections."+r.cfg.FeedID, score); err != nil {
		r.deps.Logger.Warn("detection event publish failed", slog.Any("error", err))
	}
	r.snapshotWindow(ctx)

	seg, triggered := r.deps.Acc.Add(score)
	if !triggered {
		return
	}
	r.segmentsTriggered.Add(1)
	metrics.IncSegmentTriggered()
	if err := r.deps.Events.Publish(ctx, "segments."+r.cfg.FeedID, seg); err != nil {
		r.deps.Logger.Warn("segment event publish failed", slog.Any("error", err))
	}

	r.escalate(ctx, seg)
}

// escalate runs synchronously on the loop goroutine: no new frames are
// consumed until analysis and dispatch finish, which keeps the decision's
// evidence window honest.
func (r *RunLoop) escalate(ctx context.Context, seg models.Segment) {
	decision, clipURL := r.deps.Analyzer.Analyze(ctx, r.cfg, seg)
	if !decision.ShouldAlert {
		r.deps.Logger.Info("segment analyzed, no alert",
			slog.String("segment_id", seg.ID),
			slog.String("reasoning", decision.Reasoning))
		return
	}

	r.alertsRaised.Add(1)
	r.deps.Dispatcher.Dispatch(ctx, r.cfg.FeedID, decision, r.cfg.AlertChannels)

	alert := repo.AlertRecord{
		SegmentID:    seg.ID,
		Severity:     decision.EffectiveSeverity(),
		Narrative:    decision.Narrative,
		Reasoning:    decision.Reasoning,
		ClipURL:      clipURL,
		AverageScore: seg.AverageScore,
		StartTime:    seg.StartTime,
		EndTime:      seg.EndTime,
	}
	if err := r.deps.Control.PersistAlert(ctx, r.cfg.FeedID, alert); err != nil {
		r.deps.Logger.Error("alert persist failed",
			slog.String("segment_id", seg.ID), slog.Any("error", err))
	}
	if err := r.deps.Events.Publish(ctx, "alerts."+r.cfg.FeedID, alert); err != nil {
		r.deps.Logger.Warn("alert event publish failed", slog.Any("error", err))
	}
}

// windowKey is the cache key a feed's window statistics live under.
func windowKey(feedID string) string {
	return "window:" + feedID
}

func (r *RunLoop) snapshotWindow(ctx context.Context) {
	stats := r.deps.Buffer.Stats()
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := r.deps.Cache.Set(ctx, windowKey(r.cfg.FeedID), data, r.deps.CacheTTL); err != nil {
		r.deps.Logger.Debug("window snapshot cache failed", slog.Any("error", err))
	}
}

// FeedStats is a point-in-time view of one run loop's counters.
type FeedStats struct {
	FeedID            string             `json:"feed_id"`
	FramesRead        int64              `json:"frames_read"`
	FramesScored      int64              `json:"frames_scored"`
	SegmentsTriggered int64              `json:"segments_triggered"`
	AlertsRaised      int64              `json:"alerts_raised"`
	Window            models.WindowStats `json:"window"`
}

// Stats snapshots the loop's counters. Safe to call from other goroutines.
func (r *RunLoop) Stats() FeedStats {
	return FeedStats{
		FeedID:            r.cfg.FeedID,
		FramesRead:        r.framesRead.Load(),
		FramesScored:      r.framesScored.Load(),
		SegmentsTriggered: r.segmentsTriggered.Load(),
		AlertsRaised:      r.alertsRaised.Load(),
		Window:            r.deps.Buffer.Stats(),
	}
}

// HighRiskFrames exposes the buffer's high-risk tail for pattern mining.
func (r *RunLoop) HighRiskFrames() []models.FrameScore {
	return r.deps.Buffer.HighRiskFrames()
}

func isErrorScore(score models.FrameScore) bool {
	for _, tag := range score.Tags {
		if tag == "error" {
			return true
		}
	}
	return false
}
