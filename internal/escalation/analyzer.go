package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/safexstack/safex-monitor/internal/clipstore"
	"github.com/safexstack/safex-monitor/internal/frames"
	"github.com/safexstack/safex-monitor/internal/metrics"
	"github.com/safexstack/safex-monitor/internal/models"
	"github.com/safexstack/safex-monitor/internal/repo"
)

// AnalyzeClient is the external multi-frame contextual-reasoning capability.
type AnalyzeClient interface {
	AnalyzeSegment(ctx context.Context, req repo.SegmentAnalysisRequest) (models.EscalationDecision, error)
}

// FrameSource rehydrates the raw frames covering a segment's time range.
type FrameSource interface {
	FramesInRange(feedID string, start, end time.Time) ([][]byte, error)
}

// Analyzer turns a triggered segment into an escalation decision: it
// rehydrates the raw frames into a clip, asks the contextual model to judge
// it against the monitoring instruction, and archives the clip as evidence.
type Analyzer struct {
	client AnalyzeClient
	source FrameSource
	clips  clipstore.Store
	logger *slog.Logger
}

// NewAnalyzer wires an analyzer; clips may be a Noop store.
func NewAnalyzer(client AnalyzeClient, source FrameSource, clips clipstore.Store, logger *slog.Logger) *Analyzer {
	if clips == nil {
		clips = clipstore.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, source: source, clips: clips, logger: logger}
}

// Analyze produces the decision for one triggered segment plus the archived
// clip URL when available. It never returns an error: a failed model call
// degrades to a non-alerting decision with diagnostic reasoning, while a
// feed that scored high yet has no retrievable frames is treated as a
// suspected camera obstruction and escalated at critical severity.
func (a *Analyzer) Analyze(ctx context.Context, cfg models.FeedRuntimeConfig, seg models.Segment) (models.EscalationDecision, string) {
	started := time.Now()

	raw, err := a.source.FramesInRange(cfg.FeedID, seg.StartTime, seg.EndTime)
	if err != nil {
		a.logger.Error("frame rehydration failed",
			slog.String("feed_id", cfg.FeedID), slog.String("segment_id", seg.ID), slog.Any("error", err))
	}
	if len(raw) == 0 {
		metrics.ObserveAnalysis(time.Since(started), metrics.OutcomeError)
		return a.obstructionDecision(cfg, seg), ""
	}

	clip, err := frames.BuildClip(raw, cfg.FPS)
	if err != nil {
		a.logger.Error("clip assembly failed",
			slog.String("feed_id", cfg.FeedID), slog.String("segment_id", seg.ID), slog.Any("error", err))
		metrics.ObserveAnalysis(time.Since(started), metrics.OutcomeError)
		return a.obstructionDecision(cfg, seg), ""
	}

	decision, err := a.client.AnalyzeSegment(ctx, repo.SegmentAnalysisRequest{
		FeedID:        cfg.FeedID,
		Instruction:   cfg.Instruction,
		Clip:          clip,
		Frames:        seg.Frames,
		AlertChannels: cfg.AlertChannels,
	})
	if err != nil {
		a.logger.Error("contextual analysis failed",
			slog.String("feed_id", cfg.FeedID), slog.String("segment_id", seg.ID), slog.Any("error", err))
		metrics.ObserveAnalysis(time.Since(started), metrics.OutcomeError)
		return models.EscalationDecision{
			Narrative:   "Contextual analysis unavailable for segment " + seg.ID + ".",
			ShouldAlert: false,
			Reasoning:   "analysis call failed: " + err.Error(),
		}, ""
	}
	metrics.ObserveAnalysis(time.Since(started), metrics.OutcomeSuccess)

	clipURL, err := a.clips.Upload(ctx, cfg.FeedID, seg.ID, clip)
	if err != nil {
		// Evidence archival is best-effort; the decision still stands.
		a.logger.Warn("clip upload failed",
			slog.String("feed_id", cfg.FeedID), slog.String("segment_id", seg.ID), slog.Any("error", err))
		clipURL = ""
	}

	return decision, clipURL
}

// obstructionDecision covers the blinded-camera case: the scorer saw enough
// to trigger, yet the frames backing the segment cannot be recovered. That
// combination reads as tampering and is never silently dropped.
func (a *Analyzer) obstructionDecision(cfg models.FeedRuntimeConfig, seg models.Segment) models.EscalationDecision {
	return models.EscalationDecision{
		Narrative:            "Camera obstruction suspected on feed " + cfg.FeedID + ": triggered segment " + seg.ID + " has no recoverable frames.",
		InstructionAlignment: "Feed cannot currently be evaluated against the monitoring instruction.",
		ShouldAlert:          true,
		Severity:             models.SeverityCritical,
		RecommendedActions: []string{
			"Send SMS to all contacts about possible camera tampering",
			"Log the obstruction event",
		},
		Reasoning: "High anomaly average with an empty frame range indicates a blocked, moved, or failed camera.",
	}
}
