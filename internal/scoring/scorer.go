package scoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/safexstack/safex-monitor/internal/models"
)

// Classification is the validated output of the external frame classifier.
type Classification struct {
	Description string
	Score       float64
	Tags        []string
}

// FrameSummary is the compact form of a prior classification handed back to
// the classifier so it can reason about trends without its own memory.
type FrameSummary struct {
	Description string   `json:"description"`
	Score       float64  `json:"anomaly_score"`
	Tags        []string `json:"tags"`
}

// ClassifyClient is the external single-frame classification capability.
type ClassifyClient interface {
	ClassifyFrame(ctx context.Context, image []byte, instruction string, history []FrameSummary) (Classification, error)
}

// Scorer wraps the classifier for one feed. It owns the rolling history of
// recent summaries; the history is per-instance, never shared across feeds.
type Scorer struct {
	client       ClassifyClient
	instruction  string
	frameSkip    int
	historyDepth int
	history      []FrameSummary
	logger       *slog.Logger
}

// NewScorer constructs a Scorer for a single feed.
func NewScorer(client ClassifyClient, instruction string, frameSkip, historyDepth int, logger *slog.Logger) *Scorer {
	if frameSkip < 1 {
		frameSkip = 1
	}
	if historyDepth < 1 {
		historyDepth = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		client:       client,
		instruction:  instruction,
		frameSkip:    frameSkip,
		historyDepth: historyDepth,
		logger:       logger,
	}
}

// ShouldScore reports whether the sampling stride accepts this frame id.
func (s *Scorer) ShouldScore(frameID int64) bool {
	return frameID%int64(s.frameSkip) == 0
}

// Score classifies one frame. A failed or malformed external call yields the
// safe default score and leaves the history untouched, so one bad call never
// poisons the context handed to subsequent calls.
func (s *Scorer) Score(ctx context.Context, image []byte, frameID int64, ts time.Time) models.FrameScore {
	result, err := s.client.ClassifyFrame(ctx, image, s.instruction, s.History())
	if err != nil {
		s.logger.Warn("frame classification failed",
			slog.Int64("frame_id", frameID), slog.Any("error", err))
		return models.ErrorFrameScore(frameID, ts, "classification failed: "+err.Error())
	}

	s.history = append(s.history, FrameSummary{
		Description: result.Description,
		Score:       result.Score,
		Tags:        append([]string(nil), result.Tags...),
	})
	if len(s.history) > s.historyDepth {
		s.history = s.history[len(s.history)-s.historyDepth:]
	}

	score := models.NewFrameScore(frameID, ts, result.Score, result.Description, result.Tags)
	s.logger.Debug("frame scored",
		slog.Int64("frame_id", frameID),
		slog.Float64("anomaly_score", score.Score),
		slog.String("risk_tier", string(score.RiskTier)))
	return score
}

// History returns a copy of the retained summaries, oldest first.
func (s *Scorer) History() []FrameSummary {
	return append([]FrameSummary(nil), s.history...)
}
