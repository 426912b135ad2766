package engine

import (
	"log/slog"

	"github.com/safexstack/safex-monitor/internal/models"
)

// PruneParams tune how an undertriggered segment window is trimmed.
type PruneParams struct {
	// RetainGoalDelta lifts the retain goal above the current average.
	// Zero means max(0.05*threshold, 0.01).
	RetainGoalDelta float64
	// MinKeepFrames bounds the fallback keep from below. Zero means 1.
	MinKeepFrames int
	// FallbackKeepFraction of the window kept when no suffix qualifies.
	// Zero means 0.25.
	FallbackKeepFraction float64
}

func (p PruneParams) withDefaults(threshold float64) PruneParams {
	if p.RetainGoalDelta == 0 {
		p.RetainGoalDelta = 0.05 * threshold
		if p.RetainGoalDelta < 0.01 {
			p.RetainGoalDelta = 0.01
		}
	}
	if p.MinKeepFrames == 0 {
		p.MinKeepFrames = 1
	}
	if p.FallbackKeepFraction == 0 {
		p.FallbackKeepFraction = 0.25
	}
	return p
}

// Accumulator collects scored frames until a full window either triggers a
// segment or is pruned down to its most suspicious tail. Owned by exactly
// one run loop; no locking.
type Accumulator struct {
	threshold     float64
	segmentLength int
	params        PruneParams
	frames        []models.FrameScore
	logger        *slog.Logger
}

// NewAccumulator builds an accumulator for one feed.
func NewAccumulator(threshold float64, segmentLength int, params PruneParams, logger *slog.Logger) *Accumulator {
	if segmentLength < 1 {
		segmentLength = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{
		threshold:     threshold,
		segmentLength: segmentLength,
		params:        params.withDefaults(threshold),
		logger:        logger,
	}
}

// Len reports the number of frames currently held.
func (a *Accumulator) Len() int { return len(a.frames) }

// Add appends one scored frame and evaluates the window once it is full.
// It returns a triggered segment and true when the window average clears
// the threshold; otherwise the window is pruned in place.
func (a *Accumulator) Add(score models.FrameScore) (models.Segment, bool) {
	a.frames = append(a.frames, score)
	if len(a.frames) < a.segmentLength {
		return models.Segment{}, false
	}

	avg := models.MeanScore(a.frames)
	if avg >= a.threshold {
		seg := models.NewSegment(a.frames)
		a.frames = a.frames[:0]
		a.logger.Info("segment triggered",
			slog.String("segment_id", seg.ID),
			slog.Float64("average_score", seg.AverageScore),
			slog.Int("frames", len(seg.Frames)))
		return seg, true
	}

	kept := Prune(a.frames, a.threshold, avg, a.params)
	a.logger.Debug("segment window pruned",
		slog.Float64("average_score", avg),
		slog.Int("before", len(a.frames)),
		slog.Int("after", len(kept)))
	a.frames = kept
	return models.Segment{}, false
}

// Prune trims an undertriggered window to the shortest trailing suffix whose
// average clears the retain goal, so a building incident keeps its most
// recent evidence while stale low-score frames fall away. When no suffix
// qualifies, a bounded fraction of the tail is kept; a fallback that would
// keep the whole window leaves it untouched.
func Prune(frames []models.FrameScore, threshold, average float64, params PruneParams) []models.FrameScore {
	n := len(frames)
	if n == 0 {
		return frames
	}
	if average >= threshold {
		// The caller should have triggered instead; never let a
		// qualifying window survive into the next cycle.
		return frames[:0:0]
	}
	params = params.withDefaults(threshold)

	retainGoal := average + params.RetainGoalDelta
	if retainGoal > threshold {
		retainGoal = threshold
	}

	// Grow the suffix backwards from the newest frame; the first start
	// index that clears the goal gives the shortest qualifying suffix.
	sum := 0.0
	for i := n - 1; i >= 0; i-- {
		sum += frames[i].Score
		if sum/float64(n-i) >= retainGoal {
			if n-i < params.MinKeepFrames {
				i = n - params.MinKeepFrames
				if i < 0 {
					i = 0
				}
			}
			return append(frames[:0:0], frames[i:]...)
		}
	}

	keep := int(float64(n) * params.FallbackKeepFraction)
	if keep < params.MinKeepFrames {
		keep = params.MinKeepFrames
	}
	if keep >= n {
		return frames
	}
	return append(frames[:0:0], frames[n-keep:]...)
}
