package scoring

import (
	"sync"

	"github.com/safexstack/safex-monitor/internal/models"
)

const (
	highRiskFloor = 0.6
	highRiskCap   = 100
	highRiskStat  = 0.7
)

// EventBuffer keeps the most recent scored frames for one feed plus a longer
// tail of high-risk frames. Writes come from the feed's run loop; reads may
// come from admin handlers on other goroutines, hence the mutex.
type EventBuffer struct {
	mu       sync.Mutex
	capacity int
	frames   []models.FrameScore
	highRisk []models.FrameScore
}

// NewEventBuffer sizes the rolling window to windowSeconds * fps frames.
func NewEventBuffer(windowSeconds, fps int) *EventBuffer {
	capacity := windowSeconds * fps
	if capacity < 1 {
		capacity = 1
	}
	return &EventBuffer{capacity: capacity}
}

// Add appends a scored frame, evicting the oldest window entry once full.
// Frames at or above the high-risk floor also land in the high-risk tail.
func (b *EventBuffer) Add(score models.FrameScore) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, score)
	if len(b.frames) > b.capacity {
		b.frames = b.frames[len(b.frames)-b.capacity:]
	}
	if score.Score >= highRiskFloor {
		b.highRisk = append(b.highRisk, score)
		if len(b.highRisk) > highRiskCap {
			b.highRisk = b.highRisk[len(b.highRisk)-highRiskCap:]
		}
	}
}

// Stats summarises the current window contents.
func (b *EventBuffer) Stats() models.WindowStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := models.WindowStats{Count: len(b.frames)}
	if stats.Count == 0 {
		return stats
	}
	sum := 0.0
	for _, f := range b.frames {
		sum += f.Score
		if f.Score > stats.Max {
			stats.Max = f.Score
		}
		if f.Score >= highRiskStat {
			stats.HighRiskCount++
		}
	}
	stats.Average = sum / float64(stats.Count)
	stats.TimeSpan = b.frames[stats.Count-1].Timestamp.Sub(b.frames[0].Timestamp)
	return stats
}

// Recent returns a copy of the window, oldest first.
func (b *EventBuffer) Recent() []models.FrameScore {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.FrameScore(nil), b.frames...)
}

// HighRiskFrames returns a copy of the high-risk tail, oldest first.
func (b *EventBuffer) HighRiskFrames() []models.FrameScore {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.FrameScore(nil), b.highRisk...)
}
