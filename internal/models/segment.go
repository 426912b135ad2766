package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Segment is a contiguous run of scored frames evaluated together for
// escalation. It is owned by exactly one feed's run loop.
type Segment struct {
	ID           string       `json:"segment_id"`
	Frames       []FrameScore `json:"frames"`
	AverageScore float64      `json:"average_score"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      time.Time    `json:"end_time"`
}

// NewSegment snapshots the supplied frames into a Segment with a fresh ID.
// The frame slice is copied so later pruning cannot alias into it.
func NewSegment(frames []FrameScore) Segment {
	copied := append([]FrameScore(nil), frames...)
	seg := Segment{
		ID:           "seg_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Frames:       copied,
		AverageScore: MeanScore(copied),
	}
	if len(copied) > 0 {
		seg.StartTime = copied[0].Timestamp
		seg.EndTime = copied[len(copied)-1].Timestamp
	}
	return seg
}

// MeanScore returns the arithmetic mean anomaly score of the frames.
func MeanScore(frames []FrameScore) float64 {
	if len(frames) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range frames {
		sum += f.Score
	}
	return sum / float64(len(frames))
}
