package models

import (
	"testing"
	"time"
)

func TestRiskTierBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Severity
	}{
		{0.0, SeverityLow},
		{0.29, SeverityLow},
		{0.3, SeverityMedium},
		{0.59, SeverityMedium},
		{0.6, SeverityHigh},
		{0.79, SeverityHigh},
		{0.8, SeverityCritical},
		{1.0, SeverityCritical},
	}
	for _, tc := range cases {
		if got := RiskTierFromScore(tc.score); got != tc.want {
			t.Errorf("RiskTierFromScore(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	if s, ok := ParseSeverity("CRITICAL"); !ok || s != SeverityCritical {
		t.Fatalf("ParseSeverity(CRITICAL) = %v,%v", s, ok)
	}
	if _, ok := ParseSeverity("catastrophic"); ok {
		t.Fatal("unknown severity must not parse")
	}
}

func TestErrorFrameScore(t *testing.T) {
	ts := time.Now()
	score := ErrorFrameScore(9, ts, "classification failed")
	if score.Score != 0 || score.RiskTier != SeverityLow {
		t.Fatalf("error score = %+v", score)
	}
	if len(score.Tags) != 1 || score.Tags[0] != "error" {
		t.Fatalf("tags = %v", score.Tags)
	}
}

func TestNewSegmentSnapshotsFrames(t *testing.T) {
	base := time.Now()
	frames := []FrameScore{
		NewFrameScore(0, base, 0.4, "a", nil),
		NewFrameScore(1, base.Add(time.Second), 0.8, "b", nil),
	}
	seg := NewSegment(frames)

	if seg.ID == "" || len(seg.ID) != len("seg_")+8 {
		t.Fatalf("segment id = %q", seg.ID)
	}
	if diff := seg.AverageScore - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("average = %v, want 0.6", seg.AverageScore)
	}
	if !seg.StartTime.Equal(base) || !seg.EndTime.Equal(base.Add(time.Second)) {
		t.Fatalf("time range = %v..%v", seg.StartTime, seg.EndTime)
	}

	// Mutating the input must not reach into the segment.
	frames[0].Score = 0
	if seg.Frames[0].Score != 0.4 {
		t.Fatal("segment aliases caller's frame slice")
	}
}
