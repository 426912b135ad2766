package models

import (
	"strings"
	"time"
)

// Severity grades both frame risk tiers and escalation decisions.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps a wire value onto a Severity, reporting whether it is
// known. Matching is case-insensitive since upstream services disagree.
func ParseSeverity(value string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return s, true
	}
	return "", false
}

// RiskTierFromScore derives the risk tier for an anomaly score in [0,1].
func RiskTierFromScore(score float64) Severity {
	switch {
	case score < 0.3:
		return SeverityLow
	case score < 0.6:
		return SeverityMedium
	case score < 0.8:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// FrameScore is the immutable per-frame classification result.
type FrameScore struct {
	FrameID     int64     `json:"frame_id"`
	Timestamp   time.Time `json:"timestamp"`
	Score       float64   `json:"anomaly_score"`
	Tags        []string  `json:"tags"`
	RiskTier    Severity  `json:"risk_tier"`
	Description string    `json:"description"`
}

// NewFrameScore builds a FrameScore, deriving the risk tier from the score.
func NewFrameScore(frameID int64, ts time.Time, score float64, description string, tags []string) FrameScore {
	return FrameScore{
		FrameID:     frameID,
		Timestamp:   ts,
		Score:       score,
		Tags:        append([]string(nil), tags...),
		RiskTier:    RiskTierFromScore(score),
		Description: description,
	}
}

// ErrorFrameScore is the safe default emitted when classification fails.
// The score is zero so a transient outage never inflates a segment average.
func ErrorFrameScore(frameID int64, ts time.Time, reason string) FrameScore {
	return FrameScore{
		FrameID:     frameID,
		Timestamp:   ts,
		Score:       0,
		Tags:        []string{"error"},
		RiskTier:    SeverityLow,
		Description: reason,
	}
}
