package models

import (
	"fmt"
	"time"
)

// Contact is one operator contact reachable by the alert channels.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// AlertChannelConfig is the operator's alert-channel configuration passed
// verbatim to the contextual analyzer and consulted by the dispatcher.
type AlertChannelConfig struct {
	Contacts    []Contact `json:"contacts"`
	EnableSMS   bool      `json:"enable_sms"`
	EnableCall  bool      `json:"enable_call"`
	EnableEmail bool      `json:"enable_email"`
}

// FeedRuntimeConfig is the immutable per-run snapshot taken at feed
// activation. A live configuration edit only takes effect on the next
// activation, so an in-flight segment keeps consistent semantics.
type FeedRuntimeConfig struct {
	FeedID           string             `json:"feed_id"`
	SourceURL        string             `json:"source_url"`
	Instruction      string             `json:"instruction"`
	FPS              int                `json:"fps"`
	FrameSkip        int                `json:"frame_skip"`
	WindowSeconds    int                `json:"window_seconds"`
	TriggerThreshold float64            `json:"trigger_threshold"`
	SegmentLength    int                `json:"segment_length"`
	HistoryDepth     int                `json:"history_depth"`
	CheckInterval    time.Duration      `json:"check_interval"`
	AlertChannels    AlertChannelConfig `json:"alert_channels"`
}

// Validate reports configuration problems that must prevent the run loop
// from starting. These are activation-time failures, never mid-stream ones.
func (c FeedRuntimeConfig) Validate() error {
	if c.FeedID == "" {
		return fmt.Errorf("feed id is required")
	}
	if c.SourceURL == "" {
		return fmt.Errorf("feed %s: source url is required", c.FeedID)
	}
	if c.Instruction == "" {
		return fmt.Errorf("feed %s: monitoring instruction is required", c.FeedID)
	}
	if c.TriggerThreshold <= 0 || c.TriggerThreshold > 1 {
		return fmt.Errorf("feed %s: trigger threshold %.3f outside (0,1]", c.FeedID, c.TriggerThreshold)
	}
	if c.SegmentLength <= 0 {
		return fmt.Errorf("feed %s: segment length must be positive", c.FeedID)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("feed %s: fps must be positive", c.FeedID)
	}
	return nil
}

// WithDefaults fills unset tunables from engine-wide defaults.
func (c FeedRuntimeConfig) WithDefaults(d FeedRuntimeConfig) FeedRuntimeConfig {
	if c.FPS == 0 {
		c.FPS = d.FPS
	}
	if c.FrameSkip == 0 {
		c.FrameSkip = d.FrameSkip
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = d.WindowSeconds
	}
	if c.TriggerThreshold == 0 {
		c.TriggerThreshold = d.TriggerThreshold
	}
	if c.SegmentLength == 0 {
		c.SegmentLength = d.SegmentLength
	}
	if c.HistoryDepth == 0 {
		c.HistoryDepth = d.HistoryDepth
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = d.CheckInterval
	}
	return c
}

// WindowStats summarises the event buffer's current contents.
type WindowStats struct {
	Count         int           `json:"frame_count"`
	Average       float64       `json:"average_score"`
	Max           float64       `json:"max_score"`
	HighRiskCount int           `json:"high_risk_count"`
	TimeSpan      time.Duration `json:"time_span"`
}
