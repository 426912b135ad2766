package repo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safexstack/safex-monitor/internal/models"
)

// AlertRecord is the alert payload persisted to the control plane after a
// triggered segment has been analyzed.
type AlertRecord struct {
	SegmentID    string          `json:"segment_id"`
	Title        string          `json:"title"`
	AlertType    string          `json:"alert_type"`
	Severity     models.Severity `json:"severity"`
	Narrative    string          `json:"narrative"`
	Reasoning    string          `json:"reasoning,omitempty"`
	ClipURL      string          `json:"clip_url,omitempty"`
	AverageScore float64         `json:"average_score"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
}

// ControlClient talks to the feed control plane: liveness, per-feed
// monitoring configuration, and persistence of detections and alerts.
type ControlClient struct {
	baseURL        string
	livenessPath   string
	feedConfigPath string
	detectionsPath string
	alertsPath     string
	httpClient     *http.Client
}

// NewControlClient constructs a client for the configured control plane.
// Path templates carry one %s placeholder for the feed id.
func NewControlClient(baseURL, livenessPath, feedConfigPath, detectionsPath, alertsPath string, timeout time.Duration) *ControlClient {
	return &ControlClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		livenessPath:   livenessPath,
		feedConfigPath: feedConfigPath,
		detectionsPath: detectionsPath,
		alertsPath:     alertsPath,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

// CheckLiveness reports whether the feed should still be monitored.
func (c *ControlClient) CheckLiveness(ctx context.Context, feedID string) (bool, error) {
	if c == nil || c.baseURL == "" {
		return false, fmt.Errorf("control plane client not configured")
	}
	var response struct {
		Active bool `json:"active"`
	}
	if err := getJSON(ctx, c.httpClient, c.feedURL(c.livenessPath, feedID), &response); err != nil {
		return false, fmt.Errorf("control plane liveness request failed: %w", err)
	}
	return response.Active, nil
}

// FetchFeedConfig retrieves the monitoring configuration snapshot for a feed.
func (c *ControlClient) FetchFeedConfig(ctx context.Context, feedID string) (models.FeedRuntimeConfig, error) {
	if c == nil || c.baseURL == "" {
		return models.FeedRuntimeConfig{}, fmt.Errorf("control plane client not configured")
	}
	var cfg models.FeedRuntimeConfig
	if err := getJSON(ctx, c.httpClient, c.feedURL(c.feedConfigPath, feedID), &cfg); err != nil {
		return models.FeedRuntimeConfig{}, fmt.Errorf("control plane config request failed: %w", err)
	}
	cfg.FeedID = feedID
	return cfg, nil
}

// PersistDetection records one scored frame. Best-effort from the caller's
// point of view; the run loop logs failures and moves on.
func (c *ControlClient) PersistDetection(ctx context.Context, feedID string, frame models.FrameScore) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("control plane client not configured")
	}
	if err := postJSON(ctx, c.httpClient, c.feedURL(c.detectionsPath, feedID), frame, nil); err != nil {
		return fmt.Errorf("control plane detection persist failed: %w", err)
	}
	return nil
}

// PersistAlert records a post-analysis alert for a feed.
func (c *ControlClient) PersistAlert(ctx context.Context, feedID string, alert AlertRecord) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("control plane client not configured")
	}
	if alert.AlertType == "" {
		alert.AlertType = InferAlertType(alert.Narrative)
	}
	if alert.Title == "" {
		alert.Title = strings.ToUpper(string(alert.Severity)) + " security alert: " + alert.AlertType
	}
	if err := postJSON(ctx, c.httpClient, c.feedURL(c.alertsPath, feedID), alert, nil); err != nil {
		return fmt.Errorf("control plane alert persist failed: %w", err)
	}
	return nil
}

// InferAlertType derives a coarse alert category from the analysis narrative.
func InferAlertType(narrative string) string {
	lowered := strings.ToLower(narrative)
	switch {
	case strings.Contains(lowered, "weapon"), strings.Contains(lowered, "gun"), strings.Contains(lowered, "knife"):
		return "weapon"
	case strings.Contains(lowered, "fire"), strings.Contains(lowered, "smoke"), strings.Contains(lowered, "flame"):
		return "fire"
	case strings.Contains(lowered, "intru"), strings.Contains(lowered, "trespass"), strings.Contains(lowered, "break-in"), strings.Contains(lowered, "climb"):
		return "intrusion"
	default:
		return "other"
	}
}

func (c *ControlClient) feedURL(template, feedID string) string {
	p := template
	if strings.Contains(template, "%s") {
		p = fmt.Sprintf(template, url.PathEscape(feedID))
	}
	return resolvePath(c.baseURL, p)
}
