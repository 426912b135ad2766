package repo

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/safexstack/safex-monitor/internal/models"
	"github.com/safexstack/safex-monitor/internal/scoring"
)

// SegmentAnalysisRequest carries everything the contextual model needs to
// judge one triggered segment.
type SegmentAnalysisRequest struct {
	FeedID        string
	Instruction   string
	Clip          []byte
	Frames        []models.FrameScore
	AlertChannels models.AlertChannelConfig
}

// VisionClient wraps the external model gateway for single-frame
// classification and multi-frame contextual analysis.
type VisionClient struct {
	baseURL      string
	classifyPath string
	analyzePath  string
	httpClient   *http.Client
}

// NewVisionClient constructs a client targeting the configured gateway.
func NewVisionClient(baseURL, classifyPath, analyzePath string, timeout time.Duration) *VisionClient {
	return &VisionClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		classifyPath: classifyPath,
		analyzePath:  analyzePath,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// ClassifyFrame scores one frame against the monitoring instruction. The
// response is validated here so malformed gateway output surfaces as an
// error and the caller's safe-default path takes over.
func (c *VisionClient) ClassifyFrame(ctx context.Context, image []byte, instruction string, history []scoring.FrameSummary) (scoring.Classification, error) {
	if c == nil || c.baseURL == "" {
		return scoring.Classification{}, fmt.Errorf("vision gateway client not configured")
	}

	payload := map[string]interface{}{
		"image":       base64.StdEncoding.EncodeToString(image),
		"instruction": instruction,
		"history":     history,
	}

	var response struct {
		Description string   `json:"description"`
		Score       float64  `json:"anomaly_score"`
		Tags        []string `json:"tags"`
	}
	if err := postJSON(ctx, c.httpClient, resolvePath(c.baseURL, c.classifyPath), payload, &response); err != nil {
		return scoring.Classification{}, fmt.Errorf("vision gateway classify request failed: %w", err)
	}

	if response.Score < 0 || response.Score > 1 {
		return scoring.Classification{}, fmt.Errorf("vision gateway returned score %v outside [0,1]", response.Score)
	}
	if strings.TrimSpace(response.Description) == "" {
		return scoring.Classification{}, fmt.Errorf("vision gateway returned empty description")
	}

	return scoring.Classification{
		Description: response.Description,
		Score:       response.Score,
		Tags:        response.Tags,
	}, nil
}

// AnalyzeSegment asks the contextual model for an escalation decision over a
// rehydrated segment clip.
func (c *VisionClient) AnalyzeSegment(ctx context.Context, req SegmentAnalysisRequest) (models.EscalationDecision, error) {
	if c == nil || c.baseURL == "" {
		return models.EscalationDecision{}, fmt.Errorf("vision gateway client not configured")
	}

	frames := make([]map[string]interface{}, 0, len(req.Frames))
	for _, f := range req.Frames {
		frames = append(frames, map[string]interface{}{
			"frame_id":      f.FrameID,
			"timestamp":     f.Timestamp.Format(time.RFC3339Nano),
			"anomaly_score": f.Score,
			"tags":          f.Tags,
			"description":   f.Description,
		})
	}
	payload := map[string]interface{}{
		"feed_id":        req.FeedID,
		"instruction":    req.Instruction,
		"clip":           base64.StdEncoding.EncodeToString(req.Clip),
		"frames":         frames,
		"alert_channels": req.AlertChannels,
	}

	var response struct {
		Narrative            string   `json:"narrative"`
		InstructionAlignment string   `json:"instruction_alignment"`
		ShouldAlert          bool     `json:"should_alert"`
		Severity             string   `json:"severity"`
		RecommendedActions   []string `json:"recommended_actions"`
		Reasoning            string   `json:"reasoning"`
	}
	if err := postJSON(ctx, c.httpClient, resolvePath(c.baseURL, c.analyzePath), payload, &response); err != nil {
		return models.EscalationDecision{}, fmt.Errorf("vision gateway analyze request failed: %w", err)
	}

	decision := models.EscalationDecision{
		Narrative:            response.Narrative,
		InstructionAlignment: response.InstructionAlignment,
		ShouldAlert:          response.ShouldAlert,
		RecommendedActions:   response.RecommendedActions,
		Reasoning:            response.Reasoning,
	}
	if response.Severity != "" {
		severity, ok := models.ParseSeverity(response.Severity)
		if !ok {
			return models.EscalationDecision{}, fmt.Errorf("vision gateway returned unknown severity %q", response.Severity)
		}
		decision.Severity = severity
	}
	return decision, nil
}
