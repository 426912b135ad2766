package repo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NotifierClient talks to the outbound notification service. Each channel is
// a separate call so the dispatcher can isolate per-action failures.
type NotifierClient struct {
	baseURL      string
	dispatchPath string
	httpClient   *http.Client
}

// NewNotifierClient constructs a client for the notification service.
func NewNotifierClient(baseURL, dispatchPath string, timeout time.Duration) *NotifierClient {
	return &NotifierClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		dispatchPath: dispatchPath,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// SendSMS delivers a text message to one recipient.
func (c *NotifierClient) SendSMS(ctx context.Context, to, body string) error {
	return c.dispatch(ctx, "sms", to, body)
}

// PlaceCall places an automated voice call reading the given script.
func (c *NotifierClient) PlaceCall(ctx context.Context, to, script string) error {
	return c.dispatch(ctx, "call", to, script)
}

// SendEmail delivers an email notification to one recipient.
func (c *NotifierClient) SendEmail(ctx context.Context, to, body string) error {
	return c.dispatch(ctx, "email", to, body)
}

func (c *NotifierClient) dispatch(ctx context.Context, channel, to, message string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("notifier client not configured")
	}
	payload := map[string]string{
		"channel": channel,
		"to":      to,
		"message": message,
	}
	if err := postJSON(ctx, c.httpClient, resolvePath(c.baseURL, c.dispatchPath), payload, nil); err != nil {
		return fmt.Errorf("notifier %s dispatch failed: %w", channel, err)
	}
	return nil
}
