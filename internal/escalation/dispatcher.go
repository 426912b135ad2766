package escalation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/safexstack/safex-monitor/internal/metrics"
	"github.com/safexstack/safex-monitor/internal/models"
)

// ActionKind is the channel an action string resolves to.
type ActionKind string

const (
	ActionSMS   ActionKind = "sms"
	ActionCall  ActionKind = "call"
	ActionEmail ActionKind = "email"
	ActionLog   ActionKind = "log"
)

// Notifier is the outbound notification capability the dispatcher drives.
type Notifier interface {
	SendSMS(ctx context.Context, to, body string) error
	PlaceCall(ctx context.Context, to, script string) error
	SendEmail(ctx context.Context, to, body string) error
}

// ClassifyAction maps a free-text recommended action onto a channel. The
// upstream model only supplies text, so this stays a narrow function that
// can be strengthened without touching the dispatch loop.
func ClassifyAction(action string) (ActionKind, bool) {
	lowered := strings.ToLower(action)
	switch {
	case strings.Contains(lowered, "sms"), strings.Contains(lowered, "text message"), strings.Contains(lowered, "text the"):
		return ActionSMS, true
	case strings.Contains(lowered, "call"), strings.Contains(lowered, "phone"), strings.Contains(lowered, "dial"):
		return ActionCall, true
	case strings.Contains(lowered, "email"), strings.Contains(lowered, "e-mail"), strings.Contains(lowered, "mail to"):
		return ActionEmail, true
	case strings.Contains(lowered, "log"), strings.Contains(lowered, "record"), strings.Contains(lowered, "document"):
		return ActionLog, true
	}
	return "", false
}

// Dispatcher executes an escalation decision's recommended actions, each
// exactly once. One failing action never blocks the others; delivery is
// at-least-once from the operator's point of view.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewDispatcher wires a dispatcher over the notification service.
func NewDispatcher(notifier Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{notifier: notifier, logger: logger}
}

// Dispatch runs every recommended action in order. Actions routed to a
// channel the operator disabled are skipped with a log line; unmapped
// action text is surfaced as a warning rather than silently dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, feedID string, decision models.EscalationDecision, channels models.AlertChannelConfig) {
	for _, action := range decision.RecommendedActions {
		kind, ok := ClassifyAction(action)
		if !ok {
			d.logger.Warn("unmapped alert action",
				slog.String("feed_id", feedID), slog.String("action", action))
			metrics.IncDispatchAction("unmapped", metrics.OutcomeError)
			continue
		}
		d.run(ctx, feedID, kind, action, decision, channels)
	}
}

func (d *Dispatcher) run(ctx context.Context, feedID string, kind ActionKind, action string, decision models.EscalationDecision, channels models.AlertChannelConfig) {
	body := decision.Narrative
	if body == "" {
		body = action
	}

	switch kind {
	case ActionLog:
		d.logAlert(feedID, decision)
		metrics.IncDispatchAction(string(kind), metrics.OutcomeSuccess)
		return
	case ActionSMS:
		if !channels.EnableSMS {
			d.skip(feedID, kind)
			return
		}
		d.fanOut(feedID, kind, channels.Contacts, func(to string) error {
			return d.notifier.SendSMS(ctx, to, body)
		})
	case ActionCall:
		if !channels.EnableCall {
			d.skip(feedID, kind)
			return
		}
		d.fanOut(feedID, kind, channels.Contacts, func(to string) error {
			return d.notifier.PlaceCall(ctx, to, body)
		})
	case ActionEmail:
		if !channels.EnableEmail {
			d.skip(feedID, kind)
			return
		}
		d.fanOut(feedID, kind, channels.Contacts, func(to string) error {
			return d.notifier.SendEmail(ctx, to, body)
		})
	}
}

func (d *Dispatcher) fanOut(feedID string, kind ActionKind, contacts []models.Contact, send func(to string) error) {
	delivered := 0
	for _, contact := range contacts {
		to := contact.Phone
		if kind == ActionEmail {
			to = contact.Email
		}
		if to == "" {
			continue
		}
		if err := send(to); err != nil {
			d.logger.Error("alert action failed",
				slog.String("feed_id", feedID),
				slog.String("kind", string(kind)),
				slog.String("contact", contact.Name),
				slog.Any("error", err))
			metrics.IncDispatchAction(string(kind), metrics.OutcomeError)
			continue
		}
		delivered++
		metrics.IncDispatchAction(string(kind), metrics.OutcomeSuccess)
	}
	if delivered == 0 {
		d.logger.Warn("alert action reached no contacts",
			slog.String("feed_id", feedID), slog.String("kind", string(kind)))
	}
}

func (d *Dispatcher) skip(feedID string, kind ActionKind) {
	d.logger.Info("alert channel disabled, action skipped",
		slog.String("feed_id", feedID), slog.String("kind", string(kind)))
	metrics.IncDispatchAction(string(kind), metrics.OutcomeSkipped)
}

func (d *Dispatcher) logAlert(feedID string, decision models.EscalationDecision) {
	attrs := []any{
		slog.String("feed_id", feedID),
		slog.String("severity", string(decision.EffectiveSeverity())),
		slog.String("narrative", decision.Narrative),
	}
	switch decision.EffectiveSeverity() {
	case models.SeverityCritical:
		d.logger.Error("alert", attrs...)
	case models.SeverityHigh:
		d.logger.Warn("alert", attrs...)
	default:
		d.logger.Info("alert", attrs...)
	}
}
