package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/safexstack/safex-monitor/internal/metrics"
	"github.com/safexstack/safex-monitor/internal/models"
)

type recordedCall struct {
	kind string
	to   string
}

type fakeNotifier struct {
	calls   []recordedCall
	failSMS bool
}

func (f *fakeNotifier) SendSMS(_ context.Context, to, _ string) error {
	f.calls = append(f.calls, recordedCall{kind: "sms", to: to})
	if f.failSMS {
		return errors.New("sms gateway down")
	}
	return nil
}

func (f *fakeNotifier) PlaceCall(_ context.Context, to, _ string) error {
	f.calls = append(f.calls, recordedCall{kind: "call", to: to})
	return nil
}

func (f *fakeNotifier) SendEmail(_ context.Context, to, _ string) error {
	f.calls = append(f.calls, recordedCall{kind: "email", to: to})
	return nil
}

func allChannels() models.AlertChannelConfig {
	return models.AlertChannelConfig{
		Contacts: []models.Contact{
			{Name: "ops", Phone: "+15550100", Email: "ops@example.com"},
			{Name: "site", Phone: "+15550101"},
		},
		EnableSMS:   true,
		EnableCall:  true,
		EnableEmail: true,
	}
}

func TestClassifyAction(t *testing.T) {
	cases := []struct {
		action string
		want   ActionKind
		ok     bool
	}{
		{"Send SMS to the site manager", ActionSMS, true},
		{"Place a phone call to security", ActionCall, true},
		{"Email the facilities team", ActionEmail, true},
		{"Log the event for review", ActionLog, true},
		{"Deploy the drone", "", false},
	}
	for _, tc := range cases {
		got, ok := ClassifyAction(tc.action)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ClassifyAction(%q) = %v,%v want %v,%v", tc.action, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDispatchFansOutToContacts(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(notifier, nil)

	d.Dispatch(context.Background(), "cam-7", models.EscalationDecision{
		Narrative:          "Person climbing the fence.",
		ShouldAlert:        true,
		RecommendedActions: []string{"Send SMS to contacts", "Email the team"},
	}, allChannels())

	var sms, email int
	for _, c := range notifier.calls {
		switch c.kind {
		case "sms":
			sms++
		case "email":
			email++
		}
	}
	if sms != 2 {
		t.Fatalf("sms calls = %d, want 2 (both contacts have phones)", sms)
	}
	if email != 1 {
		t.Fatalf("email calls = %d, want 1 (one contact has email)", email)
	}
}

func TestDispatchSkipsDisabledChannels(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(notifier, nil)

	channels := allChannels()
	channels.EnableSMS = false
	d.Dispatch(context.Background(), "cam-7", models.EscalationDecision{
		RecommendedActions: []string{"Send SMS to contacts"},
	}, channels)

	if len(notifier.calls) != 0 {
		t.Fatalf("notifier called %d times for a disabled channel", len(notifier.calls))
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	notifier := &fakeNotifier{failSMS: true}
	d := NewDispatcher(notifier, nil)

	d.Dispatch(context.Background(), "cam-7", models.EscalationDecision{
		RecommendedActions: []string{"Send SMS to contacts", "Call security"},
	}, allChannels())

	// Both SMS attempts fail, yet the call action still runs for both
	// contacts afterwards.
	var calls int
	for _, c := range notifier.calls {
		if c.kind == "call" {
			calls++
		}
	}
	if calls != 2 {
		t.Fatalf("call actions = %d, want 2 despite sms failures", calls)
	}
}

func TestDispatchUnmappedActionIsNotFatal(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(notifier, nil)

	d.Dispatch(context.Background(), "cam-7", models.EscalationDecision{
		RecommendedActions: []string{"Deploy the drone", "Send SMS to contacts"},
	}, allChannels())

	if len(notifier.calls) != 2 {
		t.Fatalf("notifier calls = %d, want 2 (sms to both contacts)", len(notifier.calls))
	}
}

// dispatchCount reads the dispatch counter for one kind/outcome pair.
func dispatchCount(t *testing.T, reg *prometheus.Registry, kind, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "safex_monitor_dispatch_actions_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["kind"] == kind && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestDisabledChannelSkipNotCountedAsDelivery(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	successBefore := dispatchCount(t, reg, "sms", metrics.OutcomeSuccess)
	skippedBefore := dispatchCount(t, reg, "sms", metrics.OutcomeSkipped)

	d := NewDispatcher(&fakeNotifier{}, nil)
	channels := allChannels()
	channels.EnableSMS = false
	d.Dispatch(context.Background(), "cam-7", models.EscalationDecision{
		RecommendedActions: []string{"Send SMS to contacts"},
	}, channels)

	if got := dispatchCount(t, reg, "sms", metrics.OutcomeSuccess); got != successBefore {
		t.Fatalf("success count = %v, want unchanged %v", got, successBefore)
	}
	if got := dispatchCount(t, reg, "sms", metrics.OutcomeSkipped); got != skippedBefore+1 {
		t.Fatalf("skipped count = %v, want %v", got, skippedBefore+1)
	}
}

func TestDispatchLogActionNeedsNoNotifier(t *testing.T) {
	d := NewDispatcher(&fakeNotifier{}, nil)
	d.Dispatch(context.Background(), "cam-7", models.EscalationDecision{
		Narrative:          "Recorded only.",
		Severity:           models.SeverityCritical,
		RecommendedActions: []string{"Log the event"},
	}, models.AlertChannelConfig{})
}
