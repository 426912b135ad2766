package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels calls that completed normally.
	OutcomeSuccess = "success"
	// OutcomeError labels calls that failed or fell back to safe defaults.
	OutcomeError = "error"
	// OutcomeSkipped labels actions dropped before any delivery attempt,
	// such as a channel the operator disabled.
	OutcomeSkipped = "skipped"
)

var (
	framesScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safex_monitor",
			Name:      "frames_scored_total",
			Help:      "Total frames sent for classification, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	segmentsTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "safex_monitor",
			Name:      "segments_triggered_total",
			Help:      "Total segments that crossed the trigger threshold.",
		},
	)

	escalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safex_monitor",
			Name:      "escalations_total",
			Help:      "Total contextual analyses performed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	dispatchActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safex_monitor",
			Name:      "dispatch_actions_total",
			Help:      "Total alert actions dispatched, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	scoringSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "safex_monitor",
			Name:      "scoring_seconds",
			Help:      "Single-frame classification latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
		},
	)

	analysisSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "safex_monitor",
			Name:      "analysis_seconds",
			Help:      "Segment contextual-analysis latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
)

// Register attaches monitor collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		framesScoredTotal,
		segmentsTriggeredTotal,
		escalationsTotal,
		dispatchActionsTotal,
		scoringSeconds,
		analysisSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveScoring records one classification call's duration and outcome.
func ObserveScoring(duration time.Duration, outcome string) {
	framesScoredTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	scoringSeconds.Observe(duration.Seconds())
}

// IncSegmentTriggered counts one triggered segment.
func IncSegmentTriggered() {
	segmentsTriggeredTotal.Inc()
}

// ObserveAnalysis records one contextual-analysis duration and outcome.
func ObserveAnalysis(duration time.Duration, outcome string) {
	escalationsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisSeconds.Observe(duration.Seconds())
}

// IncDispatchAction counts one dispatched alert action.
func IncDispatchAction(kind, outcome string) {
	dispatchActionsTotal.WithLabelValues(kind, outcome).Inc()
}
