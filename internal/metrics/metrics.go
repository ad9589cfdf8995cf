// Package metrics centralizes the Prometheus collectors exported by the
// subscription and reducer layer. Non-goals exclude history/playback, not
// observability, so this ambient concern stays even though the spec's core
// never mentions metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_web_active_subscriptions",
		Help: "Number of upstream subscriptions currently registered.",
	})

	ReducerSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_web_reducer_steps_total",
		Help: "Deltas successfully folded into a snapshot, per upstream address.",
	}, []string{"addr"})

	ReapedEntities = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_web_reaped_entities_total",
		Help: "Tasks/resources removed after their drop grace window elapsed.",
	}, []string{"addr", "kind"})

	ReducerTerminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_web_reducer_terminations_total",
		Help: "Reducer exits, labeled by the reason it stopped.",
	}, []string{"addr", "reason"})

	ViewerSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_web_viewer_sessions",
		Help: "Browser sessions currently bound to a snapshot handle.",
	})
)
