package recolor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idphoto",
			Subsystem: "recolor",
			Name:      "outcomes_total",
			Help:      "Recolor invocations by outcome kind",
		},
		[]string{"kind"},
	)

	duration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "idphoto",
			Subsystem: "recolor",
			Name:      "duration_seconds",
			Help:      "Duration of recolor invocations in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)
)

func init() {
	prometheus.MustRegister(outcomesTotal, duration)
}

func observeOutcome(out Outcome, d time.Duration) {
	label := "success"
	if !out.OK() {
		label = out.Kind().String()
	}
	outcomesTotal.WithLabelValues(label).Inc()
	duration.Observe(d.Seconds())
}
