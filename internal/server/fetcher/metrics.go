package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsnap_fetch_outcomes_total",
		Help: "Media fetches by result (ok or failure reason).",
	}, []string{"result"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventsnap_fetch_duration_seconds",
		Help:    "Duration of single media fetches.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	fetchBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventsnap_fetch_bytes_total",
		Help: "Bytes of successfully fetched media.",
	})
)

func observeOutcome(o Outcome) {
	if o.OK() {
		fetchOutcomes.WithLabelValues("ok").Inc()
		fetchBytes.Add(float64(o.SizeBytes))
		return
	}
	fetchOutcomes.WithLabelValues(o.Reason).Inc()
}
