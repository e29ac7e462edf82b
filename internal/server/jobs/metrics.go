package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsnap_job_transitions_total",
		Help: "Download job state transitions by target status.",
	}, []string{"status"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventsnap_jobs_processing",
		Help: "Download jobs currently being processed.",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventsnap_job_duration_seconds",
		Help:    "Wall time of completed download jobs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	swept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsnap_sweep_deleted_total",
		Help: "Records and objects removed by the expiry sweep.",
	}, []string{"kind"})
)
