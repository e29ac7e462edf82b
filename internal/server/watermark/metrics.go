package watermark

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rewrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsnap_watermark_rewrites_total",
		Help: "Watermark rewrites by result.",
	}, []string{"result"})

	rewriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventsnap_watermark_duration_seconds",
		Help:    "Time spent decoding, stamping and encoding one image.",
		Buckets: prometheus.DefBuckets,
	})
)
