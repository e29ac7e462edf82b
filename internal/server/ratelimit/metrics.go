package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "eventsnap_rate_limit_rejections_total",
	Help: "Requests rejected by the per-client limiter, by traffic class.",
}, []string{"class"})
