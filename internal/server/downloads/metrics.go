package downloads

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "eventsnap_single_downloads_total",
	Help: "Single-item download decisions by outcome.",
}, []string{"outcome"})
