package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	archivesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventsnap_archives_built_total",
		Help: "Archives successfully assembled.",
	})

	archiveBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventsnap_archive_size_bytes",
		Help:    "Size of assembled archives.",
		Buckets: prometheus.ExponentialBuckets(1<<20, 2, 10),
	})

	archiveEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsnap_archive_entries_total",
		Help: "Archive entries by kind (included or failed).",
	}, []string{"kind"})
)

func observeBuild(size, included, failed int) {
	archivesBuilt.Inc()
	archiveBytes.Observe(float64(size))
	archiveEntries.WithLabelValues("included").Add(float64(included))
	archiveEntries.WithLabelValues("failed").Add(float64(failed))
}
