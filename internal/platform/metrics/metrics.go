package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-level gauges. Component counters live as package
// promauto vars next to the code they measure.
type Metrics struct {
	CacheEntries prometheus.Gauge
}

// New creates and registers the process-level metrics.
func New() *Metrics {
	return &Metrics{
		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_verification_cache_entries",
			Help: "Resident entries in this worker's verification cache",
		}),
	}
}
