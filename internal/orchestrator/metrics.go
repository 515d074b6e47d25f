// internal/orchestrator/metrics.go
package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fantrack_loads_total",
		Help: "Logical reads by outcome (cache, primary, secondary, degraded, error)",
	},
	[]string{"outcome"},
)
