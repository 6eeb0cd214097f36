package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabib",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Gateway operations by backend, operation and result.",
	}, []string{"backend", "op", "result"})

	activeListeners = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tabib",
		Subsystem: "store",
		Name:      "listeners",
		Help:      "Live listeners currently attached.",
	}, []string{"backend"})

	snapshotsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabib",
		Subsystem: "store",
		Name:      "snapshots_delivered_total",
		Help:      "Snapshots handed to listener callbacks.",
	}, []string{"backend"})
)

func observe(backend, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operations.WithLabelValues(backend, op, result).Inc()
}
