package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartschool_gateway_calls_total",
		Help: "Access gateway calls by operation and outcome.",
	}, []string{"op", "outcome"})

	keysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartschool_gateway_keys_total",
		Help: "Per-key grant/revoke outcomes by operation.",
	}, []string{"op", "outcome"})
)

func observeCall(op, outcome string) {
	callsTotal.WithLabelValues(op, outcome).Inc()
}

func observeKey(op, outcome string) {
	keysTotal.WithLabelValues(op, outcome).Inc()
}
