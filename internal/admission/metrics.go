package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var admissionDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "nodebird_admission_decisions_total",
		Help: "Admission gate decisions by check and outcome",
	},
	[]string{"check", "outcome"},
)
