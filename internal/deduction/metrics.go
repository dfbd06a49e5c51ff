package deduction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Recorded *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Recorded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_deductions_recorded_total",
			Help: "Deductions by source type and outcome (recorded, not_applicable)",
		}, []string{"source_type", "outcome"}),
	}
}
