package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Reservations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Reservations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_guard_reservations_total",
			Help: "Mint reservation attempts by result (reserved, already_minted, error)",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncReservation(result string) {
	m.Reservations.WithLabelValues(result).Inc()
}
