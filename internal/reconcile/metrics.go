package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	StaleReservations prometheus.Gauge
	VaultDrift        prometheus.Gauge
	Runs              *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		StaleReservations: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "covenant_reconcile_stale_reservations",
			Help: "Mint reservations still reserved past the staleness window",
		}),
		VaultDrift: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "covenant_reconcile_vault_drift",
			Help: "Vaults whose balance disagrees with their ledger entries",
		}),
		Runs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_reconcile_runs_total",
			Help: "Reconciliation runs by result",
		}, []string{"result"}),
	}
}
