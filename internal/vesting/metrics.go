package vesting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Unlocks      *prometheus.CounterVec
	Events       *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Unlocks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_vesting_unlocks_total",
			Help: "Vaults unlocked, by trigger (event, global_release)",
		}, []string{"trigger"}),
		Events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_vesting_events_total",
			Help: "Qualifying events by result (recorded, duplicate, rejected)",
		}, []string{"result"}),
		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_vesting_cache_lookups_total",
			Help: "Vesting status cache lookups by result",
		}, []string{"result"}),
	}
}
