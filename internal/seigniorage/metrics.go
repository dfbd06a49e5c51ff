package seigniorage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Attempts *prometheus.CounterVec
	Duration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_mint_attempts_total",
			Help: "Mint attempts by outcome",
		}, []string{"outcome"}),
		Duration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "covenant_mint_duration_seconds",
			Help:    "Time to complete a mint attempt",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
}

func (m *Metrics) observe(outcome string, start time.Time) {
	m.Attempts.WithLabelValues(outcome).Inc()
	m.Duration.Observe(time.Since(start).Seconds())
}
