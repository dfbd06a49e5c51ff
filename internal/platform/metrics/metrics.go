// Package metrics exposes the Prometheus registry the process serves on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the registerer domain packages use with the handler that
// serves it.
type Registry struct {
	reg *prometheus.Registry
}

// New creates a registry with Go runtime and process collectors plus a
// covenant_build_info gauge.
func New(version, environment string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name:        "covenant_build_info",
		Help:        "Build information for the running ledger",
		ConstLabels: prometheus.Labels{"version": version, "environment": environment},
	}).Set(1)
	return &Registry{reg: reg}
}

func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
