// Package health serves the liveness, readiness and status endpoints.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"covenant/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

const checkTimeout = 2 * time.Second

// CheckFunc returns nil when the dependency is healthy.
type CheckFunc func(ctx context.Context) error

type dependency struct {
	check    CheckFunc
	optional bool
}

// Handler reports on the ledger's dependencies. Required ones (the ledger
// database, the event broker) gate readiness; optional ones such as the
// vesting cache only mark the service degraded.
type Handler struct {
	started     time.Time
	environment string

	mu   sync.RWMutex
	deps map[string]dependency
}

func New(environment string) *Handler {
	return &Handler{
		started:     time.Now(),
		environment: environment,
		deps:        make(map[string]dependency),
	}
}

// RegisterCheck adds a dependency readiness depends on.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.register(name, dependency{check: check})
}

// RegisterOptional adds a dependency whose failure degrades the service
// without taking it out of rotation.
func (h *Handler) RegisterOptional(name string, check CheckFunc) {
	h.register(name, dependency{check: check, optional: true})
}

func (h *Handler) register(name string, dep dependency) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps[name] = dep
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleReadiness runs every check concurrently, each under checkTimeout.
// A failed required check answers 503; a failed optional one answers 200
// with status degraded.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := make([]string, 0, len(h.deps))
	deps := make([]dependency, 0, len(h.deps))
	for name, dep := range h.deps {
		names = append(names, name)
		deps = append(deps, dep)
	}
	h.mu.RUnlock()

	results := make([]error, len(deps))
	var grp errgroup.Group
	for i, dep := range deps {
		grp.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			results[i] = dep.check(ctx)
			return nil
		})
	}
	_ = grp.Wait()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(deps))}
	for i, err := range results {
		if err == nil {
			resp.Checks[names[i]] = "up"
			continue
		}
		resp.Checks[names[i]] = "down: " + err.Error()
		switch {
		case !deps[i].optional:
			resp.Status = "not_ready"
		case resp.Status == "ready":
			resp.Status = "degraded"
		}
	}

	code := http.StatusOK
	if resp.Status == "not_ready" {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, resp)
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
