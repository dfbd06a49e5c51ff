// Package verifier calls the external biometric verifier over HTTP. Calls
// go through a circuit breaker; while it is open the vesting ledger sees
// store_unavailable instead of waiting on timeouts.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	"covenant/internal/platform/config"
	"covenant/internal/vesting"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/circuit"
	"covenant/pkg/requestcontext"
)

const verifyPath = "/v1/verify"

type verifyRequest struct {
	IdentityID string `json:"identity_id"`
	Strictness string `json:"strictness"`
}

type verifyResponse struct {
	Success    bool            `json:"success"`
	MatchScore decimal.Decimal `json:"match_score"`
}

type Metrics struct {
	Requests    *prometheus.CounterVec
	CircuitOpen prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_verifier_requests_total",
			Help: "Biometric verifier calls by result",
		}, []string{"result"}),
		CircuitOpen: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "covenant_verifier_circuit_open",
			Help: "1 while the verifier circuit breaker is open",
		}),
	}
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	metrics *Metrics
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBreaker replaces the breaker built from config.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

func New(cfg config.Verifier, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.New("biometric-verifier",
			circuit.WithFailureThreshold(cfg.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.SuccessThreshold),
			circuit.WithCooldown(cfg.Cooldown),
		),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ vesting.BiometricVerifier = (*Client)(nil)

// Verify asks the verifier to re-verify the identity at the given
// strictness. Transport failures and 5xx responses count against the
// breaker and surface as store_unavailable.
func (c *Client) Verify(ctx context.Context, identityID id.IdentityID, strictness ledger.Strictness) (*vesting.Verification, error) {
	if c.baseURL == "" {
		c.count("unconfigured")
		return nil, dErrors.New(dErrors.CodeStoreUnavailable, "biometric verifier is not configured")
	}
	if !c.breaker.Allow() {
		c.count("circuit_open")
		return nil, dErrors.New(dErrors.CodeStoreUnavailable, "biometric verifier circuit open")
	}

	result, err := c.call(ctx, identityID, strictness)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeStoreUnavailable) {
			c.recordFailure(ctx)
			c.count("unavailable")
		} else {
			c.recordSuccess(ctx)
			c.count("error")
		}
		return nil, err
	}
	c.recordSuccess(ctx)
	if result.Passed {
		c.count("passed")
	} else {
		c.count("failed")
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, identityID id.IdentityID, strictness ledger.Strictness) (*vesting.Verification, error) {
	body, err := json.Marshal(verifyRequest{IdentityID: identityID.String(), Strictness: string(strictness)})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode verify request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+verifyPath, bytes.NewReader(body))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build verify request")
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "biometric verifier request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, dErrors.New(dErrors.CodeStoreUnavailable, fmt.Sprintf("biometric verifier returned %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("biometric verifier rejected request: %s", resp.Status))
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode verifier response")
	}
	return &vesting.Verification{Passed: out.Success, Score: out.MatchScore}, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if c.breaker.Failure() == circuit.Opened {
		c.logger.WarnContext(ctx, "verifier circuit opened", "breaker", c.breaker.Name())
		c.setOpen(1)
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if c.breaker.Success() == circuit.Closed {
		c.logger.InfoContext(ctx, "verifier circuit closed", "breaker", c.breaker.Name())
		c.setOpen(0)
	}
}

func (c *Client) count(result string) {
	if c.metrics != nil {
		c.metrics.Requests.WithLabelValues(result).Inc()
	}
}

func (c *Client) setOpen(v float64) {
	if c.metrics != nil {
		c.metrics.CircuitOpen.Set(v)
	}
}
