package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("postgres", func(context.Context) error { return nil })

		w := serve(t, h, "/health/ready")
		require.Equal(t, http.StatusOK, w.Code)

		var body ReadinessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, "up", body.Checks["postgres"])
	})

	t.Run("one dependency down", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("postgres", func(context.Context) error { return nil })
		h.RegisterCheck("kafka", func(context.Context) error { return errors.New("no brokers") })

		w := serve(t, h, "/health/ready")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body ReadinessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "down: no brokers", body.Checks["kafka"])
	})

	t.Run("optional dependency down degrades", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("postgres", func(context.Context) error { return nil })
		h.RegisterOptional("redis", func(context.Context) error { return errors.New("connection refused") })

		w := serve(t, h, "/health/ready")
		require.Equal(t, http.StatusOK, w.Code)

		var body ReadinessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "up", body.Checks["postgres"])
		assert.Equal(t, "down: connection refused", body.Checks["redis"])
	})

	t.Run("slow check is cut off", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("kafka", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		w := serve(t, h, "/health/ready")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestLivenessAndStatus(t *testing.T) {
	h := New("staging")
	assert.Equal(t, http.StatusOK, serve(t, h, "/health/live").Code)

	w := serve(t, h, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var body StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "staging", body.Environment)
	assert.Equal(t, Version, body.Version)
}
