package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})
	c, w := newJSONContext(t, http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	c, w = newJSONContext(t, http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerHealthAndPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	handler := NewMetricsHandler(metrics, nil)

	c, w := newJSONContext(t, http.MethodGet, "/health", nil)
	handler.Health(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)

	c, w = newJSONContext(t, http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
}
