package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/handler"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/pkg/config"
)

func newTestRouter(t *testing.T, env string, checks map[string]handler.ReadinessCheck) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: env, APIPrefix: "/api/v1"}
	return NewRouter(cfg, zap.NewNop(), service.NewMetricsService(), nil, nil, checks)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRouterProbesAndMetrics(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment, map[string]handler.ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})

	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready").Code)
	require.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/unknown").Code)

	w := serve(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRouterReadyDegraded(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment, map[string]handler.ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	w := serve(r, http.MethodGet, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "degraded")
}

func TestRouterRegistersPipelineRoutes(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment, nil)

	routes := make(map[string]struct{})
	for _, route := range r.Routes() {
		routes[route.Method+" "+route.Path] = struct{}{}
	}
	for _, want := range []string{
		"POST /api/v1/absences",
		"GET /api/v1/absences",
		"GET /api/v1/workload",
		"POST /api/v1/substitutions/process",
		"GET /api/v1/substitutions/pending",
		"GET /api/v1/substitutions/expired",
		"POST /api/v1/substitutions/reconcile",
		"POST /api/v1/substitutions/confirm",
		"POST /api/v1/substitutions/finalize",
		"POST /api/v1/substitutions/expire",
		"GET /docs/*any",
	} {
		require.Contains(t, routes, want)
	}
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	r := newTestRouter(t, config.EnvProduction, nil)
	defer gin.SetMode(gin.TestMode)

	for _, route := range r.Routes() {
		require.NotEqual(t, "/docs/*any", route.Path)
	}
}
