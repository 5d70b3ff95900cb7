package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/propbill/backend/internal/infrastructure/config"
	"github.com/propbill/backend/internal/infrastructure/metrics"
	"github.com/propbill/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRoutes struct {
	prefix string
}

func (p pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST(p.prefix+"/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).Register(pingRoutes{prefix: "/bills"}).Setup()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bills/ping", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterRegistrarMiddlewareIsScoped(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).
		Register(pingRoutes{prefix: "/bills"}, middleware.BodyLimit(8)).
		Register(pingRoutes{prefix: "/imports"}).
		Setup()

	body := strings.Repeat("x", 64)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bills/ping", strings.NewReader(body))
	req.ContentLength = int64(len(body))
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/imports/ping", strings.NewReader(body))
	req.ContentLength = int64(len(body))
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg, "test")

	engine, err := NewEngine(EngineConfig{
		Env:      "test",
		HTTP:     config.HTTPConfig{CORSAllowOrigins: []string{"https://app.example.com"}},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Recorder: m,
	})
	require.NoError(t, err)

	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "propbill_http_requests_total")
}

func TestNewEngineWithoutMetrics(t *testing.T) {
	engine, err := NewEngine(EngineConfig{Env: "test"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewEngineRejectsBadProxy(t *testing.T) {
	_, err := NewEngine(EngineConfig{
		Env:  "test",
		HTTP: config.HTTPConfig{TrustedProxies: []string{"not-an-ip"}},
	})
	assert.Error(t, err)
}
