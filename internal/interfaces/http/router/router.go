package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/propbill/backend/internal/infrastructure/config"
	"github.com/propbill/backend/internal/infrastructure/logger"
	"github.com/propbill/backend/internal/infrastructure/metrics"
	"github.com/propbill/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []registration
}

type registration struct {
	registrar  RouteRegistrar
	middleware []gin.HandlerFunc
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]registration, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later. The middleware runs
// only for the registrar's own routes.
func (r *Router) Register(registrar RouteRegistrar, middleware ...gin.HandlerFunc) *Router {
	r.registrars = append(r.registrars, registration{
		registrar:  registrar,
		middleware: middleware,
	})
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)

	for _, reg := range r.registrars {
		group := api
		if len(reg.middleware) > 0 {
			group = api.Group("", reg.middleware...)
		}
		reg.registrar.RegisterRoutes(group)
	}
}

// EngineConfig carries what NewEngine needs to build the global middleware
// chain
type EngineConfig struct {
	Env     string
	HTTP    config.HTTPConfig
	Metrics config.MetricsConfig
	Logger  *zap.Logger
	// Recorder may be nil, which disables request metrics and /metrics
	Recorder *metrics.Metrics
}

// NewEngine builds a gin engine with the global middleware chain installed
// and /metrics mounted when enabled
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TraceContext())
	engine.Use(logger.GinMiddleware(log, "/health", metricsPath))
	engine.Use(middleware.HTTPMetrics(cfg.Recorder))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)))

	if cfg.Recorder != nil && cfg.Metrics.Enabled {
		engine.GET(metricsPath, gin.WrapH(cfg.Recorder.Handler()))
	}

	return engine, nil
}
