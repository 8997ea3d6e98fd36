package router

import (
	"github.com/billingwatch/backend/internal/infrastructure/logger"
	"github.com/billingwatch/backend/internal/interfaces/http/handler"
	"github.com/billingwatch/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine        *gin.Engine
	apiVersion    string
	apiMiddleware []gin.HandlerFunc
	registrars    []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithAPIMiddleware adds middleware applied only to the versioned API group
func WithAPIMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.apiMiddleware = append(r.apiMiddleware, mw...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.apiMiddleware) > 0 {
		api.Use(r.apiMiddleware...)
	}

	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig holds everything needed to assemble the worker's HTTP engine
type EngineConfig struct {
	ServiceName    string
	Logger         *zap.Logger
	Meter          metric.Meter // nil disables HTTP metrics
	TracingEnabled bool
	BodyLimit      int64
	TokenValidator middleware.TokenValidator

	System       *handler.SystemHandler
	BillingCheck *handler.BillingCheckHandler
}

// NewEngine builds the gin engine: system routes at the root, the billing check
// endpoint under /api/v1 behind body limit and service token auth.
func NewEngine(cfg EngineConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	bodyLimit := cfg.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = middleware.DefaultBodyLimit
	}

	engine := gin.New()
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log, "/health", "/system/ping"),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.Secure(),
	)

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
		system := engine.Group("/system")
		system.GET("/ping", cfg.System.Ping)
		system.GET("/info", cfg.System.GetSystemInfo)
	}

	r := NewRouter(engine, WithAPIMiddleware(
		middleware.BodyLimit(bodyLimit),
		middleware.ServiceTokenAuth(middleware.ServiceTokenConfig{
			Validator: cfg.TokenValidator,
			Logger:    log,
		}),
	))
	if cfg.BillingCheck != nil {
		r.Register(cfg.BillingCheck)
	}
	r.Setup()

	return engine
}
