package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/pharmaerp/receiving/internal/infrastructure/config"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"github.com/pharmaerp/receiving/internal/interfaces/http/dto"
	"github.com/pharmaerp/receiving/internal/interfaces/http/middleware"
	"github.com/pharmaerp/receiving/internal/interfaces/validate"
)

// EngineOptions carries what the middleware chain needs besides config
type EngineOptions struct {
	Logger          *zap.Logger
	Meter           metric.Meter // nil disables HTTP metrics
	ServiceName     string
	TracingEnabled  bool
	ProfilerEnabled bool
}

// NewEngine builds a gin engine with the full middleware chain. Routes are
// added afterwards through NewRouter and the probe handler.
func NewEngine(cfg config.HTTPConfig, opts EngineOptions) (*gin.Engine, error) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validate.Configure(v)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	metricsMiddleware, err := middleware.HTTPMetrics(opts.Meter)
	if err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins

	// request ID first so every later layer can log and tag it
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(opts.Logger),
		logger.GinMiddleware(opts.Logger),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: opts.ServiceName,
			Enabled:     opts.TracingEnabled,
		}),
		middleware.SpanEnricher(),
		metricsMiddleware,
		middleware.Profiling(opts.ProfilerEnabled),
		middleware.CORSWithConfig(cors),
		middleware.Secure(),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	if cfg.RateLimitEnabled {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(
			dto.ErrCodeRouteNotFound, "route not found", middleware.GetRequestID(c)))
	})

	return engine, nil
}
