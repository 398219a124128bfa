// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/dataset"
	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/session"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	// Store is nil when run history is disabled.
	Store RunStore
	// Sessions is nil when background validation is disabled.
	Sessions       *session.Manager
	NewDataset     func() *dataset.Dataset
	Version        string
	Logger         *zap.Logger
	Development    bool
	RequestTimeout time.Duration
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Validate ValidateHandler
	Session  SessionHandler
	Runs     RunsHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Store),
		Validate: NewValidateHandler(deps.NewDataset, deps.Store, deps.Logger),
		Session:  NewSessionHandler(deps.Sessions),
		Runs:     NewRunsHandler(deps.Store),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.POST("/validate", handlers.Validate.HandleValidate)

	sessionGroup := apiGroup.Group("/sessions")
	sessionGroup.POST("", handlers.Session.HandleStartSession)
	sessionGroup.GET("/:id", handlers.Session.HandleSessionStatus)

	runsGroup := apiGroup.Group("/runs")
	runsGroup.GET("", handlers.Runs.HandleListRuns)
	runsGroup.GET("/:id", handlers.Runs.HandleGetRun)
	runsGroup.GET("/:id/diagnostics", handlers.Runs.HandleGetRunDiagnostics)
	runsGroup.GET("/:id/msgpack", handlers.Runs.HandleGetRunMsgpack)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, deps *Dependencies) {
	log := logging.OrNop(deps.Logger).Named("http")

	e.HTTPErrorHandler = NewErrorHandler(deps.Development, log)

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogMethod:   true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			// Status polling would drown the log.
			return c.Request().URL.Path == "/api/health" ||
				(c.Request().Method == http.MethodGet && strings.HasPrefix(c.Request().URL.Path, "/api/sessions/"))
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	if deps.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout:      deps.RequestTimeout,
			ErrorMessage: "Request timeout - validation took too long",
		}))
	}
}

// NewServer builds an Echo instance with middleware and routes installed.
func NewServer(deps *Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	SetupMiddleware(e, deps)
	RegisterRoutes(e, NewHandlers(deps))
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ErrorLog = zap.NewStdLog(logging.OrNop(deps.Logger).Named("http"))
	return e
}
