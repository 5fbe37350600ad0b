package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/api/handler"
	"github.com/disciplina/discipline-kernel/internal/api/middleware"
	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	JWTSecret  string
	Log        zerolog.Logger
	Cycles     handler.CycleEnqueuer
	Executions handler.ExecutionLogger
	Health     map[string]handler.Pinger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddleware("discipline_http"))

	// --- Health probes and metrics (no auth required) ---
	health := handler.NewHealthHandler(d.Health)
	e.GET("/health", health.Liveness)        // liveness
	e.GET("/health/ready", health.Readiness) // readiness
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Kernel operations ---
	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret), middleware.RBAC(domain.RoleAdmin, domain.RoleMember))
	v1.POST("/cycles", handler.NewCycleHandler(d.Cycles).Trigger)
	v1.POST("/instances/:id/executions", handler.NewExecutionHandler(d.Executions).Log)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	log = log.With().Str("component", "http").Logger()
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
