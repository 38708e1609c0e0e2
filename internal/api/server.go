package api

import (
	"brainapi/internal/config"
	"brainapi/internal/models"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewServer builds the Echo instance with middleware and all routes.
func NewServer(cfg config.ServerConfig, h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = goJSONSerializer{}
	e.Validator = &requestValidator{v: validator.New()}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.Use(requestLogger())
	e.Use(prometheusMetrics)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var refreshMW []echo.MiddlewareFunc
	if cfg.RefreshRateLimit > 0 {
		refreshMW = append(refreshMW, refreshRateLimiter(cfg.RefreshRateLimit))
	}
	h.RegisterRoutes(e, refreshMW...)
	return e
}

// refreshRateLimiter caps refreshes per client IP at perSecond.
func refreshRateLimiter(perSecond float64) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(perSecond)),
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, models.RefreshFailure{OK: false, Error: "refresh rate limit exceeded"})
		},
	})
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// errorMessage unwraps echo.HTTPError to its message for JSON error bodies.
func errorMessage(err error) string {
	if he, ok := err.(*echo.HTTPError); ok {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}
