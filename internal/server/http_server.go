package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	connectapi "go.flowdeck.io/connect/api/echo"
	"go.flowdeck.io/connect/config"
	"go.flowdeck.io/connect/log"
)

// NewHTTPServer creates and configures the Echo HTTP server serving the
// connection-flow routes.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, api *connectapi.ConnectAPI) *http.Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// Request logging through our logger interface.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			fields := map[string]interface{}{
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if err != nil {
				appLogger.Error(c.Request().Context(), "HTTP request failed", err, fields)
			} else {
				appLogger.Info(c.Request().Context(), "HTTP request", fields)
			}
			return err
		}
	})

	api.RegisterRoutes(e)

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
