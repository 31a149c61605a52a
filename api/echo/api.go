//nolint:varnamelen
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.flowdeck.io/connect/internal/provider"
	"go.flowdeck.io/connect/services"
)

// ConnectAPI struct to hold dependencies.
type ConnectAPI struct {
	flow     *services.FlowService
	registry *provider.Registry
}

// NewConnectAPI initializes the connection-flow API.
func NewConnectAPI(flow *services.FlowService, registry *provider.Registry) *ConnectAPI {
	return &ConnectAPI{
		flow:     flow,
		registry: registry,
	}
}

// RegisterRoutes registers the connection-flow routes.
func (a *ConnectAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/auth/:provider", a.AuthHandler)
	e.GET("/api/providers", a.ProvidersHandler)

	e.GET("/healthz", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// AuthHandler serves both hops of the redirect chain for one provider. A
// request with neither code nor error is an initiation; anything else is the
// provider callback. Every outcome is a 302 redirect back to the dashboard —
// failures are carried as machine-readable error codes in the query string,
// never as HTTP error pages.
func (a *ConnectAPI) AuthHandler(c echo.Context) error {
	name := c.Param("provider")
	if _, err := a.registry.Get(name); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error":             "unknown_provider",
			"error_description": "no such provider: " + name,
		})
	}

	ctx := c.Request().Context()
	code := c.QueryParam("code")
	errParam := c.QueryParam("error")

	if code == "" && errParam == "" {
		target := a.flow.Initiate(ctx, name, c.QueryParam("from"))
		return c.Redirect(http.StatusFound, target)
	}

	target := a.flow.Callback(ctx, name, services.CallbackParams{
		Code:             code,
		State:            c.QueryParam("state"),
		Error:            errParam,
		ErrorDescription: c.QueryParam("error_description"),
	})
	return c.Redirect(http.StatusFound, target)
}

// ProvidersHandler lists the connectable providers; the dashboard renders
// its connect buttons from this.
func (a *ConnectAPI) ProvidersHandler(c echo.Context) error {
	names := a.registry.Names()
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		d, err := a.registry.Get(name)
		if err != nil {
			log.Error().Err(err).Str("provider", name).Msg("Registry lookup failed for listed provider")
			continue
		}
		out = append(out, map[string]any{
			"name":      d.Name(),
			"auth_type": d.AuthType(),
			"auth_url":  "/api/auth/" + d.Name(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"providers": out})
}

// HealthHandler reports liveness.
func (a *ConnectAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
