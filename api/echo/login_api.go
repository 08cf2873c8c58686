//nolint:varnamelen
package echo

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/shadow-crest/crest"
	"github.com/pilab-dev/shadow-crest/log"
	"github.com/pilab-dev/shadow-crest/services"
	"github.com/pilab-dev/shadow-crest/session"
	"github.com/pilab-dev/shadow-crest/sso"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LoginFlow is the login orchestration the API exposes. *services.LoginService implements it.
type LoginFlow interface {
	RequestAuthorization(ctx context.Context, sess *session.Session, req services.AuthorizationRequest) (services.Result, error)
	CallbackAuthorization(ctx context.Context, sess *session.Session, code, state string) services.Result
	CurrentLocation(ctx context.Context, sess *session.Session) (crest.Location, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// LoginAPI holds the HTTP handlers of the login server.
type LoginAPI struct {
	flow   LoginFlow
	checks map[string]HealthCheck
	logger log.Logger
}

// NewLoginAPI initializes the login API.
func NewLoginAPI(flow LoginFlow, checks map[string]HealthCheck, logger log.Logger) *LoginAPI {
	return &LoginAPI{flow: flow, checks: checks, logger: logger}
}

// RegisterRoutes registers the SSO, session and operational routes. The session routes
// must run behind SessionMiddleware.
func (a *LoginAPI) RegisterRoutes(e *echo.Echo, sessions echo.MiddlewareFunc) {
	e.GET("/healthz", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ssoGroup := e.Group("/sso", sessions)
	ssoGroup.GET("/requestAuthorization", a.RequestAuthorizationHandler)
	ssoGroup.GET("/callbackAuthorization", a.CallbackAuthorizationHandler)

	apiGroup := e.Group("/api", sessions)
	apiGroup.GET("/character/location", a.LocationHandler)
	apiGroup.GET("/session/error", a.SessionErrorHandler)
	apiGroup.POST("/session/logout", a.LogoutHandler)
}

// RequestAuthorizationHandler starts a login. The optional characterId query parameter
// restricts the login to one character, or is -1 for adding a character to the account.
func (a *LoginAPI) RequestAuthorizationHandler(c echo.Context) error {
	var req services.AuthorizationRequest
	if raw := c.QueryParam("characterId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < session.RestrictAddCharacter {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid characterId")
		}
		req.CharacterID = &id
	}

	res, err := a.flow.RequestAuthorization(c.Request().Context(), SessionFrom(c), req)
	if err != nil {
		a.logger.Error(c.Request().Context(), "Unable to build the authorization redirect", err)
		return echo.NewHTTPError(http.StatusBadGateway, "SSO is misconfigured")
	}
	return c.Redirect(http.StatusFound, res.Redirect)
}

// CallbackAuthorizationHandler completes a login started by RequestAuthorizationHandler.
// Every outcome is a redirect; failures leave their message in the session.
func (a *LoginAPI) CallbackAuthorizationHandler(c echo.Context) error {
	res := a.flow.CallbackAuthorization(c.Request().Context(), SessionFrom(c), c.QueryParam("code"), c.QueryParam("state"))
	return c.Redirect(http.StatusFound, res.Redirect)
}

// LocationHandler returns the current location of the logged in character.
func (a *LoginAPI) LocationHandler(c echo.Context) error {
	loc, err := a.flow.CurrentLocation(c.Request().Context(), SessionFrom(c))
	switch {
	case errors.Is(err, services.ErrNotLoggedIn):
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	case errors.Is(err, sso.ErrTransportTimeout), errors.Is(err, sso.ErrTransport):
		return c.JSON(http.StatusOK, crest.Location{Timeout: true})
	case err != nil:
		a.logger.Error(c.Request().Context(), "Unable to load location", err)
		return echo.NewHTTPError(http.StatusBadGateway, "unable to load location")
	}
	return c.JSON(http.StatusOK, loc)
}

// SessionErrorHandler returns and clears the pending login error message.
func (a *LoginAPI) SessionErrorHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"error": SessionFrom(c).TakeError()})
}

// LogoutHandler clears the active user and character.
func (a *LoginAPI) LogoutHandler(c echo.Context) error {
	SessionFrom(c).Logout()
	return c.NoContent(http.StatusNoContent)
}

// HealthHandler runs every registered check.
func (a *LoginAPI) HealthHandler(c echo.Context) error {
	status := http.StatusOK
	report := make(map[string]string, len(a.checks))
	for name, check := range a.checks {
		if err := check(c.Request().Context()); err != nil {
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}
	return c.JSON(status, report)
}
