package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kvasnecov/institute_platform/internal/oauth"
	"github.com/kvasnecov/institute_platform/internal/service"
	"github.com/kvasnecov/institute_platform/pkg/logging"
)

// stateCookieMaxAge bounds how long an OAuth handoff may stay open.
const stateCookieMaxAge = 600

type OAuthHTTP struct {
	Svc             *service.SessionService
	Providers       map[string]oauth.Provider
	SuccessRedirect string
	Secure          bool
}

// Start redirects the browser to the provider consent page, pinning a
// random state into a short-lived cookie.
func (h *OAuthHTTP) Start(c echo.Context) error {
	provider, err := h.provider(c)
	if err != nil {
		return err
	}

	state := uuid.NewString()
	c.SetCookie(createStateCookie(state, stateCookieMaxAge, h.Secure))

	return c.Redirect(http.StatusTemporaryRedirect, provider.LoginURL(state))
}

// Redirect finishes the handoff: state check, code exchange, profile
// validation, then a normal oauth login ending at the success URL with
// cookies set.
func (h *OAuthHTTP) Redirect(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "oauth_redirect")

	provider, err := h.provider(c)
	if err != nil {
		return err
	}

	stateCookie, err := c.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != c.QueryParam("state") {
		return echo.NewHTTPError(http.StatusUnauthorized, "oauth state mismatch")
	}
	c.SetCookie(deleteCookie(stateCookieName, h.Secure))

	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authorization code missing")
	}

	profile, err := provider.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrNoEmail) {
			return echo.NewHTTPError(http.StatusUnauthorized, "email not available from provider")
		}
		l.Error("oauth_exchange_failed", "provider", provider.Name(), "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "oauth exchange failed")
	}

	res, err := h.Svc.OAuthLogin(ctx, *profile)
	if err != nil {
		return err
	}

	setAuthCookies(c, res, h.Secure)
	l.Info("oauth_login_successful", "provider", provider.Name(), "user_id", res.User.ID)

	return c.Redirect(http.StatusFound, h.SuccessRedirect)
}

func (h *OAuthHTTP) provider(c echo.Context) (oauth.Provider, error) {
	name := c.Param("provider")
	p, ok := h.Providers[name]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown oauth provider")
	}
	return p, nil
}
