package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kvasnecov/institute_platform/internal/service"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
	stateCookieName   = "oauthState"
)

func createCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// createStateCookie is Lax rather than Strict: the provider callback is a
// cross-site navigation and the browser would not attach a Strict cookie
// to it, which would break the state check on every real login.
func createStateCookie(value string, maxAge int, secure bool) *http.Cookie {
	c := createCookie(stateCookieName, value, maxAge, secure)
	c.SameSite = http.SameSiteLaxMode
	return c
}

func deleteCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// setAuthCookies writes the token pair. The refresh cookie only gets a
// Max-Age under "remember me"; otherwise it is a session cookie and the
// browser drops it on close.
func setAuthCookies(c echo.Context, res *service.AuthResult, secure bool) {
	c.SetCookie(createCookie(accessCookieName, res.AccessToken, int(time.Until(res.AccessExp).Seconds()), secure))

	refreshMaxAge := 0
	if res.IsLongSession {
		refreshMaxAge = int(time.Until(res.RefreshExp).Seconds())
	}
	c.SetCookie(createCookie(refreshCookieName, res.RefreshToken, refreshMaxAge, secure))
}

func clearAuthCookies(c echo.Context, secure bool) {
	c.SetCookie(deleteCookie(accessCookieName, secure))
	c.SetCookie(deleteCookie(refreshCookieName, secure))
}
