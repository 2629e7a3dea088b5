package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kvasnecov/institute_platform/internal/middleware"
)

type Deps struct {
	AuthHandler  *AuthHTTP
	OAuthHandler *OAuthHTTP
	Auth         *middleware.AuthMiddleware
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = HTTPErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	auth := e.Group("/api/v1/auth")

	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.GET("/avatar/:id", d.AuthHandler.Avatar)

	auth.GET("/:provider", d.OAuthHandler.Start)
	auth.GET("/:provider/redirect", d.OAuthHandler.Redirect)

	private := auth.Group("")
	private.Use(d.Auth.RequireAuth)

	private.POST("/logout", d.AuthHandler.Logout)
	private.GET("/me", d.AuthHandler.Me)
	private.PATCH("/me", d.AuthHandler.UpdateProfile)
	private.POST("/change-password", d.AuthHandler.ChangePassword)
}
