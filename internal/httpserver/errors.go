package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kvasnecov/institute_platform/internal/service"
)

type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// HTTPErrorHandler maps session errors onto statuses and wraps everything
// in the uniform error envelope. This is the only error job the transport
// layer has.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken):
		status = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, service.ErrAccountDeactivated),
		errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrNoPassword):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	default:
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		}
	}

	_ = c.JSON(status, errorEnvelope{
		Success: false,
		Error:   errorBody{Message: message, StatusCode: status},
	})
}
