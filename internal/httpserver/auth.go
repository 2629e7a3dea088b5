package httpserver

import (
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kvasnecov/institute_platform/internal/middleware"
	"github.com/kvasnecov/institute_platform/internal/models"
	"github.com/kvasnecov/institute_platform/internal/service"
	"github.com/kvasnecov/institute_platform/pkg/logging"
)

type AuthHTTP struct {
	Svc    *service.SessionService
	Secure bool
}

type authResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Name == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email, name and password are required")
	}

	res, err := h.Svc.Register(ctx, req.Email, req.Name, req.Password, req.Username)
	if err != nil {
		return err
	}

	setAuthCookies(c, res, h.Secure)
	l.Info("register_successful", "user_id", res.User.ID)

	return c.JSON(http.StatusCreated, authResponse{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"rememberMe"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password, req.RememberMe)
	if err != nil {
		return err
	}

	setAuthCookies(c, res, h.Secure)
	l.Info("login_successful", "user_id", res.User.ID)

	return c.JSON(http.StatusOK, authResponse{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.Bind(&req)

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		if cookie, err := c.Cookie(refreshCookieName); err == nil {
			refreshToken = cookie.Value
		}
	}

	res, err := h.Svc.Refresh(ctx, refreshToken)
	if err != nil {
		clearAuthCookies(c, h.Secure)
		return err
	}

	setAuthCookies(c, res, h.Secure)

	return c.JSON(http.StatusOK, authResponse{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		h.Svc.Logout(ctx, cookie.Value)
	}

	clearAuthCookies(c, h.Secure)
	l.Info("logout_successful")
	return c.JSON(http.StatusOK, echo.Map{})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := h.Svc.GetUser(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *AuthHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()

	upd, avatar, err := bindProfileUpdate(c)
	if err != nil {
		return err
	}

	user, err := h.Svc.UpdateProfile(ctx, middleware.UserID(c), upd, avatar)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "currentPassword and newPassword are required")
	}

	if err := h.Svc.ChangePassword(ctx, middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{})
}

func (h *AuthHTTP) Avatar(c echo.Context) error {
	avatar, err := h.Svc.GetAvatar(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	c.Response().Header().Set("Content-Disposition", "inline")
	return c.Blob(http.StatusOK, avatar.MimeType, avatar.Data)
}

// bindProfileUpdate reads the multipart profile form. Absent fields stay
// nil so the directory leaves them untouched.
func bindProfileUpdate(c echo.Context) (models.UserUpdate, *service.Avatar, error) {
	var upd models.UserUpdate

	form, err := c.MultipartForm()
	if err != nil {
		return upd, nil, echo.NewHTTPError(http.StatusBadRequest, "multipart form expected")
	}

	upd.Name = formPtr(form.Value, "name")
	upd.Username = formPtr(form.Value, "username")
	upd.PhoneNumber = formPtr(form.Value, "phoneNumber")
	upd.Gender = formPtr(form.Value, "gender")

	if dobStr := formPtr(form.Value, "dob"); dobStr != nil {
		dob, err := time.Parse("2006-01-02", *dobStr)
		if err != nil {
			return upd, nil, echo.NewHTTPError(http.StatusBadRequest, "dob must be YYYY-MM-DD")
		}
		upd.DOB = &dob
	}

	var avatar *service.Avatar
	if files := form.File["avatar"]; len(files) > 0 {
		avatar, err = readAvatar(files[0])
		if err != nil {
			return upd, nil, echo.NewHTTPError(http.StatusBadRequest, "cannot read avatar file")
		}
	}

	return upd, avatar, nil
}

func formPtr(values map[string][]string, key string) *string {
	if v, ok := values[key]; ok && len(v) > 0 {
		return &v[0]
	}
	return nil
}

func readAvatar(fh *multipart.FileHeader) (*service.Avatar, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.Avatar{
		Data:     data,
		MimeType: fh.Header.Get("Content-Type"),
	}, nil
}
