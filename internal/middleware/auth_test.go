package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasnecov/institute_platform/internal/models"
	"github.com/kvasnecov/institute_platform/pkg/tokens"
)

func testCodec() *tokens.Codec {
	return &tokens.Codec{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func signedAccessToken(t *testing.T, codec *tokens.Codec, role string) string {
	t.Helper()
	token, err := codec.SignAccess("user-1", "a@b.com", role, time.Now().Add(15*time.Minute))
	require.NoError(t, err)
	return token
}

// callProtected runs a request through RequireAuth (plus any extra
// middleware) into a handler that echoes the context identity.
func callProtected(t *testing.T, codec *tokens.Codec, prepare func(*http.Request), extra ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if prepare != nil {
		prepare(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c)+"|"+Role(c))
	}
	for i := len(extra) - 1; i >= 0; i-- {
		handler = extra[i](handler)
	}

	m := NewAuthMiddleware(codec)
	return rec, m.RequireAuth(handler)(c)
}

func TestRequireAuth_CookieToken(t *testing.T) {
	t.Parallel()

	codec := testCodec()
	token := signedAccessToken(t, codec, models.RoleUser)

	rec, err := callProtected(t, codec, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: token})
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1|"+models.RoleUser, rec.Body.String())
}

func TestRequireAuth_BearerToken(t *testing.T) {
	t.Parallel()

	codec := testCodec()
	token := signedAccessToken(t, codec, models.RoleUser)

	rec, err := callProtected(t, codec, func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	})
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), "user-1")
}

func TestRequireAuth_MissingToken(t *testing.T) {
	t.Parallel()

	_, err := callProtected(t, testCodec(), nil)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireAuth_BadToken(t *testing.T) {
	t.Parallel()

	codec := testCodec()

	for _, raw := range []string{
		"garbage",
		signedAccessToken(t, &tokens.Codec{AccessSecret: []byte("other-secret")}, models.RoleUser),
	} {
		_, err := callProtected(t, codec, func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "accessToken", Value: raw})
		})
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	t.Parallel()

	codec := testCodec()
	token, err := codec.SignAccess("user-1", "a@b.com", models.RoleUser, time.Now().Add(-5*time.Minute))
	require.NoError(t, err)

	_, callErr := callProtected(t, codec, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: token})
	})
	var he *echo.HTTPError
	require.ErrorAs(t, callErr, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	codec := testCodec()

	adminToken := signedAccessToken(t, codec, models.RoleAdmin)
	rec, err := callProtected(t, codec, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: adminToken})
	}, RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), models.RoleAdmin)

	userToken := signedAccessToken(t, codec, models.RoleUser)
	_, err = callProtected(t, codec, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: userToken})
	}, RequireRole(models.RoleAdmin, models.RoleSuperAdmin))

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Code)
}
