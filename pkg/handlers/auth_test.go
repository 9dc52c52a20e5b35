package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthMux() *http.ServeMux {
	mux := http.NewServeMux()
	NewAuthHandler(NewSessionStore("test-signing-key"), zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestLoginMeLogoutFlow(t *testing.T) {
	mux := newAuthMux()

	// Login sets the session cookie.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"role": "Sales Manager", "user": "ana"}`))
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "roledash_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// Me echoes the session.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookies[0])
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Sales Manager", body["role"])
	assert.Equal(t, "ana", body["user"])

	// Logout expires the cookie.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.AddCookie(cookies[0])
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	expired := rec.Result().Cookies()
	require.NotEmpty(t, expired)
	assert.LessOrEqual(t, expired[0].MaxAge, 0)
}

func TestMeWithoutSession(t *testing.T) {
	mux := newAuthMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_logged_in", decodeBody(t, rec)["error"])
}

func TestLoginRejectsEmptyRole(t *testing.T) {
	mux := newAuthMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"role": ""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_role", decodeBody(t, rec)["error"])
}

func TestLoginRejectsInjectionPattern(t *testing.T) {
	mux := newAuthMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"role": "admin' OR '1'='1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_role", decodeBody(t, rec)["error"])
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	mux := newAuthMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
