package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Handlers) {
	t.Helper()
	svc := newTestService(t, newFakeStore())
	handlers := NewHandlers(svc, CookieConfig{
		RefreshName: "agrilink_refresh",
		CSRFName:    "csrftoken",
		SameSite:    http.SameSiteLaxMode,
	})

	r := chi.NewRouter()
	r.Use(handlers.Authenticate)
	r.Post("/api/v1/auth/register", handlers.Register)
	r.Post("/api/v1/auth/login", handlers.Login)
	r.Post("/api/v1/auth/refresh", handlers.Refresh)
	r.Post("/api/v1/auth/logout", handlers.Logout)
	r.With(RequireAuth).Get("/api/v1/auth/me", handlers.Me)
	return r, handlers
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func cookieByName(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func registerAndLogin(t *testing.T, r http.Handler) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username":  "wati",
		"email":     "wati@example.com",
		"password":  "correct horse battery",
		"user_type": "farmer",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"username": "wati",
		"password": "correct horse battery",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Data.AccessToken)

	cookie := cookieByName(t, rec, "agrilink_refresh")
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/api/v1/auth", cookie.Path)

	csrf := cookieByName(t, rec, "csrftoken")
	require.NotNil(t, csrf)
	require.False(t, csrf.HttpOnly)

	return payload.Data.AccessToken, cookie
}

func TestRegisterHandlerRejectsBadJSON(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginIssuesCookiesAndToken(t *testing.T) {
	r, _ := newTestRouter(t)
	registerAndLogin(t, r)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	r, _ := newTestRouter(t)
	registerAndLogin(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"username": "wati",
		"password": "wrong password here",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")
}

func TestMeRequiresBearerToken(t *testing.T) {
	r, _ := newTestRouter(t)
	token, _ := registerAndLogin(t, r)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/auth/me", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "wati@example.com")
}

func TestAuthenticateRejectsTamperedToken(t *testing.T) {
	r, _ := newTestRouter(t)
	token, _ := registerAndLogin(t, r)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token+"tamper")
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshHandlerRotatesCookie(t *testing.T) {
	r, _ := newTestRouter(t)
	_, refresh := registerAndLogin(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", nil, func(req *http.Request) {
		req.AddCookie(refresh)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rotated := cookieByName(t, rec, "agrilink_refresh")
	require.NotNil(t, rotated)
	require.NotEqual(t, refresh.Value, rotated.Value)

	// Replaying the original cookie fails after rotation.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", nil, func(req *http.Request) {
		req.AddCookie(refresh)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshHandlerWithoutCookie(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsCookieAndSession(t *testing.T) {
	r, _ := newTestRouter(t)
	_, refresh := registerAndLogin(t, r)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/auth/logout", nil, func(req *http.Request) {
		req.AddCookie(refresh)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := cookieByName(t, rec, "agrilink_refresh")
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", nil, func(req *http.Request) {
		req.AddCookie(refresh)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
