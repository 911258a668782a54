package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agrilink/backend-agrilink/internal/common"
)

// CookieConfig controls how the refresh and CSRF cookies are issued.
type CookieConfig struct {
	RefreshName string
	CSRFName    string
	Domain      string
	Secure      bool
	SameSite    http.SameSite
}

// Handlers exposes authentication endpoints over HTTP.
type Handlers struct {
	service *Service
	cookies CookieConfig
}

// NewHandlers wires the auth service into HTTP handlers.
func NewHandlers(service *Service, cookies CookieConfig) *Handlers {
	if cookies.RefreshName == "" {
		cookies.RefreshName = "agrilink_refresh"
	}
	if cookies.CSRFName == "" {
		cookies.CSRFName = "csrftoken"
	}
	if cookies.SameSite == http.SameSiteDefaultMode {
		cookies.SameSite = http.SameSiteLaxMode
	}
	return &Handlers{service: service, cookies: cookies}
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	UserType    string `json:"user_type"`
	PhoneNumber string `json:"phone_number"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	user, err := h.service.Register(r.Context(), RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		UserType:    req.UserType,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login. It accepts a username or an
// email address and issues the refresh token as an HTTP-only cookie
// alongside a fresh CSRF token cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		identifier = req.Email
	}

	result, err := h.service.Login(r.Context(), identifier, req.Password, r.UserAgent(), common.ClientIP(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)
	if err := h.setCSRFCookie(w, result.RefreshExpiry); err != nil {
		common.WriteError(w, err)
		return
	}

	common.JSONData(w, http.StatusOK, map[string]any{
		"user":              result.User,
		"access_token":      result.AccessToken,
		"access_expires_at": result.AccessExpiry,
	})
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token is read
// from the cookie and rotated on every call.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cookies.RefreshName)
	if err != nil || cookie.Value == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh token", nil)
		return
	}

	result, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.clearRefreshCookie(w)
		common.WriteError(w, err)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)
	common.JSONData(w, http.StatusOK, map[string]any{
		"access_token":      result.AccessToken,
		"access_expires_at": result.AccessExpiry,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookies.RefreshName); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	h.clearRefreshCookie(w)
	common.JSONData(w, http.StatusOK, map[string]any{"logged_out": true})
}

// Me handles GET /api/v1/auth/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	user, err := h.service.Me(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, user)
}

func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.RefreshName,
		Value:    token,
		Path:     "/api/v1/auth",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.RefreshName,
		Value:    "",
		Path:     "/api/v1/auth",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
}

// setCSRFCookie issues the double-submit token. The cookie is readable
// by scripts so the frontend can echo it back in the request header.
func (h *Handlers) setCSRFCookie(w http.ResponseWriter, expires time.Time) error {
	token, err := generateToken(32)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.CSRFName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		HttpOnly: false,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
	return nil
}
