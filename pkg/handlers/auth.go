package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	sqlvalidator "github.com/roledash/roledash-engine/pkg/sql"
)

const (
	sessionName    = "roledash_session"
	sessionKeyRole = "role"
	sessionKeyUser = "user"
)

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Role string `json:"role"`
	User string `json:"user"`
}

// SessionResponse describes the authenticated session.
type SessionResponse struct {
	OK   bool   `json:"ok"`
	Role string `json:"role,omitempty"`
	User string `json:"user,omitempty"`
}

// AuthHandler manages the operator session cookie. The session carries the
// canonical role string; there is no user database behind it.
type AuthHandler struct {
	store  sessions.Store
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler backed by the given session store.
func NewAuthHandler(store sessions.Store, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{store: store, logger: logger}
}

// NewSessionStore builds the cookie-backed session store from the signing key.
func NewSessionStore(sessionKey string) sessions.Store {
	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("GET /api/me", h.Me)
	mux.HandleFunc("POST /api/logout", h.Logout)
}

// Login handles POST /api/login. Stores the selected role in the session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid login request body", zap.Error(err))
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Role == "" {
		writeError(h.logger, w, http.StatusBadRequest, "missing_role", "Missing role")
		return
	}
	if result := sqlvalidator.CheckParameterForInjection("role", req.Role); result != nil {
		h.logger.Warn("rejected role with injection pattern",
			zap.String("fingerprint", result.Fingerprint))
		writeError(h.logger, w, http.StatusBadRequest, "invalid_role", "Invalid role")
		return
	}

	session, _ := h.store.Get(r, sessionName)
	session.Values[sessionKeyRole] = req.Role
	if req.User != "" {
		session.Values[sessionKeyUser] = req.User
	}
	if err := session.Save(r, w); err != nil {
		h.logger.Error("Failed to save session", zap.Error(err))
		writeError(h.logger, w, http.StatusInternalServerError, "session_error", "Failed to create session")
		return
	}

	if err := WriteJSON(w, http.StatusOK, SessionResponse{OK: true, Role: req.Role, User: req.User}); err != nil {
		h.logger.Error("Failed to encode login response", zap.Error(err))
	}
}

// Me handles GET /api/me. Returns the session's role, or 401 when absent.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, _ := h.store.Get(r, sessionName)
	role, _ := session.Values[sessionKeyRole].(string)
	if role == "" {
		writeError(h.logger, w, http.StatusUnauthorized, "not_logged_in", "No active session")
		return
	}
	user, _ := session.Values[sessionKeyUser].(string)
	if err := WriteJSON(w, http.StatusOK, SessionResponse{OK: true, Role: role, User: user}); err != nil {
		h.logger.Error("Failed to encode session response", zap.Error(err))
	}
}

// Logout handles POST /api/logout. Expires the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.store.Get(r, sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		h.logger.Error("Failed to expire session", zap.Error(err))
		writeError(h.logger, w, http.StatusInternalServerError, "session_error", "Failed to end session")
		return
	}
	if err := WriteJSON(w, http.StatusOK, SessionResponse{OK: true}); err != nil {
		h.logger.Error("Failed to encode logout response", zap.Error(err))
	}
}

// writeError writes an error response and logs a failed write.
func writeError(logger *zap.Logger, w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
