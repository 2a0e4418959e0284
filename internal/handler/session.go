package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/pterodactyl/panel/internal/service"
)

// SessionHandler issues panel session tokens.
type SessionHandler struct {
	authSvc *service.AuthService
	ttl     time.Duration
}

// NewSessionHandler creates a SessionHandler. ttl is only reported to the
// client; the AuthService decides the actual token lifetime.
func NewSessionHandler(authSvc *service.AuthService, ttl time.Duration) *SessionHandler {
	return &SessionHandler{authSvc: authSvc, ttl: ttl}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	RootAdmin bool   `json:"root_admin"`
}

// Login authenticates a panel user and returns a JWT session token.
// POST /api/v1/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeStoreError(w, r, err, "Authentication error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.ttl.Seconds()),
		UserID:    user.ID,
		Username:  user.Username,
		RootAdmin: user.RootAdmin,
	})
}
