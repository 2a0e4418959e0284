package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
	"github.com/pterodactyl/panel/internal/server/middleware"
)

// KeyProvider hands out usable daemon keys.
type KeyProvider interface {
	Handle(ctx context.Context, server model.Server, user model.User, updateIfExpired bool) (string, error)
}

// KeyRevoker revokes every daemon key of a user.
type KeyRevoker interface {
	RevokeAll(ctx context.Context, userID int64) (int64, error)
}

// DaemonKeyHandler serves daemon keys to panel users, lets admins revoke
// them, and lets daemons resolve a presented key.
type DaemonKeyHandler struct {
	store    *config.Store
	provider KeyProvider
	revoker  KeyRevoker
}

// NewDaemonKeyHandler creates a DaemonKeyHandler.
func NewDaemonKeyHandler(store *config.Store, provider KeyProvider, revoker KeyRevoker) *DaemonKeyHandler {
	return &DaemonKeyHandler{store: store, provider: provider, revoker: revoker}
}

type daemonKeyResponse struct {
	Key        string `json:"key"`
	ServerUUID string `json:"server_uuid"`
}

// GetKey returns a usable daemon key for the authenticated user on a server,
// rotating an expired key unless refresh=false. Users without access get 404.
// GET /api/v1/servers/{serverID}/daemon-key
func (h *DaemonKeyHandler) GetKey(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil || principal.Type != middleware.PrincipalUser {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	serverID, ok := pathID(r, "serverID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}

	// Reload the user so a revoked admin flag takes effect before the token
	// expires.
	user, err := h.store.GetUser(r.Context(), principal.UserID)
	if err != nil {
		writeStoreError(w, r, err, "Failed to load user")
		return
	}
	srv, err := h.store.GetServer(r.Context(), serverID)
	if err != nil {
		writeStoreError(w, r, err, "Failed to load server")
		return
	}

	secret, err := h.provider.Handle(r.Context(), *srv, *user, queryBool(r, "refresh", true))
	if err != nil {
		writeStoreError(w, r, err, "Failed to obtain daemon key")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, daemonKeyResponse{Key: secret, ServerUUID: srv.UUID})
}

// RevokeUserKeys revokes every daemon key a user holds.
// DELETE /api/v1/admin/users/{userID}/daemon-keys
func (h *DaemonKeyHandler) RevokeUserKeys(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		writeStoreError(w, r, err, "Failed to load user")
		return
	}

	n, err := h.revoker.RevokeAll(r.Context(), userID)
	if err != nil {
		writeStoreError(w, r, err, "Failed to revoke daemon keys")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": n})
}

type remoteKeyResponse struct {
	ServerUUID string    `json:"server_uuid"`
	UserID     int64     `json:"user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RemoteLookup lets a daemon resolve a presented key. A node only sees keys
// for servers it hosts.
// GET /api/remote/keys/{secret}
func (h *DaemonKeyHandler) RemoteLookup(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil || principal.Type != middleware.PrincipalNode {
		writeError(w, http.StatusUnauthorized, "Node authentication required")
		return
	}

	secret := chi.URLParam(r, "secret")
	key, err := h.store.FindDaemonKeyBySecret(r.Context(), secret)
	if err != nil {
		writeStoreError(w, r, err, "Failed to look up daemon key")
		return
	}
	if key.Endpoint.NodeID != principal.NodeID {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	writeJSON(w, http.StatusOK, remoteKeyResponse{
		ServerUUID: key.Endpoint.ServerUUID,
		UserID:     key.UserID,
		ExpiresAt:  key.ExpiresAt,
	})
}
