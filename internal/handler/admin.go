package handler

import (
	"net/http"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
	"github.com/pterodactyl/panel/internal/service"
)

// AdminHandler exposes user, node, server and subuser management to root
// admins.
type AdminHandler struct {
	store    *config.Store
	users    *service.UserService
	nodes    *service.NodeService
	servers  *service.ServerService
	subusers *service.SubuserService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(store *config.Store, users *service.UserService, nodes *service.NodeService, servers *service.ServerService, subusers *service.SubuserService) *AdminHandler {
	return &AdminHandler{
		store:    store,
		users:    users,
		nodes:    nodes,
		servers:  servers,
		subusers: subusers,
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// ListUsers returns every panel account.
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, r, err, "Failed to list users")
		return
	}
	writeList(w, users)
}

// CreateUser creates a panel account.
// POST /api/v1/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// DeleteUser revokes a user's daemon keys and deletes the account.
// DELETE /api/v1/admin/users/{userID}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if err := h.users.Delete(r.Context(), userID); err != nil {
		writeStoreError(w, r, err, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

// ListNodes returns every registered node.
// GET /api/v1/admin/nodes
func (h *AdminHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.store.ListNodes(r.Context())
	if err != nil {
		writeStoreError(w, r, err, "Failed to list nodes")
		return
	}
	writeList(w, nodes)
}

// createNodeResponse shows the daemon token once, at creation.
type createNodeResponse struct {
	*model.Node
	DaemonToken string `json:"daemon_token"`
}

// CreateNode registers a node.
// POST /api/v1/admin/nodes
func (h *AdminHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var in service.CreateNodeInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	node, err := h.nodes.Create(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err, "Failed to create node")
		return
	}
	writeJSON(w, http.StatusCreated, createNodeResponse{Node: node, DaemonToken: node.DaemonToken})
}

// ---------------------------------------------------------------------------
// Servers
// ---------------------------------------------------------------------------

// ListServers returns every server.
// GET /api/v1/admin/servers
func (h *AdminHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.ListServers(r.Context())
	if err != nil {
		writeStoreError(w, r, err, "Failed to list servers")
		return
	}
	writeList(w, servers)
}

// CreateServer creates a server.
// POST /api/v1/admin/servers
func (h *AdminHandler) CreateServer(w http.ResponseWriter, r *http.Request) {
	var in service.CreateServerInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	srv, err := h.servers.Create(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err, "Failed to create server")
		return
	}
	writeJSON(w, http.StatusCreated, srv)
}

// DeleteServer revokes every key on a server and deletes it.
// DELETE /api/v1/admin/servers/{serverID}
func (h *AdminHandler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	serverID, ok := pathID(r, "serverID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}
	if err := h.servers.Delete(r.Context(), serverID); err != nil {
		writeStoreError(w, r, err, "Failed to delete server")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Subusers
// ---------------------------------------------------------------------------

type addSubuserRequest struct {
	Email string `json:"email"`
}

// ListSubusers returns the subuser grants on a server.
// GET /api/v1/admin/servers/{serverID}/subusers
func (h *AdminHandler) ListSubusers(w http.ResponseWriter, r *http.Request) {
	serverID, ok := pathID(r, "serverID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}
	if _, err := h.store.GetServer(r.Context(), serverID); err != nil {
		writeStoreError(w, r, err, "Failed to load server")
		return
	}
	subs, err := h.store.ListSubusers(r.Context(), serverID)
	if err != nil {
		writeStoreError(w, r, err, "Failed to list subusers")
		return
	}
	writeList(w, subs)
}

// AddSubuser grants a user access to a server and issues their daemon key.
// POST /api/v1/admin/servers/{serverID}/subusers
func (h *AdminHandler) AddSubuser(w http.ResponseWriter, r *http.Request) {
	serverID, ok := pathID(r, "serverID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}
	var req addSubuserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	sub, err := h.subusers.Add(r.Context(), serverID, req.Email)
	if err != nil {
		writeStoreError(w, r, err, "Failed to add subuser")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// RemoveSubuser withdraws a grant and revokes its daemon key.
// DELETE /api/v1/admin/subusers/{subuserID}
func (h *AdminHandler) RemoveSubuser(w http.ResponseWriter, r *http.Request) {
	subuserID, ok := pathID(r, "subuserID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid subuser ID")
		return
	}
	if err := h.subusers.Remove(r.Context(), subuserID); err != nil {
		writeStoreError(w, r, err, "Failed to remove subuser")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
