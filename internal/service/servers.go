package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
)

// CreateServerInput holds the fields accepted when creating a server.
type CreateServerInput struct {
	Name    string `json:"name"`
	OwnerID int64  `json:"owner_id"`
	NodeID  int64  `json:"node_id"`
}

// ServerService manages servers and the daemon keys tied to them.
type ServerService struct {
	store   *config.Store
	revoker KeyRevoker
	logger  *slog.Logger
}

func NewServerService(store *config.Store, revoker KeyRevoker, logger *slog.Logger) *ServerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerService{store: store, revoker: revoker, logger: logger}
}

// Create registers a server owned by an existing user on an existing node.
func (s *ServerService) Create(ctx context.Context, in CreateServerInput) (*model.Server, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", config.ErrValidation)
	}
	if _, err := s.store.GetUser(ctx, in.OwnerID); err != nil {
		return nil, fmt.Errorf("owner %d: %w", in.OwnerID, err)
	}
	if _, err := s.store.GetNode(ctx, in.NodeID); err != nil {
		return nil, fmt.Errorf("node %d: %w", in.NodeID, err)
	}

	srv := &model.Server{
		UUID:    uuid.NewString(),
		Name:    in.Name,
		OwnerID: in.OwnerID,
		NodeID:  in.NodeID,
	}
	if err := s.store.CreateServer(ctx, srv); err != nil {
		return nil, err
	}
	s.logger.Info("server created", "server_id", srv.ID, "owner_id", srv.OwnerID, "node_id", srv.NodeID)
	return srv, nil
}

// Delete tells the server's daemon to drop every key issued for it, then
// removes the server. Subusers and key rows go with it.
func (s *ServerService) Delete(ctx context.Context, serverID int64) error {
	srv, err := s.store.GetServer(ctx, serverID)
	if err != nil {
		return err
	}
	revoked, err := s.revoker.RevokeServer(ctx, srv.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteServer(ctx, srv.ID); err != nil {
		return err
	}
	s.logger.Info("server deleted", "server_id", srv.ID, "keys_revoked", revoked)
	return nil
}
