package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
)

// CreateNodeInput holds the fields accepted when registering a node.
type CreateNodeInput struct {
	Name        string `json:"name"`
	DaemonURL   string `json:"daemon_url"`
	DaemonToken string `json:"daemon_token,omitempty"`
}

// NodeService registers the nodes whose daemons receive key notifications.
type NodeService struct {
	store  *config.Store
	logger *slog.Logger
}

func NewNodeService(store *config.Store, logger *slog.Logger) *NodeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeService{store: store, logger: logger}
}

// Create registers a node. A daemon token is generated when none is given;
// the caller must hand it to the daemon since it is never shown again.
func (s *NodeService) Create(ctx context.Context, in CreateNodeInput) (*model.Node, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", config.ErrValidation)
	}
	u, err := url.Parse(in.DaemonURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: daemon_url must be an http(s) URL", config.ErrValidation)
	}

	token := in.DaemonToken
	if token == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate daemon token: %w", err)
		}
		token = hex.EncodeToString(buf)
	}

	node := &model.Node{
		Name:        in.Name,
		DaemonURL:   strings.TrimRight(in.DaemonURL, "/"),
		DaemonToken: token,
	}
	if err := s.store.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	s.logger.Info("node created", "node_id", node.ID, "name", node.Name)
	return node, nil
}
