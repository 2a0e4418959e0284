package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
)

// KeyIssuer creates the first daemon key for a (server, user) pair.
type KeyIssuer interface {
	Issue(ctx context.Context, serverID, userID int64) (string, error)
}

// SubuserService grants and withdraws delegated server access.
type SubuserService struct {
	store   *config.Store
	issuer  KeyIssuer
	revoker KeyRevoker
	logger  *slog.Logger
}

func NewSubuserService(store *config.Store, issuer KeyIssuer, revoker KeyRevoker, logger *slog.Logger) *SubuserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubuserService{store: store, issuer: issuer, revoker: revoker, logger: logger}
}

// Add grants the account with the given email access to a server and issues
// its daemon key. The server owner cannot be added as a subuser.
func (s *SubuserService) Add(ctx context.Context, serverID int64, email string) (*model.Subuser, error) {
	srv, err := s.store.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", email, err)
	}
	if user.ID == srv.OwnerID {
		return nil, fmt.Errorf("%w: user %d owns server %d", config.ErrValidation, user.ID, srv.ID)
	}

	sub := &model.Subuser{UserID: user.ID, ServerID: srv.ID}
	if err := s.store.CreateSubuser(ctx, sub); err != nil {
		return nil, err
	}

	// A root admin may already hold a key for this server.
	if _, err := s.issuer.Issue(ctx, sub.ServerID, sub.UserID); err != nil && !errors.Is(err, config.ErrConflict) {
		if delErr := s.store.DeleteSubuser(ctx, sub.ID); delErr != nil {
			s.logger.Error("subuser cleanup failed", "subuser_id", sub.ID, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("subuser added", "subuser_id", sub.ID, "user_id", sub.UserID, "server_id", sub.ServerID)
	return sub, nil
}

// Remove withdraws a subuser grant and revokes the key it was using.
func (s *SubuserService) Remove(ctx context.Context, subuserID int64) error {
	sub, err := s.store.GetSubuser(ctx, subuserID)
	if err != nil {
		return err
	}
	if _, err := s.revoker.RevokePair(ctx, sub.UserID, sub.ServerID); err != nil {
		return err
	}
	if err := s.store.DeleteSubuser(ctx, sub.ID); err != nil {
		return err
	}
	s.logger.Info("subuser removed", "subuser_id", sub.ID, "user_id", sub.UserID, "server_id", sub.ServerID)
	return nil
}
