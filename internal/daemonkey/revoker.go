package daemonkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
)

// Revoker removes daemon keys when users lose access, telling each affected
// daemon to drop the credential before the rows are deleted.
type Revoker struct {
	store    KeyStore
	dispatch dispatcher
	logger   *slog.Logger
}

// NewRevoker creates a Revoker. A nil logger uses slog.Default.
func NewRevoker(store KeyStore, notifier Notifier, logger *slog.Logger) *Revoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Revoker{
		store:    store,
		dispatch: newDispatcher(notifier, logger),
		logger:   logger,
	}
}

// RevokeAll deletes every key belonging to the user across all servers and
// returns how many were removed. Calling it again returns 0.
func (r *Revoker) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	keys, err := r.store.ListKeysForRevocation(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke daemon keys for user %d: %w", userID, err)
	}
	n, err := r.revoke(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("revoke daemon keys for user %d: %w", userID, err)
	}
	if n > 0 {
		r.logger.Info("daemon keys revoked", "user_id", userID, "count", n)
	}
	return n, nil
}

// RevokeServer deletes every key issued against a server.
func (r *Revoker) RevokeServer(ctx context.Context, serverID int64) (int64, error) {
	keys, err := r.store.ListKeysForServer(ctx, serverID)
	if err != nil {
		return 0, fmt.Errorf("revoke daemon keys for server %d: %w", serverID, err)
	}
	n, err := r.revoke(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("revoke daemon keys for server %d: %w", serverID, err)
	}
	if n > 0 {
		r.logger.Info("daemon keys revoked", "server_id", serverID, "count", n)
	}
	return n, nil
}

// RevokePair deletes the key of a single (user, server) pair. It reports
// false when the pair had no key.
func (r *Revoker) RevokePair(ctx context.Context, userID, serverID int64) (bool, error) {
	key, err := r.store.DeleteDaemonKeyForPair(ctx, userID, serverID)
	if errors.Is(err, config.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revoke daemon key for user %d on server %d: %w", userID, serverID, err)
	}
	r.dispatch.revoked(ctx, key.Endpoint, key.ID, key.Secret)
	return true, nil
}

func (r *Revoker) revoke(ctx context.Context, keys []model.DaemonKeyWithServer) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(keys))
	for i, k := range keys {
		r.dispatch.revoked(ctx, k.Endpoint, k.ID, k.Secret)
		ids[i] = k.ID
	}
	return r.store.DeleteDaemonKeys(ctx, ids)
}
