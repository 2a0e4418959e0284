package daemonkey

import (
	"context"
	"fmt"

	"github.com/pterodactyl/panel/internal/model"
)

// Issuer creates the first key for a (server, user) pair.
type Issuer struct {
	store    KeyStore
	dispatch dispatcher
	opts     Options
}

// NewIssuer creates an Issuer.
func NewIssuer(store KeyStore, notifier Notifier, opts Options) *Issuer {
	opts = opts.withDefaults()
	return &Issuer{
		store:    store,
		dispatch: newDispatcher(notifier, opts.Logger),
		opts:     opts,
	}
}

// Issue generates, persists and announces a new key for the pair, returning
// its secret. If a key for the pair already exists the store rejects the row
// with config.ErrConflict; callers recover by going back through Provider.
func (i *Issuer) Issue(ctx context.Context, serverID, userID int64) (string, error) {
	secret, err := i.opts.NewSecret()
	if err != nil {
		return "", err
	}

	key := &model.DaemonKey{
		UserID:    userID,
		ServerID:  serverID,
		Secret:    secret,
		ExpiresAt: i.opts.Clock.Now().Add(i.opts.TTL),
	}
	if err := i.store.CreateDaemonKey(ctx, key); err != nil {
		return "", fmt.Errorf("issue daemon key: %w", err)
	}

	i.opts.Logger.Debug("daemon key issued", "key_id", key.ID, "user_id", userID, "server_id", serverID)
	i.dispatch.issuedFor(ctx, i.store, *key)
	return key.Secret, nil
}
