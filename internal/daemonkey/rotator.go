package daemonkey

import (
	"context"
	"fmt"
)

// Rotator replaces the secret and expiry of an existing key while keeping
// its row and its (user, server) binding.
type Rotator struct {
	store    KeyStore
	dispatch dispatcher
	opts     Options
}

// NewRotator creates a Rotator.
func NewRotator(store KeyStore, notifier Notifier, opts Options) *Rotator {
	opts = opts.withDefaults()
	return &Rotator{
		store:    store,
		dispatch: newDispatcher(notifier, opts.Logger),
		opts:     opts,
	}
}

// Rotate swaps in a fresh secret for the key and returns it. The previous
// secret stops being current as soon as the update commits. Returns
// config.ErrNotFound if the key was deleted in the meantime.
func (r *Rotator) Rotate(ctx context.Context, keyID int64) (string, error) {
	secret, err := r.opts.NewSecret()
	if err != nil {
		return "", err
	}

	key, previous, err := r.store.RotateDaemonKey(ctx, keyID, secret, r.opts.Clock.Now().Add(r.opts.TTL))
	if err != nil {
		return "", fmt.Errorf("rotate daemon key %d: %w", keyID, err)
	}

	r.opts.Logger.Debug("daemon key rotated", "key_id", key.ID, "user_id", key.UserID, "server_id", key.ServerID)

	ep, err := r.store.DaemonEndpointForServer(ctx, key.ServerID)
	if err != nil {
		r.opts.Logger.Warn("daemon endpoint lookup failed; daemon not notified",
			"key_id", key.ID,
			"server_id", key.ServerID,
			"error", err,
		)
		return key.Secret, nil
	}
	r.dispatch.revoked(ctx, *ep, key.ID, previous)
	r.dispatch.issued(ctx, *ep, *key)
	return key.Secret, nil
}
