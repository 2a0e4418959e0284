// Package daemonkey manages the short-lived credentials that authorize a
// panel user against the daemon hosting a server.
//
// Callers obtain keys only through Provider, which holds the single
// authorization check for issuance. Revoker removes keys when users lose
// access.
package daemonkey

import (
	"context"
	"time"

	"github.com/pterodactyl/panel/internal/model"
)

// KeyStore is the persistence contract for daemon keys. Implementations
// return config.ErrNotFound for missing rows and config.ErrConflict when a
// second key is created for the same (user, server) pair. No caching and no
// locking happen behind this interface.
type KeyStore interface {
	FindDaemonKey(ctx context.Context, userID, serverID int64) (*model.DaemonKey, error)
	FindDaemonKeyBySecret(ctx context.Context, secret string) (*model.DaemonKeyWithServer, error)
	ListKeysForRevocation(ctx context.Context, userID int64) ([]model.DaemonKeyWithServer, error)
	ListKeysForServer(ctx context.Context, serverID int64) ([]model.DaemonKeyWithServer, error)
	DeleteDaemonKeys(ctx context.Context, ids []int64) (int64, error)
	DeleteDaemonKeyForPair(ctx context.Context, userID, serverID int64) (*model.DaemonKeyWithServer, error)
	CreateDaemonKey(ctx context.Context, key *model.DaemonKey) error
	RotateDaemonKey(ctx context.Context, id int64, secret string, expiresAt time.Time) (*model.DaemonKey, string, error)
	DaemonEndpointForServer(ctx context.Context, serverID int64) (*model.DaemonEndpoint, error)
}

// SubuserFinder looks up the subuser grant for a (user, server) pair.
type SubuserFinder interface {
	FindSubuser(ctx context.Context, userID, serverID int64) (*model.Subuser, error)
}

// Notifier tells a daemon about credentials it should accept or drop.
// Calls are best-effort; the database stays authoritative.
type Notifier interface {
	NotifyKeyIssued(ctx context.Context, ep model.DaemonEndpoint, secret string, expiresAt time.Time) error
	NotifyKeyRevoked(ctx context.Context, ep model.DaemonEndpoint, secret string) error
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) NotifyKeyIssued(context.Context, model.DaemonEndpoint, string, time.Time) error {
	return nil
}

func (NopNotifier) NotifyKeyRevoked(context.Context, model.DaemonEndpoint, string) error {
	return nil
}
