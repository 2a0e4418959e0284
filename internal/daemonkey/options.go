package daemonkey

import (
	"context"
	"log/slog"
	"time"

	"github.com/pterodactyl/panel/internal/model"
)

// DefaultTTL is how long a freshly issued or rotated key stays current.
const DefaultTTL = 720 * time.Minute

// Options configures the issuance components. Zero values fall back to
// DefaultTTL, the system clock, GenerateSecret and slog.Default.
type Options struct {
	TTL       time.Duration
	Clock     Clock
	NewSecret func() (string, error)
	Logger    *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	if o.NewSecret == nil {
		o.NewSecret = GenerateSecret
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// dispatcher sends daemon notifications after the database write has
// committed. Failures are logged and never returned: a daemon that is briefly
// unreachable must not block a user from getting a key.
type dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
}

func newDispatcher(n Notifier, logger *slog.Logger) dispatcher {
	if n == nil {
		n = NopNotifier{}
	}
	return dispatcher{notifier: n, logger: logger}
}

func (d dispatcher) issued(ctx context.Context, ep model.DaemonEndpoint, key model.DaemonKey) {
	if err := d.notifier.NotifyKeyIssued(ctx, ep, key.Secret, key.ExpiresAt); err != nil {
		d.logger.Warn("daemon key issue notification failed",
			"key_id", key.ID,
			"server_id", ep.ServerID,
			"node_id", ep.NodeID,
			"error", err,
		)
	}
}

func (d dispatcher) revoked(ctx context.Context, ep model.DaemonEndpoint, keyID int64, secret string) {
	if err := d.notifier.NotifyKeyRevoked(ctx, ep, secret); err != nil {
		d.logger.Warn("daemon key revoke notification failed",
			"key_id", keyID,
			"server_id", ep.ServerID,
			"node_id", ep.NodeID,
			"error", err,
		)
	}
}

// issuedFor looks up the endpoint of the key's server and dispatches an issue
// notification.
func (d dispatcher) issuedFor(ctx context.Context, store KeyStore, key model.DaemonKey) {
	ep, err := store.DaemonEndpointForServer(ctx, key.ServerID)
	if err != nil {
		d.logger.Warn("daemon endpoint lookup failed; daemon not notified",
			"key_id", key.ID,
			"server_id", key.ServerID,
			"error", err,
		)
		return
	}
	d.issued(ctx, *ep, key)
}
