package daemonkey

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
)

// KeyIssuer creates a key for a pair that has none.
type KeyIssuer interface {
	Issue(ctx context.Context, serverID, userID int64) (string, error)
}

// KeyRotator replaces the secret of an existing key.
type KeyRotator interface {
	Rotate(ctx context.Context, keyID int64) (string, error)
}

// Provider is the entry point for obtaining a usable daemon key. It decides
// whether the caller has any right to a key for the server, and whether to
// reuse, rotate or create one. Nothing else in the panel should call Issuer
// or Rotator directly.
type Provider struct {
	store    KeyStore
	subusers SubuserFinder
	issuer   KeyIssuer
	rotator  KeyRotator
	clock    Clock
	logger   *slog.Logger
}

// NewProvider creates a Provider. A nil clock uses the system time and a nil
// logger uses slog.Default.
func NewProvider(store KeyStore, subusers SubuserFinder, issuer KeyIssuer, rotator KeyRotator, clock Clock, logger *slog.Logger) *Provider {
	if clock == nil {
		clock = RealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:    store,
		subusers: subusers,
		issuer:   issuer,
		rotator:  rotator,
		clock:    clock,
		logger:   logger,
	}
}

// keyLookup is the outcome of looking up the key for a pair.
type keyLookup struct {
	key   *model.DaemonKey
	found bool
}

// Handle returns a usable secret for user on server.
//
// An existing key is returned as-is unless updateIfExpired is set and the key
// has expired, in which case it is rotated. Without a key, root admins and
// the server owner get a new one; other users need a subuser grant, and the
// key is then issued for the grant's own (server, user) pair. A user with no
// access path gets config.ErrNotFound.
func (p *Provider) Handle(ctx context.Context, server model.Server, user model.User, updateIfExpired bool) (string, error) {
	secret, err := p.handle(ctx, server, user, updateIfExpired)
	if errors.Is(err, config.ErrConflict) {
		// Another request created the pair's first key between our lookup
		// and insert. Its row is visible now.
		p.logger.Debug("daemon key create raced, retrying lookup",
			"user_id", user.ID,
			"server_id", server.ID,
		)
		return p.handle(ctx, server, user, updateIfExpired)
	}
	return secret, err
}

func (p *Provider) handle(ctx context.Context, server model.Server, user model.User, updateIfExpired bool) (string, error) {
	res, err := p.lookup(ctx, user.ID, server.ID)
	if err != nil {
		return "", err
	}

	if res.found {
		if !updateIfExpired || secondsUntil(p.clock.Now(), res.key.ExpiresAt) > 0 {
			return res.key.Secret, nil
		}
		return p.rotator.Rotate(ctx, res.key.ID)
	}

	if user.RootAdmin || user.ID == server.OwnerID {
		return p.issuer.Issue(ctx, server.ID, user.ID)
	}

	sub, err := p.subusers.FindSubuser(ctx, user.ID, server.ID)
	if err != nil {
		return "", err
	}
	return p.issuer.Issue(ctx, sub.ServerID, sub.UserID)
}

func (p *Provider) lookup(ctx context.Context, userID, serverID int64) (keyLookup, error) {
	key, err := p.store.FindDaemonKey(ctx, userID, serverID)
	switch {
	case err == nil:
		return keyLookup{key: key, found: true}, nil
	case errors.Is(err, config.ErrNotFound):
		return keyLookup{}, nil
	default:
		return keyLookup{}, err
	}
}

// secondsUntil returns the signed number of whole seconds from now until t,
// truncated toward zero. Zero or less means t has been reached, so a key with
// only a sub-second remainder (999ms, say) is treated as expired and rotated.
func secondsUntil(now, t time.Time) int64 {
	return int64(t.Sub(now) / time.Second)
}
