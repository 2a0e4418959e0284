package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pterodactyl/panel/internal/model"
)

// daemonKeyServerRow is a flat row for a daemon key joined with the server
// and node columns needed to reach its daemon.
type daemonKeyServerRow struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	ServerID    int64     `db:"server_id"`
	Secret      string    `db:"secret"`
	ExpiresAt   time.Time `db:"expires_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ServerUUID  string    `db:"server_uuid"`
	NodeID      int64     `db:"node_id"`
	DaemonURL   string    `db:"daemon_url"`
	DaemonToken string    `db:"daemon_token"`
}

func (r daemonKeyServerRow) toModel() model.DaemonKeyWithServer {
	return model.DaemonKeyWithServer{
		DaemonKey: model.DaemonKey{
			ID:        r.ID,
			UserID:    r.UserID,
			ServerID:  r.ServerID,
			Secret:    r.Secret,
			ExpiresAt: r.ExpiresAt,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		Endpoint: model.DaemonEndpoint{
			ServerID:   r.ServerID,
			ServerUUID: r.ServerUUID,
			NodeID:     r.NodeID,
			URL:        r.DaemonURL,
			Token:      r.DaemonToken,
		},
	}
}

const selectDaemonKeyWithServer = `SELECT
		k.id, k.user_id, k.server_id, k.secret, k.expires_at, k.created_at, k.updated_at,
		s.uuid AS server_uuid, s.node_id, n.daemon_url, n.daemon_token
	FROM daemon_keys k
	JOIN servers s ON s.id = k.server_id
	JOIN nodes n ON n.id = s.node_id`

// CreateDaemonKey inserts a new daemon key. A second key for the same
// (user, server) pair fails with ErrConflict.
func (s *Store) CreateDaemonKey(ctx context.Context, key *model.DaemonKey) error {
	if key.Secret == "" || key.UserID == 0 || key.ServerID == 0 || key.ExpiresAt.IsZero() {
		return fmt.Errorf("insert daemon key: %w: user, server, secret and expiry are required", ErrValidation)
	}
	now := time.Now().UTC()
	key.CreatedAt = now
	key.UpdatedAt = now
	key.ExpiresAt = key.ExpiresAt.UTC()

	const q = `INSERT INTO daemon_keys
		(user_id, server_id, secret, expires_at, created_at, updated_at)
		VALUES
		(:user_id, :server_id, :secret, :expires_at, :created_at, :updated_at)`

	id, err := s.insert(ctx, "insert daemon key", q, key)
	if err != nil {
		return err
	}
	key.ID = id
	return nil
}

// GetDaemonKey returns a daemon key by ID.
func (s *Store) GetDaemonKey(ctx context.Context, id int64) (*model.DaemonKey, error) {
	var key model.DaemonKey
	if err := s.get(ctx, "get daemon key", &key, "SELECT * FROM daemon_keys WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &key, nil
}

// FindDaemonKey returns the key for a (user, server) pair.
func (s *Store) FindDaemonKey(ctx context.Context, userID, serverID int64) (*model.DaemonKey, error) {
	var key model.DaemonKey
	err := s.get(ctx, "find daemon key", &key,
		"SELECT * FROM daemon_keys WHERE user_id = ? AND server_id = ?", userID, serverID)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// FindDaemonKeyBySecret returns the key holding secret together with the
// endpoint of its server. Used when a daemon asks the panel to authorize a
// bearer credential.
func (s *Store) FindDaemonKeyBySecret(ctx context.Context, secret string) (*model.DaemonKeyWithServer, error) {
	var row daemonKeyServerRow
	if err := s.get(ctx, "find daemon key by secret", &row, selectDaemonKeyWithServer+" WHERE k.secret = ?", secret); err != nil {
		return nil, err
	}
	key := row.toModel()
	return &key, nil
}

// ListKeysForRevocation returns every key belonging to a user, each carrying
// the endpoint of the daemon that must be told to drop it.
func (s *Store) ListKeysForRevocation(ctx context.Context, userID int64) ([]model.DaemonKeyWithServer, error) {
	return s.listKeysWithServer(ctx, "list keys for revocation", " WHERE k.user_id = ? ORDER BY k.id", userID)
}

// ListKeysForServer returns every key issued against a server.
func (s *Store) ListKeysForServer(ctx context.Context, serverID int64) ([]model.DaemonKeyWithServer, error) {
	return s.listKeysWithServer(ctx, "list keys for server", " WHERE k.server_id = ? ORDER BY k.id", serverID)
}

func (s *Store) listKeysWithServer(ctx context.Context, op, where string, arg interface{}) ([]model.DaemonKeyWithServer, error) {
	var rows []daemonKeyServerRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(selectDaemonKeyWithServer+where), arg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	keys := make([]model.DaemonKeyWithServer, len(rows))
	for i, r := range rows {
		keys[i] = r.toModel()
	}
	return keys, nil
}

// RotateDaemonKey replaces the secret and expiry of an existing key in place.
// The read and the write share one transaction so a concurrent reader never
// sees a half-updated row. It returns the updated key and the secret it
// replaced.
func (s *Store) RotateDaemonKey(ctx context.Context, id int64, secret string, expiresAt time.Time) (*model.DaemonKey, string, error) {
	if secret == "" || expiresAt.IsZero() {
		return nil, "", fmt.Errorf("rotate daemon key: %w: secret and expiry are required", ErrValidation)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin rotate daemon key: %w", err)
	}
	defer tx.Rollback()

	var key model.DaemonKey
	if err := tx.GetContext(ctx, &key, tx.Rebind("SELECT * FROM daemon_keys WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("rotate daemon key: %w", err)
	}
	previous := key.Secret

	key.Secret = secret
	key.ExpiresAt = expiresAt.UTC()
	key.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		tx.Rebind("UPDATE daemon_keys SET secret = ?, expires_at = ?, updated_at = ? WHERE id = ?"),
		key.Secret, key.ExpiresAt, key.UpdatedAt, key.ID)
	if err != nil {
		return nil, "", classifyWriteError("rotate daemon key", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit rotate daemon key: %w", err)
	}
	return &key, previous, nil
}

// DeleteDaemonKeys removes the keys with the given IDs and returns how many
// rows were deleted.
func (s *Store) DeleteDaemonKeys(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM daemon_keys WHERE id IN (?)", ids)
	if err != nil {
		return 0, fmt.Errorf("delete daemon keys: %w", err)
	}
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete daemon keys: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete daemon keys rows affected: %w", err)
	}
	return n, nil
}

// DeleteDaemonKeyForPair removes the key of a (user, server) pair and
// returns it with its endpoint so the caller can notify the daemon.
func (s *Store) DeleteDaemonKeyForPair(ctx context.Context, userID, serverID int64) (*model.DaemonKeyWithServer, error) {
	var row daemonKeyServerRow
	err := s.get(ctx, "find daemon key for pair", &row,
		selectDaemonKeyWithServer+" WHERE k.user_id = ? AND k.server_id = ?", userID, serverID)
	if err != nil {
		return nil, err
	}
	if err := s.execOne(ctx, "delete daemon key", "DELETE FROM daemon_keys WHERE id = ?", row.ID); err != nil {
		return nil, err
	}
	key := row.toModel()
	return &key, nil
}

// DaemonEndpointForServer returns the daemon endpoint responsible for a
// server.
func (s *Store) DaemonEndpointForServer(ctx context.Context, serverID int64) (*model.DaemonEndpoint, error) {
	var ep model.DaemonEndpoint
	const q = `SELECT s.id AS server_id, s.uuid AS server_uuid, s.node_id, n.daemon_url, n.daemon_token
		FROM servers s
		JOIN nodes n ON n.id = s.node_id
		WHERE s.id = ?`
	if err := s.get(ctx, "get daemon endpoint", &ep, q, serverID); err != nil {
		return nil, err
	}
	return &ep, nil
}
