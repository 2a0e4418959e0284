package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pterodactyl/panel/internal/model"
)

// Store manages the panel's persistent state: users, nodes, servers,
// subusers and daemon keys. SQLite is the default backend; PostgreSQL and
// MySQL are available through Open.
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// NewStore creates a SQLite-backed store in dataDir. Pass empty string for
// in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "panel.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return Open(DriverSQLite, dsn)
}

// Open connects to the panel database using driver (sqlite, postgres or
// mysql) and applies the schema.
func Open(driver, dsn string) (*Store, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	dsn, err = d.normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open panel database: %w", err)
	}

	if d.name == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

		// Enable foreign keys (off by default in SQLite).
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate panel database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the configured database driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// insert runs a named INSERT and returns the generated primary key.
func (s *Store) insert(ctx context.Context, op, q string, arg interface{}) (int64, error) {
	if s.dialect.returnsID {
		query, args, err := sqlx.Named(q+" RETURNING id", arg)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		var id int64
		if err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), args...).Scan(&id); err != nil {
			return 0, classifyWriteError(op, err)
		}
		return id, nil
	}

	result, err := s.db.NamedExecContext(ctx, q, arg)
	if err != nil {
		return 0, classifyWriteError(op, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: get id: %w", op, err)
	}
	return id, nil
}

// get scans a single row into dest, translating sql.ErrNoRows to ErrNotFound.
func (s *Store) get(ctx context.Context, op string, dest interface{}, q string, args ...interface{}) error {
	if err := s.db.GetContext(ctx, dest, s.db.Rebind(q), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// execOne runs a write that must affect at least one row.
func (s *Store) execOne(ctx context.Context, op, q string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return classifyWriteError(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser inserts a new user. The password hash and UUID must already be
// set. ID, CreatedAt and UpdatedAt are populated after insert.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.UUID == "" || user.Username == "" || user.Email == "" || user.PasswordHash == "" {
		return fmt.Errorf("insert user: %w: uuid, username, email and password are required", ErrValidation)
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const q = `INSERT INTO users
		(uuid, username, email, password_hash, root_admin, created_at, updated_at)
		VALUES
		(:uuid, :username, :email, :password_hash, :root_admin, :created_at, :updated_at)`

	id, err := s.insert(ctx, "insert user", q, user)
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := s.get(ctx, "get user", &user, "SELECT * FROM users WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.get(ctx, "get user by email", &user, "SELECT * FROM users WHERE email = ?", email); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, "SELECT * FROM users ORDER BY username"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes a user by ID. Subuser grants and daemon keys are cascade
// deleted; servers owned by the user block the delete.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete user", "DELETE FROM users WHERE id = ?", id)
}

// CountServersOwnedBy returns how many servers the user owns.
func (s *Store) CountServersOwnedBy(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM servers WHERE owner_id = ?"), userID); err != nil {
		return 0, fmt.Errorf("count owned servers: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

// CreateNode inserts a new daemon node.
func (s *Store) CreateNode(ctx context.Context, node *model.Node) error {
	if node.Name == "" || node.DaemonURL == "" || node.DaemonToken == "" {
		return fmt.Errorf("insert node: %w: name, daemon_url and daemon_token are required", ErrValidation)
	}
	now := time.Now().UTC()
	node.CreatedAt = now
	node.UpdatedAt = now

	const q = `INSERT INTO nodes (name, daemon_url, daemon_token, created_at, updated_at)
		VALUES (:name, :daemon_url, :daemon_token, :created_at, :updated_at)`

	id, err := s.insert(ctx, "insert node", q, node)
	if err != nil {
		return err
	}
	node.ID = id
	return nil
}

// GetNode returns a node by ID.
func (s *Store) GetNode(ctx context.Context, id int64) (*model.Node, error) {
	var node model.Node
	if err := s.get(ctx, "get node", &node, "SELECT * FROM nodes WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &node, nil
}

// GetNodeByToken returns the node presenting the given daemon token.
func (s *Store) GetNodeByToken(ctx context.Context, token string) (*model.Node, error) {
	var node model.Node
	if err := s.get(ctx, "get node by token", &node, "SELECT * FROM nodes WHERE daemon_token = ?", token); err != nil {
		return nil, err
	}
	return &node, nil
}

// ListNodes returns all nodes ordered by name.
func (s *Store) ListNodes(ctx context.Context) ([]model.Node, error) {
	var nodes []model.Node
	if err := s.db.SelectContext(ctx, &nodes, "SELECT * FROM nodes ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

// ---------------------------------------------------------------------------
// Servers
// ---------------------------------------------------------------------------

// CreateServer inserts a new server. Owner and node must exist.
func (s *Store) CreateServer(ctx context.Context, srv *model.Server) error {
	if srv.UUID == "" || srv.Name == "" {
		return fmt.Errorf("insert server: %w: uuid and name are required", ErrValidation)
	}
	now := time.Now().UTC()
	srv.CreatedAt = now
	srv.UpdatedAt = now

	const q = `INSERT INTO servers (uuid, name, owner_id, node_id, created_at, updated_at)
		VALUES (:uuid, :name, :owner_id, :node_id, :created_at, :updated_at)`

	id, err := s.insert(ctx, "insert server", q, srv)
	if err != nil {
		return err
	}
	srv.ID = id
	return nil
}

// GetServer returns a server by ID.
func (s *Store) GetServer(ctx context.Context, id int64) (*model.Server, error) {
	var srv model.Server
	if err := s.get(ctx, "get server", &srv, "SELECT * FROM servers WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &srv, nil
}

// ListServers returns all servers ordered by name.
func (s *Store) ListServers(ctx context.Context) ([]model.Server, error) {
	var servers []model.Server
	if err := s.db.SelectContext(ctx, &servers, "SELECT * FROM servers ORDER BY name, id"); err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	return servers, nil
}

// DeleteServer removes a server by ID. Its subusers and daemon keys are
// cascade deleted by the foreign key constraints.
func (s *Store) DeleteServer(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete server", "DELETE FROM servers WHERE id = ?", id)
}

// ---------------------------------------------------------------------------
// Subusers
// ---------------------------------------------------------------------------

// CreateSubuser grants a user access to a server.
func (s *Store) CreateSubuser(ctx context.Context, sub *model.Subuser) error {
	sub.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO subusers (user_id, server_id, created_at)
		VALUES (:user_id, :server_id, :created_at)`

	id, err := s.insert(ctx, "insert subuser", q, sub)
	if err != nil {
		return err
	}
	sub.ID = id
	return nil
}

// GetSubuser returns a subuser grant by ID.
func (s *Store) GetSubuser(ctx context.Context, id int64) (*model.Subuser, error) {
	var sub model.Subuser
	if err := s.get(ctx, "get subuser", &sub, "SELECT * FROM subusers WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindSubuser returns the grant for a (user, server) pair.
func (s *Store) FindSubuser(ctx context.Context, userID, serverID int64) (*model.Subuser, error) {
	var sub model.Subuser
	err := s.get(ctx, "find subuser", &sub,
		"SELECT * FROM subusers WHERE user_id = ? AND server_id = ?", userID, serverID)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubusers returns all grants on a server.
func (s *Store) ListSubusers(ctx context.Context, serverID int64) ([]model.Subuser, error) {
	var subs []model.Subuser
	err := s.db.SelectContext(ctx, &subs,
		s.db.Rebind("SELECT * FROM subusers WHERE server_id = ? ORDER BY id"), serverID)
	if err != nil {
		return nil, fmt.Errorf("list subusers: %w", err)
	}
	return subs, nil
}

// DeleteSubuser removes a subuser grant by ID.
func (s *Store) DeleteSubuser(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete subuser", "DELETE FROM subusers WHERE id = ?", id)
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns a stored setting value.
func (s *Store) GetSetting(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.get(ctx, "get setting", &value, "SELECT value FROM settings WHERE name = ?", name); err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting inserts or replaces a setting value.
func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	q := `INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`
	if s.dialect.name == DriverMySQL {
		q = `INSERT INTO settings (name, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), name, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}
