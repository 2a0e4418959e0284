package config

import "fmt"

// migrations is the ordered panel schema. Column types are written as
// placeholders and expanded per dialect.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		uuid {{str}} NOT NULL UNIQUE,
		username {{str}} NOT NULL UNIQUE,
		email {{str}} NOT NULL UNIQUE,
		password_hash {{str}} NOT NULL,
		root_admin {{bool}} NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS nodes (
		id {{pk}},
		name {{str}} NOT NULL UNIQUE,
		daemon_url {{str}} NOT NULL,
		daemon_token {{str}} NOT NULL UNIQUE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS servers (
		id {{pk}},
		uuid {{str}} NOT NULL UNIQUE,
		name {{str}} NOT NULL,
		owner_id {{ref}} NOT NULL,
		node_id {{ref}} NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		FOREIGN KEY (owner_id) REFERENCES users(id),
		FOREIGN KEY (node_id) REFERENCES nodes(id)
	)`,

	`CREATE TABLE IF NOT EXISTS subusers (
		id {{pk}},
		user_id {{ref}} NOT NULL,
		server_id {{ref}} NOT NULL,
		created_at {{ts}} NOT NULL,
		UNIQUE (user_id, server_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
	)`,

	// One key per (user, server). The constraint is the only guard against
	// two requests issuing a first key concurrently.
	`CREATE TABLE IF NOT EXISTS daemon_keys (
		id {{pk}},
		user_id {{ref}} NOT NULL,
		server_id {{ref}} NOT NULL,
		secret {{str}} NOT NULL UNIQUE,
		expires_at {{ts}} NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (user_id, server_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		name {{str}} PRIMARY KEY,
		value {{str}} NOT NULL
	)`,
}

func (s *Store) migrate() error {
	for _, m := range migrations {
		stmt := s.dialect.expand(m)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
