package model

import "time"

// InternalKeyPrefix marks secrets minted for daemon access so they can never
// be confused with account API keys.
const InternalKeyPrefix = "i_"

// DaemonKey is a short-lived bearer credential authorizing one user against
// the daemon hosting one server. There is at most one key per (user, server).
type DaemonKey struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ServerID  int64     `json:"server_id" db:"server_id"`
	Secret    string    `json:"-" db:"secret"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DaemonEndpoint carries the server and node fields needed to reach the
// daemon responsible for a server.
type DaemonEndpoint struct {
	ServerID   int64  `json:"server_id" db:"server_id"`
	ServerUUID string `json:"server_uuid" db:"server_uuid"`
	NodeID     int64  `json:"node_id" db:"node_id"`
	URL        string `json:"-" db:"daemon_url"`
	Token      string `json:"-" db:"daemon_token"`
}

// DaemonKeyWithServer is a key joined with the endpoint of its server.
type DaemonKeyWithServer struct {
	DaemonKey
	Endpoint DaemonEndpoint `json:"server"`
}
