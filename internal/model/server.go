package model

import "time"

// Server is a game/application server instance hosted on a node.
type Server struct {
	ID        int64     `json:"id" db:"id"`
	UUID      string    `json:"uuid" db:"uuid"`
	Name      string    `json:"name" db:"name"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	NodeID    int64     `json:"node_id" db:"node_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Subuser grants a user delegated access to a server they do not own.
type Subuser struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ServerID  int64     `json:"server_id" db:"server_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
