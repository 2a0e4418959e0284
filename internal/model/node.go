package model

import "time"

// Node is a machine running the server-management daemon. DaemonURL is the
// base address of the daemon API and DaemonToken the bearer credential the
// panel and the daemon use to authenticate each other.
type Node struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DaemonURL   string    `json:"daemon_url" db:"daemon_url"`
	DaemonToken string    `json:"-" db:"daemon_token"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
