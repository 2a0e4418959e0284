package model

import "time"

// User is a panel account. Root administrators may obtain daemon keys for
// any server; everyone else needs ownership or a subuser grant.
type User struct {
	ID           int64     `json:"id" db:"id"`
	UUID         string    `json:"uuid" db:"uuid"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // bcrypt hash, never expose
	RootAdmin    bool      `json:"root_admin" db:"root_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
