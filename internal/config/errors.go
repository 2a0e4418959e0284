package config

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when the store rejects a row, for example because
// a required field is empty or a constraint is violated.
var ErrValidation = errors.New("validation failed")

// ErrConflict is returned when an insert collides with a uniqueness
// constraint. It wraps ErrValidation, so errors.Is matches both.
var ErrConflict = fmt.Errorf("%w: duplicate record", ErrValidation)
