package repository

import "errors"

// ErrDuplicateKey is returned when an insert or update violates a unique
// constraint.
var ErrDuplicateKey = errors.New("duplicate key")
