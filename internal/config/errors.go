package config

import "errors"

// ErrNotFound is returned when a requested admin or audit resource does not
// exist in the store. API key lookups report model.ErrKeyNotFound instead,
// which carries the original system's out-of-bounds shape.
var ErrNotFound = errors.New("not found")
