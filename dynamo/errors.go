package dynamo

import "errors"

var (
	// ErrNotFound is returned when a key doesn't exist or is tombstoned.
	ErrNotFound = errors.New("devicekv: entry not found")

	// ErrEmptyKey is returned when writing or deleting an empty key.
	ErrEmptyKey = errors.New("devicekv: empty key")

	// ErrReservedStoreName is returned when a store name is empty or uses the
	// sync partition prefix.
	ErrReservedStoreName = errors.New("devicekv: reserved store name")
)
