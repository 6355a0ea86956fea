package shared

import "errors"

var (
	// ErrNotFound indicates an unknown location, flavor, container or entry key.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName indicates a catalog name collision.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInvalidArgument indicates an out-of-range quantity, unknown size or malformed date.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientInventory indicates a sale would drive the ledger negative.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrIdempotencyConflict indicates a duplicate request key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
)
