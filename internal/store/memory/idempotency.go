package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/datascoop/datascoop/internal/shared"
)

// Idempotency is an in-process counterpart of shared.IdempotencyStore.
type Idempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewIdempotency returns an empty key set.
func NewIdempotency() *Idempotency {
	return &Idempotency{keys: make(map[string]string)}
}

// CheckAndInsert claims key or returns shared.ErrIdempotencyConflict.
func (i *Idempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	i.keys[key] = module
	return nil
}

// Delete releases key.
func (i *Idempotency) Delete(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.keys, key)
	return nil
}
