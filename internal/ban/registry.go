// Package ban records banned originating addresses. Presence of a key is the
// ban; entries carry no payload and no expiry — clearing a ban is an operator
// action against the store.
package ban

import (
	"context"
	"errors"
	"fmt"

	"github.com/dialkey/dialkey/internal/kv"
)

const keyPrefix = "ban:"

// Registry tracks banned addresses in the shared store.
type Registry struct {
	store kv.Store
}

// NewRegistry builds a Registry over the given store.
func NewRegistry(store kv.Store) *Registry {
	return &Registry{store: store}
}

// IsBanned reports whether the address has an active ban.
func (r *Registry) IsBanned(ctx context.Context, addr string) (bool, error) {
	_, err := r.store.Get(ctx, keyPrefix+addr)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ban lookup %s: %w", addr, err)
	}
	return true, nil
}

// Ban records a permanent ban for the address.
func (r *Registry) Ban(ctx context.Context, addr string) error {
	if err := r.store.Put(ctx, keyPrefix+addr, []byte("1"), 0); err != nil {
		return fmt.Errorf("ban write %s: %w", addr, err)
	}
	return nil
}
