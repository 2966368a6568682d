// Package kv provides the expiring key-value store backing login throttling,
// bans, and pending PIN challenges. Absent keys are reported as ErrNotFound so
// callers can branch on "expected miss" without swallowing transport faults.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the key does not exist or has expired. Any other error
// returned by a Store is a transport or backend fault.
var ErrNotFound = errors.New("kv: key not found")

// Store is an expiring key-value store. A zero ttl on Put means the entry
// never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
