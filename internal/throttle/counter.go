// Package throttle counts login attempts per phone digest inside a fixed
// window and escalates to an address ban when the threshold is exceeded.
package throttle

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dialkey/dialkey/internal/ban"
	"github.com/dialkey/dialkey/internal/kv"
)

const keyPrefix = "attempt:"

// ErrBanned is returned when the attempt threshold is exceeded and for
// requests from already-banned addresses.
var ErrBanned = errors.New("throttle: number banned")

// Counter tracks login attempts per phone digest. The window is fixed, not
// sliding; under-counting near window boundaries and between concurrent
// requests is an accepted throttling approximation, not a security boundary.
type Counter struct {
	store  kv.Store
	bans   *ban.Registry
	window time.Duration
	max    int
	logger *slog.Logger
}

// NewCounter builds a Counter. max is the number of attempts allowed within
// one window; the attempt after that triggers a ban of the caller's address.
func NewCounter(store kv.Store, bans *ban.Registry, window time.Duration, max int, logger *slog.Logger) *Counter {
	return &Counter{store: store, bans: bans, window: window, max: max, logger: logger}
}

// RecordAttempt increments the attempt count for the phone digest and returns
// the new count. When the incremented count exceeds the threshold the
// originating address is banned and ErrBanned is returned; the overflow count
// itself is not persisted since the window no longer matters once banned.
//
// A store read failure is treated as count zero: availability is preferred
// over strict accounting here.
func (c *Counter) RecordAttempt(ctx context.Context, hashedPhone, addr string) (int, error) {
	count := 0
	data, err := c.store.Get(ctx, keyPrefix+hashedPhone)
	if err == nil {
		if n, convErr := strconv.Atoi(string(data)); convErr == nil {
			count = n
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		c.logger.Warn("attempt counter read failed, treating as zero", "phone", hashedPhone, "error", err)
	}

	count++
	if count > c.max {
		// The ban write is fire-and-forget relative to rejecting the request.
		if err := c.bans.Ban(ctx, addr); err != nil {
			c.logger.Error("ban write failed", "addr", addr, "error", err)
		}
		return count, ErrBanned
	}

	if err := c.store.Put(ctx, keyPrefix+hashedPhone, []byte(strconv.Itoa(count)), c.window); err != nil {
		return 0, err
	}
	return count, nil
}
