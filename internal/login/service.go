// Package login sequences the authentication flow: ban gate, attempt
// throttling and PIN issue on the way in; PIN verification and identity
// resolution on the way back. Each step's success gates the next.
package login

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dialkey/dialkey/internal/ban"
	"github.com/dialkey/dialkey/internal/config"
	"github.com/dialkey/dialkey/internal/identity"
	"github.com/dialkey/dialkey/internal/phone"
	"github.com/dialkey/dialkey/internal/pin"
	"github.com/dialkey/dialkey/internal/throttle"
)

// ErrMissingAddress reports a request without an originating address outside
// the test environment. Rejected before any state mutation.
var ErrMissingAddress = errors.New("login: remote address required")

// Service orchestrates the two halves of a phone login.
type Service struct {
	cfg      config.Config
	hasher   *phone.Hasher
	bans     *ban.Registry
	attempts *throttle.Counter
	pins     *pin.Service
	ids      *identity.Service
	logger   *slog.Logger
}

// NewService wires the flow over its collaborators.
func NewService(cfg config.Config, hasher *phone.Hasher, bans *ban.Registry, attempts *throttle.Counter, pins *pin.Service, ids *identity.Service, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, hasher: hasher, bans: bans, attempts: attempts, pins: pins, ids: ids, logger: logger}
}

// HashFor returns the digest keying throttle and identity state for a raw
// number. Under APP_ENV=test the configured fixture phone replaces the
// computed digest so flows stay deterministic.
func (s *Service) HashFor(rawPhone string) string {
	if s.cfg.IsTest() && s.cfg.TestPhone != "" {
		return s.cfg.TestPhone
	}
	return s.hasher.Hash(rawPhone)
}

// Begin handles an inbound login request: reject banned callers, count the
// attempt, then issue a PIN challenge. A missing originating address falls
// back to the phone digest only in the test environment.
func (s *Service) Begin(ctx context.Context, rawPhone, addr string) error {
	hashed := s.HashFor(rawPhone)

	if addr == "" {
		if !s.cfg.IsTest() {
			return ErrMissingAddress
		}
		addr = hashed
	}

	banned, err := s.bans.IsBanned(ctx, addr)
	if err != nil {
		return err
	}
	if banned {
		return throttle.ErrBanned
	}

	count, err := s.attempts.RecordAttempt(ctx, hashed, addr)
	if err != nil {
		return err
	}

	if err := s.pins.Generate(ctx, rawPhone); err != nil {
		return err
	}

	s.logger.Info("login challenge issued", "phone", hashed, "attempt", count)
	return nil
}

// Complete verifies the submitted code and resolves the caller's identity,
// registering a new one on first login when signups are open.
func (s *Service) Complete(ctx context.Context, rawPhone, code string) (identity.Identity, error) {
	if err := s.pins.Verify(ctx, rawPhone, code); err != nil {
		return identity.Identity{}, err
	}

	hashed := s.HashFor(rawPhone)
	s.logger.Info("logging in", "phone", hashed)

	return s.ids.ResolveOrCreate(ctx, hashed)
}
