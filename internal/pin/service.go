// Package pin issues and verifies one-time login codes. A challenge lives in
// the expiring store under the normalized phone number; codes are stored only
// as bcrypt hashes and are consumed on first successful verification.
package pin

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dialkey/dialkey/internal/kv"
	"github.com/dialkey/dialkey/internal/phone"
)

const keyPrefix = "pin:"

// ErrChallengeInvalid covers every user-correctable verification failure:
// no pending challenge, an expired challenge, or a mismatched code. Callers
// must not learn which one it was.
var ErrChallengeInvalid = errors.New("pin: invalid or expired PIN")

// Sender delivers a generated code to the user out of band.
type Sender interface {
	Send(ctx context.Context, rawPhone, code string) error
}

// Service manages the challenge lifecycle for phone numbers.
type Service struct {
	store  kv.Store
	sender Sender
	ttl    time.Duration
	digits int
	logger *slog.Logger
}

// NewService builds a PIN service issuing codes of the given digit length
// that expire after ttl.
func NewService(store kv.Store, sender Sender, ttl time.Duration, digits int, logger *slog.Logger) *Service {
	return &Service{store: store, sender: sender, ttl: ttl, digits: digits, logger: logger}
}

// Generate creates a fresh challenge for the phone number, replacing any
// pending one, and triggers delivery. If delivery fails the stored challenge
// is removed so the caller never holds a challenge it believes was sent.
func (s *Service) Generate(ctx context.Context, rawPhone string) error {
	number := phone.Normalize(rawPhone)
	if number == "" {
		return fmt.Errorf("pin: empty phone number")
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	if err := s.store.Put(ctx, keyPrefix+number, hash, s.ttl); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}

	if err := s.sender.Send(ctx, rawPhone, code); err != nil {
		if delErr := s.store.Delete(ctx, keyPrefix+number); delErr != nil {
			s.logger.Error("orphaned challenge cleanup failed", "error", delErr)
		}
		return fmt.Errorf("send code: %w", err)
	}

	s.logger.Debug("challenge issued", "ttl", s.ttl)
	return nil
}

// Verify checks the submitted code against the pending challenge for the
// phone number. On success the challenge is consumed; a repeat Verify with
// any code then fails as if no challenge existed.
func (s *Service) Verify(ctx context.Context, rawPhone, code string) error {
	number := phone.Normalize(rawPhone)

	hash, err := s.store.Get(ctx, keyPrefix+number)
	if errors.Is(err, kv.ErrNotFound) {
		s.logger.Debug("verify without pending challenge")
		return ErrChallengeInvalid
	}
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(code)) != nil {
		s.logger.Debug("challenge code mismatch")
		return ErrChallengeInvalid
	}

	// Consume before reporting success; single use has to hold even if the
	// caller crashes after this returns.
	if err := s.store.Delete(ctx, keyPrefix+number); err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

func (s *Service) newCode() (string, error) {
	bound := big.NewInt(1)
	for i := 0; i < s.digits; i++ {
		bound.Mul(bound, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.digits, n), nil
}
