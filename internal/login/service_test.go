package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dialkey/dialkey/internal/ban"
	"github.com/dialkey/dialkey/internal/config"
	"github.com/dialkey/dialkey/internal/identity"
	"github.com/dialkey/dialkey/internal/kv"
	"github.com/dialkey/dialkey/internal/logging"
	"github.com/dialkey/dialkey/internal/phone"
	"github.com/dialkey/dialkey/internal/pin"
	"github.com/dialkey/dialkey/internal/throttle"
)

type captureSender struct {
	code  string
	fail  error
	sends int
}

func (s *captureSender) Send(_ context.Context, _, code string) error {
	s.sends++
	if s.fail != nil {
		return s.fail
	}
	s.code = code
	return nil
}

type flowDeps struct {
	store  *kv.MemoryStore
	bans   *ban.Registry
	sender *captureSender
	repo   identity.Repository
}

func newFlow(t *testing.T, cfg config.Config) (*Service, *flowDeps) {
	t.Helper()
	logger := logging.Discard()

	deps := &flowDeps{
		store:  kv.NewMemoryStore(),
		sender: &captureSender{},
		repo:   identity.NewMemoryRepository(),
	}
	deps.bans = ban.NewRegistry(deps.store)

	if cfg.AttemptWindow == 0 {
		cfg.AttemptWindow = 5 * time.Minute
	}
	if cfg.AttemptMax == 0 {
		cfg.AttemptMax = 3
	}
	if cfg.PinTTL == 0 {
		cfg.PinTTL = 5 * time.Minute
	}
	if cfg.PinDigits == 0 {
		cfg.PinDigits = 6
	}
	if cfg.PhoneHashSecret == "" {
		cfg.PhoneHashSecret = "test-secret"
	}

	attempts := throttle.NewCounter(deps.store, deps.bans, cfg.AttemptWindow, cfg.AttemptMax, logger)
	pins := pin.NewService(deps.store, deps.sender, cfg.PinTTL, cfg.PinDigits, logger)
	ids := identity.NewService(deps.repo, !cfg.DisableSignups, cfg.Operators, logger)
	hasher := phone.NewHasher(cfg.PhoneHashSecret)

	return NewService(cfg, hasher, deps.bans, attempts, pins, ids, logger), deps
}

func TestBegin_BanGatePrecedesCounter(t *testing.T) {
	svc, deps := newFlow(t, config.Config{})
	ctx := context.Background()

	if err := deps.bans.Ban(ctx, "203.0.113.1"); err != nil {
		t.Fatalf("seed ban: %v", err)
	}

	err := svc.Begin(ctx, "5550100", "203.0.113.1")
	if !errors.Is(err, throttle.ErrBanned) {
		t.Fatalf("expected ErrBanned, got %v", err)
	}

	// The counter was never touched and no PIN went out.
	if _, err := deps.store.Get(ctx, "attempt:"+svc.HashFor("5550100")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("counter must be untouched for banned callers, got %v", err)
	}
	if deps.sender.sends != 0 {
		t.Fatalf("no PIN may be delivered to banned callers")
	}
}

func TestBegin_ThresholdEscalatesToBan(t *testing.T) {
	svc, deps := newFlow(t, config.Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Begin(ctx, "5550100", "203.0.113.2"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	if err := svc.Begin(ctx, "5550100", "203.0.113.2"); !errors.Is(err, throttle.ErrBanned) {
		t.Fatalf("fourth attempt: expected ErrBanned, got %v", err)
	}

	banned, err := deps.bans.IsBanned(ctx, "203.0.113.2")
	if err != nil {
		t.Fatalf("ban check: %v", err)
	}
	if !banned {
		t.Fatalf("expected address ban after overflow")
	}
	if deps.sender.sends != 3 {
		t.Fatalf("expected 3 deliveries before the ban, got %d", deps.sender.sends)
	}
}

func TestBegin_MissingAddressRejectedOutsideTestEnv(t *testing.T) {
	svc, deps := newFlow(t, config.Config{AppEnv: "production"})
	ctx := context.Background()

	if err := svc.Begin(ctx, "5550100", ""); !errors.Is(err, ErrMissingAddress) {
		t.Fatalf("expected ErrMissingAddress, got %v", err)
	}
	if deps.sender.sends != 0 {
		t.Fatalf("rejection must precede any state mutation")
	}
}

func TestBegin_TestEnvSubstitutesFixture(t *testing.T) {
	svc, deps := newFlow(t, config.Config{AppEnv: "test", TestPhone: "fixture-digest"})
	ctx := context.Background()

	if err := svc.Begin(ctx, "5550100", ""); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if got, err := deps.store.Get(ctx, "attempt:fixture-digest"); err != nil || string(got) != "1" {
		t.Fatalf("expected fixture-keyed counter of 1, got %q err %v", got, err)
	}
}

func TestFullFlow_NewUserResolvedOnce(t *testing.T) {
	svc, deps := newFlow(t, config.Config{})
	ctx := context.Background()

	if err := svc.Begin(ctx, "5551234567", "203.0.113.3"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	id, err := svc.Complete(ctx, "5551234567", deps.sender.code)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if id.UID == "" {
		t.Fatalf("expected new uid")
	}
	if id.Phone != svc.HashFor("5551234567") {
		t.Fatalf("identity phone must be the digest")
	}
	if id.Name != "" {
		t.Fatalf("new user has no name, got %q", id.Name)
	}

	// Challenge is single use.
	if _, err := svc.Complete(ctx, "5551234567", deps.sender.code); !errors.Is(err, pin.ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid on replay, got %v", err)
	}
}

func TestComplete_SignupsDisabledOutcome(t *testing.T) {
	svc, deps := newFlow(t, config.Config{DisableSignups: true})
	ctx := context.Background()

	if err := svc.Begin(ctx, "5551234567", "203.0.113.4"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := svc.Complete(ctx, "5551234567", deps.sender.code); !errors.Is(err, identity.ErrSignupsDisabled) {
		t.Fatalf("expected ErrSignupsDisabled, got %v", err)
	}
}

func TestComplete_OperatorFlag(t *testing.T) {
	svc, deps := newFlow(t, config.Config{})
	ctx := context.Background()

	if err := svc.Begin(ctx, "5551234567", "203.0.113.5"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	first, err := svc.Complete(ctx, "5551234567", deps.sender.code)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	opSvc, opDeps := newFlow(t, config.Config{Operators: []string{first.UID}})
	if err := opDeps.repo.Create(ctx, identity.User{UID: first.UID, Phone: first.Phone, ShowReplies: true}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := opSvc.Begin(ctx, "5551234567", "203.0.113.5"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	id, err := opSvc.Complete(ctx, "5551234567", opDeps.sender.code)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !id.Operator {
		t.Fatalf("expected operator flag for allow-listed uid")
	}
}
