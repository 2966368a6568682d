// Package identity maps verified phone digests to users, following
// secondary-phone links to their primary identity and provisioning new users
// on first login.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSignupsDisabled reports that the phone has no identity and new
	// registrations are administratively switched off. It is an outcome,
	// not a failure; callers redirect rather than error.
	ErrSignupsDisabled = errors.New("identity: signups disabled")

	// ErrIntegrity reports inconsistent stored state, such as a secondary
	// link whose primary user record is missing. Never user-visible in
	// detail.
	ErrIntegrity = errors.New("identity: data integrity fault")
)

// Service resolves phone digests to identities.
type Service struct {
	repo           Repository
	signupsEnabled bool
	operators      map[string]struct{}
	logger         *slog.Logger
}

// NewService builds a resolver. operators is the externally configured
// allow-list of privileged uids; membership is checked per resolution and
// never persisted on the user record.
func NewService(repo Repository, signupsEnabled bool, operators []string, logger *slog.Logger) *Service {
	ops := make(map[string]struct{}, len(operators))
	for _, uid := range operators {
		ops[uid] = struct{}{}
	}
	return &Service{repo: repo, signupsEnabled: signupsEnabled, operators: ops, logger: logger}
}

// Resolve maps a hashed phone to an existing identity. The phone is tried as
// a primary first, then as a secondary link. A link that dereferences to a
// missing user record is ErrIntegrity, not ErrNotFound: it must never fall
// through to registration.
func (s *Service) Resolve(ctx context.Context, hashedPhone string) (Identity, error) {
	user, err := s.repo.FindByPrimaryPhone(ctx, hashedPhone)
	if err == nil {
		return s.identityFor(user), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}

	primary, err := s.repo.FindPrimaryForSecondary(ctx, hashedPhone)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, err
	}

	user, err = s.repo.FindByPrimaryPhone(ctx, primary)
	if errors.Is(err, ErrNotFound) {
		s.logger.Error("secondary link targets missing user", "primary", primary)
		return Identity{}, fmt.Errorf("%w: secondary link targets missing user", ErrIntegrity)
	}
	if err != nil {
		return Identity{}, err
	}
	return s.identityFor(user), nil
}

// ResolveOrCreate resolves the hashed phone, registering a new user when no
// record exists and signups are enabled.
//
// Concurrent first logins with the same phone can race to Create; the loser
// fails and retries resolve on its next request. A duplicate uid allocation
// under that race is an accepted gap, not silently repaired.
func (s *Service) ResolveOrCreate(ctx context.Context, hashedPhone string) (Identity, error) {
	id, err := s.Resolve(ctx, hashedPhone)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}

	if !s.signupsEnabled {
		return Identity{}, ErrSignupsDisabled
	}

	user := User{
		UID:         uuid.NewString(),
		Phone:       hashedPhone,
		ShowReplies: true,
		Secondary:   map[string]string{},
		CreatedAt:   time.Now().UTC(),
	}
	// Create is all-or-nothing over user record and uid index; a failure here
	// must surface as a failed login, never a half-registered success.
	if err := s.repo.Create(ctx, user); err != nil {
		return Identity{}, fmt.Errorf("register user: %w", err)
	}

	s.logger.Info("registered new user", "uid", user.UID)
	return s.identityFor(user), nil
}

// IsOperator reports whether the uid is on the operator allow-list.
func (s *Service) IsOperator(uid string) bool {
	_, ok := s.operators[uid]
	return ok
}

func (s *Service) identityFor(u User) Identity {
	return Identity{
		UID:         u.UID,
		Phone:       u.Phone,
		Name:        u.Name,
		ShowReplies: u.ShowReplies,
		Operator:    s.IsOperator(u.UID),
	}
}
