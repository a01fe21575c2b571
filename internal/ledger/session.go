package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/digkill/magicpixa/internal/models"
)

type State string

const (
	StateUninitialized      State = "uninitialized"
	StateLoading            State = "loading"
	StateAnonymousReady     State = "anonymous-ready"
	StateAuthenticatedReady State = "authenticated-ready"
)

// Session tracks one caller's balance as identity settles.
type Session struct {
	ledger *Ledger

	mu       sync.Mutex
	state    State
	identity models.Identity
	credits  int
}

func (l *Ledger) NewSession() *Session {
	return &Session{ledger: l, state: StateUninitialized}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) ready() bool {
	return s.state == StateAnonymousReady || s.state == StateAuthenticatedReady
}

// SetIdentity moves the session to loading and resolves the balance of id.
// Setting the identity the session is already ready for is a no-op.
func (s *Session) SetIdentity(ctx context.Context, id models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready() && s.identity.State == id.State && s.identity.Key() == id.Key() {
		return nil
	}
	s.identity = id
	s.state = StateLoading
	s.credits = 0
	if id.State == models.IdentityLoading {
		return nil
	}

	bal, err := s.ledger.Balance(ctx, id)
	if err != nil {
		return err
	}
	s.credits = bal.Credits
	if id.Authenticated() {
		s.state = StateAuthenticatedReady
	} else {
		s.state = StateAnonymousReady
	}
	return nil
}

func (s *Session) Balance() Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return Balance{Loading: true}
	}
	return Balance{Credits: s.credits}
}

// CanAfford reports whether a ready session holds at least cost credits.
func (s *Session) CanAfford(cost int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready() && s.credits >= cost
}

// Deduct spends amount through the ledger. It is refused while the session is not ready.
func (s *Session) Deduct(ctx context.Context, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return 0, ErrIdentityLoading
	}
	credits, err := s.ledger.Deduct(ctx, s.identity, amount)
	if err == nil || errors.Is(err, ErrInsufficientCredits) {
		s.credits = credits
	}
	return credits, err
}
