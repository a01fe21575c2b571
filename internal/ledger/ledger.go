package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/digkill/magicpixa/internal/models"
)

// Balance is what callers see: the credit count and whether identity is still settling.
type Balance struct {
	Credits int  `json:"credits"`
	Loading bool `json:"isLoading"`
}

// GrantPolicy returns the starting credits for a holder seen for the first time.
type GrantPolicy func(id models.Identity) int

// Ledger reads, initializes and spends credits for anonymous and authenticated holders.
type Ledger struct {
	documents Store
	anonymous Store
	grant     GrantPolicy
	cache     *cache.Cache
	emitter   *Emitter
	log       *slog.Logger
}

// New builds a ledger. A cacheTTL of zero or less disables the balance cache and every read hits the store.
func New(documents, anonymous Store, grant GrantPolicy, cacheTTL time.Duration, emitter *Emitter, log *slog.Logger) *Ledger {
	if emitter == nil {
		emitter = NewEmitter()
	}
	l := &Ledger{
		documents: documents,
		anonymous: anonymous,
		grant:     grant,
		emitter:   emitter,
		log:       log,
	}
	if cacheTTL > 0 {
		l.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return l
}

func (l *Ledger) cached(id models.Identity) (int, bool) {
	if l.cache == nil {
		return 0, false
	}
	v, ok := l.cache.Get(id.Key())
	if !ok {
		return 0, false
	}
	return v.(int), true
}

func (l *Ledger) remember(id models.Identity, credits int) {
	if l.cache != nil {
		l.cache.Set(id.Key(), credits, cache.DefaultExpiration)
	}
}

func (l *Ledger) forget(id models.Identity) {
	if l.cache != nil {
		l.cache.Delete(id.Key())
	}
}

func (l *Ledger) Emitter() *Emitter {
	return l.emitter
}

func (l *Ledger) storeFor(id models.Identity) (Store, error) {
	switch {
	case id.State == models.IdentityLoading:
		return nil, ErrIdentityLoading
	case id.Authenticated():
		return l.documents, nil
	case id.Anonymous():
		return l.anonymous, nil
	default:
		return nil, ErrNoIdentity
	}
}

// Balance returns the holder's credits, creating the balance with its starting grant on first read.
// Repeated reads are served from cache and never write.
func (l *Ledger) Balance(ctx context.Context, id models.Identity) (Balance, error) {
	if id.State == models.IdentityLoading {
		return Balance{Loading: true}, nil
	}
	store, err := l.storeFor(id)
	if err != nil {
		return Balance{}, err
	}
	if v, ok := l.cached(id); ok {
		return Balance{Credits: v}, nil
	}

	credits, err := l.load(ctx, store, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Credits: credits}, nil
}

func (l *Ledger) load(ctx context.Context, store Store, id models.Identity) (int, error) {
	credits, err := store.Load(ctx, id)
	if errors.Is(err, ErrNoBalance) {
		var created bool
		credits, created, err = store.Create(ctx, id, l.grant(id))
		if err != nil {
			return 0, l.fail(id, "create", err)
		}
		if created {
			l.log.Info("credits initialized", "holder", id.Key(), "credits", credits)
		}
	} else if err != nil {
		return 0, l.fail(id, "get", err)
	}
	l.remember(id, credits)
	return credits, nil
}

// Deduct spends amount credits and returns the new balance. A deduction larger than the
// balance is refused with ErrInsufficientCredits and the current balance.
func (l *Ledger) Deduct(ctx context.Context, id models.Identity, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	store, err := l.storeFor(id)
	if err != nil {
		return 0, err
	}

	credits, err := store.Deduct(ctx, id, amount)
	if errors.Is(err, ErrNoBalance) {
		if _, err := l.load(ctx, store, id); err != nil {
			return 0, err
		}
		credits, err = store.Deduct(ctx, id, amount)
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientCredits):
		l.remember(id, credits)
		return credits, ErrInsufficientCredits
	default:
		return 0, l.fail(id, "update", err)
	}

	l.remember(id, credits)
	l.log.Info("credits deducted", "holder", id.Key(), "amount", amount, "credits", credits)
	return credits, nil
}

// Grant adds credits to an existing balance.
func (l *Ledger) Grant(ctx context.Context, id models.Identity, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	store, err := l.storeFor(id)
	if err != nil {
		return 0, err
	}
	credits, err := store.Add(ctx, id, amount)
	if err != nil {
		if errors.Is(err, ErrNoBalance) {
			return 0, err
		}
		return 0, l.fail(id, "update", err)
	}
	l.remember(id, credits)
	return credits, nil
}

// Invalidate drops the cached balance after an out-of-band change.
func (l *Ledger) Invalidate(id models.Identity) {
	l.forget(id)
}

// fail routes permission denials to the emitter and leaves the cached balance untouched.
func (l *Ledger) fail(id models.Identity, op string, err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		pe := &PermissionError{Path: holderPath(id), Operation: op, Err: err}
		l.emitter.Emit(pe)
		return pe
	}
	if errors.Is(err, ErrStoreUnavailable) {
		l.log.Warn("credit store unavailable", "holder", id.Key(), "op", op, "err", err)
		return err
	}
	return fmt.Errorf("credits %s: %w", op, err)
}

func holderPath(id models.Identity) string {
	if id.Authenticated() {
		return "users/" + id.UID
	}
	return "anonymous/" + id.SessionID
}
