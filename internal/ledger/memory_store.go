package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/digkill/magicpixa/internal/models"
)

// MemoryStore keeps anonymous balances in process memory. Used when Redis is not configured.
type MemoryStore struct {
	mu       sync.Mutex
	balances *cache.Cache
	ttl      time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}
	return &MemoryStore{balances: cache.New(expiration, cleanup), ttl: expiration}
}

func (s *MemoryStore) key(id models.Identity) string {
	return AnonymousKeyPrefix + id.SessionID
}

func (s *MemoryStore) Load(_ context.Context, id models.Identity) (int, error) {
	v, ok := s.balances.Get(s.key(id))
	if !ok {
		return 0, ErrNoBalance
	}
	return v.(int), nil
}

func (s *MemoryStore) Create(ctx context.Context, id models.Identity, grant int) (int, bool, error) {
	if err := s.balances.Add(s.key(id), grant, s.ttl); err == nil {
		return grant, true, nil
	}
	v, err := s.Load(ctx, id)
	return v, false, err
}

func (s *MemoryStore) Deduct(_ context.Context, id models.Identity, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.balances.Get(s.key(id))
	if !ok {
		return 0, ErrNoBalance
	}
	current := v.(int)
	if current < amount {
		return current, ErrInsufficientCredits
	}
	s.balances.Set(s.key(id), current-amount, s.ttl)
	return current - amount, nil
}

func (s *MemoryStore) Add(_ context.Context, id models.Identity, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.balances.Get(s.key(id))
	if !ok {
		return 0, ErrNoBalance
	}
	next := v.(int) + amount
	s.balances.Set(s.key(id), next, s.ttl)
	return next, nil
}
