package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/models"
)

// fakeUsers keeps accounts in memory and shares balances with a mapStore.
type fakeUsers struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	docs     *mapStore
}

func (f *fakeUsers) FindByUID(_ context.Context, uid string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[uid]
	if !ok {
		return nil, nil
	}
	a.Credits = f.docs.balance(models.Identity{State: models.IdentityAuthenticated, UID: uid})
	return &a, nil
}

// SignUp mirrors the repository statement: rows already signed up are left alone, and a row the
// ledger created on the default plan is only raised when sign-up changes the plan.
func (f *fakeUsers) SignUp(_ context.Context, a models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.accounts[a.UID]; ok && existing.SignedUpAt != nil {
		return nil
	}
	now := time.Now()
	a.SignedUpAt = &now
	f.accounts[a.UID] = a

	key := models.Identity{State: models.IdentityAuthenticated, UID: a.UID}.Key()
	f.docs.mu.Lock()
	defer f.docs.mu.Unlock()
	current, ok := f.docs.balances[key]
	switch {
	case !ok:
		f.docs.balances[key] = a.Credits
	case a.SubscriptionPlan != "free":
		f.docs.balances[key] = max(current, a.Credits)
	}
	return nil
}

func (f *fakeUsers) List(_ context.Context, _ int) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

type fakeHistory struct{}

func (fakeHistory) ListForUser(_ context.Context, uid string, _ int) ([]models.GenerationLog, error) {
	return []models.GenerationLog{{ID: 1, UserUID: uid, Feature: models.FeaturePhotoStudio, Cost: 3}}, nil
}

func newUserFixture() (*UserService, *mapStore, *ledger.Ledger) {
	docs := newMapStore()
	plans := NewPlanService(testCatalogue(), config.Credits{GuestGrant: 10, TestAccountEmail: "tester@magicpixa.app"})
	l := newTestLedger(docs, newMapStore(), plans)
	users := &fakeUsers{accounts: make(map[string]models.Account), docs: docs}
	return NewUserService(users, fakeHistory{}, plans, l, discardLogger()), docs, l
}

func TestSignUp(t *testing.T) {
	svc, _, _ := newUserFixture()

	acc, err := svc.SignUp(context.Background(), userID, "  Ann  ")
	require.NoError(t, err)
	assert.Equal(t, "Ann", acc.DisplayName)
	assert.Equal(t, "free", acc.SubscriptionPlan)
	assert.Equal(t, 10, acc.Credits)
}

func TestSignUpTestAccount(t *testing.T) {
	svc, docs, _ := newUserFixture()
	tester := models.Identity{State: models.IdentityAuthenticated, UID: "u-t", Email: "tester@magicpixa.app"}

	acc, err := svc.SignUp(context.Background(), tester, "")
	require.NoError(t, err)
	assert.Equal(t, "vip_tester", acc.SubscriptionPlan)
	assert.Equal(t, 999999, docs.balance(tester))
}

func TestSignUpAfterSpendingKeepsBalance(t *testing.T) {
	svc, docs, l := newUserFixture()
	ctx := context.Background()

	bal, err := l.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 10, bal.Credits)
	for range 3 {
		_, err = l.Deduct(ctx, userID, 3)
		require.NoError(t, err)
	}

	acc, err := svc.SignUp(ctx, userID, "Ann")
	require.NoError(t, err)
	assert.Equal(t, 1, acc.Credits)
	assert.Equal(t, "free", acc.SubscriptionPlan)
	require.NotNil(t, acc.SignedUpAt)

	again, err := svc.SignUp(ctx, userID, "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Credits)
	assert.Equal(t, "Ann", again.DisplayName)
	assert.Equal(t, 1, docs.balance(userID))
}

func TestRepeatSignUpDoesNotRegrant(t *testing.T) {
	svc, docs, l := newUserFixture()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, userID, "")
	require.NoError(t, err)
	_, err = l.Deduct(ctx, userID, 9)
	require.NoError(t, err)

	acc, err := svc.SignUp(ctx, userID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, acc.Credits)
	assert.Equal(t, 1, docs.balance(userID))
}

func TestSignUpUpgradesLedgerCreatedTestAccount(t *testing.T) {
	svc, docs, l := newUserFixture()
	ctx := context.Background()
	tester := models.Identity{State: models.IdentityAuthenticated, UID: "u-t", Email: "tester@magicpixa.app"}

	_, err := l.Balance(ctx, tester)
	require.NoError(t, err)

	acc, err := svc.SignUp(ctx, tester, "")
	require.NoError(t, err)
	assert.Equal(t, "vip_tester", acc.SubscriptionPlan)
	assert.Equal(t, 999999, acc.Credits)

	_, err = l.Deduct(ctx, tester, 3)
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, tester, "")
	require.NoError(t, err)
	assert.Equal(t, 999996, docs.balance(tester))
}

func TestUserServiceRequiresAccount(t *testing.T) {
	svc, _, _ := newUserFixture()

	_, err := svc.SignUp(context.Background(), guestID, "Guest")
	require.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = svc.Profile(context.Background(), guestID)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = svc.Creations(context.Background(), guestID, 10)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.Profile(context.Background(), userID)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCreations(t *testing.T) {
	svc, _, _ := newUserFixture()

	logs, err := svc.Creations(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "u-1", logs[0].UserUID)
}

func TestGrantCredits(t *testing.T) {
	svc, _, _ := newUserFixture()

	_, err := svc.GrantCredits(context.Background(), "missing", 5)
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.SignUp(context.Background(), userID, "")
	require.NoError(t, err)
	credits, err := svc.GrantCredits(context.Background(), userID.UID, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, credits)
}
