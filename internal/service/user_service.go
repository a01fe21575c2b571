package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/models"
)

var (
	ErrNotAuthenticated = errors.New("sign in required")
	ErrAccountNotFound  = errors.New("account not found")
)

type userStore interface {
	FindByUID(ctx context.Context, uid string) (*models.Account, error)
	SignUp(ctx context.Context, a models.Account) error
	List(ctx context.Context, limit int) ([]models.Account, error)
}

type creationHistory interface {
	ListForUser(ctx context.Context, uid string, limit int) ([]models.GenerationLog, error)
}

type UserService struct {
	users       userStore
	generations creationHistory
	plans       *PlanService
	ledger      *ledger.Ledger
	log         *slog.Logger
}

func NewUserService(users userStore, generations creationHistory, plans *PlanService, l *ledger.Ledger, log *slog.Logger) *UserService {
	return &UserService{users: users, generations: generations, plans: plans, ledger: l, log: log}
}

// SignUp writes the account document with the plan grant for the identity's email. It runs once
// per account: a repeat call returns the existing profile and leaves the balance alone.
func (s *UserService) SignUp(ctx context.Context, id models.Identity, displayName string) (*models.Account, error) {
	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	existing, err := s.users.FindByUID(ctx, id.UID)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if existing != nil && existing.SignedUpAt != nil {
		return existing, nil
	}

	if name := strings.TrimSpace(displayName); name != "" {
		id.DisplayName = name
	}
	plan := s.plans.PlanFor(id.Email)
	err = s.users.SignUp(ctx, models.Account{
		UID:              id.UID,
		Email:            id.Email,
		DisplayName:      id.DisplayName,
		SubscriptionPlan: plan.Name,
		Credits:          plan.Credits,
	})
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	s.ledger.Invalidate(id)
	s.log.Info("account signed up", "uid", id.UID, "plan", plan.Name)
	return s.Profile(ctx, id)
}

func (s *UserService) Profile(ctx context.Context, id models.Identity) (*models.Account, error) {
	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	acc, err := s.users.FindByUID(ctx, id.UID)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (s *UserService) Creations(ctx context.Context, id models.Identity, limit int) ([]models.GenerationLog, error) {
	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	logs, err := s.generations.ListForUser(ctx, id.UID, limit)
	if err != nil {
		return nil, fmt.Errorf("list creations: %w", err)
	}
	return logs, nil
}

func (s *UserService) List(ctx context.Context, limit int) ([]models.Account, error) {
	accounts, err := s.users.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// GrantCredits tops up an existing account.
func (s *UserService) GrantCredits(ctx context.Context, uid string, amount int) (int, error) {
	credits, err := s.ledger.Grant(ctx, models.Identity{State: models.IdentityAuthenticated, UID: uid}, amount)
	if errors.Is(err, ledger.ErrNoBalance) {
		return 0, ErrAccountNotFound
	}
	return credits, err
}
