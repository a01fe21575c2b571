package ledger

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/digkill/magicpixa/internal/models"
	"github.com/digkill/magicpixa/internal/repository"
)

// MySQL error numbers for access denials.
var mysqlDenied = map[uint16]struct{}{
	1044: {}, // ER_DBACCESS_DENIED_ERROR
	1045: {}, // ER_ACCESS_DENIED_ERROR
	1142: {}, // ER_TABLEACCESS_DENIED_ERROR
	1143: {}, // ER_COLUMNACCESS_DENIED_ERROR
	1227: {}, // ER_SPECIFIC_ACCESS_DENIED_ERROR
}

type accountRepository interface {
	Credits(ctx context.Context, uid string) (int, bool, error)
	CreateIfAbsent(ctx context.Context, a models.Account) (bool, error)
	DeductCredits(ctx context.Context, uid string, amount int) (bool, error)
	AddCredits(ctx context.Context, uid string, amount int) (bool, error)
}

var _ accountRepository = (*repository.UserRepository)(nil)

// DocumentStore keeps authenticated balances in the users table.
type DocumentStore struct {
	users       accountRepository
	defaultPlan string
}

func NewDocumentStore(users accountRepository, defaultPlan string) *DocumentStore {
	return &DocumentStore{users: users, defaultPlan: defaultPlan}
}

func (s *DocumentStore) Load(ctx context.Context, id models.Identity) (int, error) {
	credits, ok, err := s.users.Credits(ctx, id.UID)
	if err != nil {
		return 0, classifyMySQL(err)
	}
	if !ok {
		return 0, ErrNoBalance
	}
	return credits, nil
}

func (s *DocumentStore) Create(ctx context.Context, id models.Identity, grant int) (int, bool, error) {
	created, err := s.users.CreateIfAbsent(ctx, models.Account{
		UID:              id.UID,
		Email:            id.Email,
		DisplayName:      id.DisplayName,
		SubscriptionPlan: s.defaultPlan,
		Credits:          grant,
	})
	if err != nil {
		return 0, false, classifyMySQL(err)
	}
	if created {
		return grant, true, nil
	}
	credits, err := s.Load(ctx, id)
	return credits, false, err
}

func (s *DocumentStore) Deduct(ctx context.Context, id models.Identity, amount int) (int, error) {
	ok, err := s.users.DeductCredits(ctx, id.UID, amount)
	if err != nil {
		return 0, classifyMySQL(err)
	}
	credits, loadErr := s.Load(ctx, id)
	if !ok {
		if loadErr != nil {
			return 0, loadErr
		}
		return credits, ErrInsufficientCredits
	}
	if loadErr != nil {
		return 0, fmt.Errorf("reload after deduct: %w", loadErr)
	}
	return credits, nil
}

func (s *DocumentStore) Add(ctx context.Context, id models.Identity, amount int) (int, error) {
	ok, err := s.users.AddCredits(ctx, id.UID, amount)
	if err != nil {
		return 0, classifyMySQL(err)
	}
	if !ok {
		return 0, ErrNoBalance
	}
	return s.Load(ctx, id)
}

func classifyMySQL(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if _, denied := mysqlDenied[myErr.Number]; denied {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return unavailable(err)
}
