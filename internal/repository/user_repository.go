package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/magicpixa/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const accountColumns = `uid, COALESCE(email, ''), COALESCE(display_name, ''), subscription_plan, credits, signed_up_at, created_at, updated_at`

func (r *UserRepository) FindByUID(ctx context.Context, uid string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE uid = ?`
	row := r.db.QueryRowContext(ctx, query, uid)
	var a models.Account
	if err := row.Scan(&a.UID, &a.Email, &a.DisplayName, &a.SubscriptionPlan, &a.Credits, &a.SignedUpAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &a, nil
}

// Credits returns the stored balance and whether the document exists.
func (r *UserRepository) Credits(ctx context.Context, uid string) (int, bool, error) {
	const query = `SELECT credits FROM users WHERE uid = ?`
	var credits int
	if err := r.db.QueryRowContext(ctx, query, uid).Scan(&credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select credits: %w", err)
	}
	return credits, true, nil
}

// CreateIfAbsent inserts the account unless a document with the same uid exists.
func (r *UserRepository) CreateIfAbsent(ctx context.Context, a models.Account) (bool, error) {
	const query = `
INSERT IGNORE INTO users (uid, email, display_name, subscription_plan, credits)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?, ?)`
	res, err := r.db.ExecContext(ctx, query, a.UID, a.Email, a.DisplayName, a.SubscriptionPlan, a.Credits)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user rows affected: %w", err)
	}
	return affected > 0, nil
}

// SignUp records the sign-up document once. A row the ledger created first is completed with the
// profile, and its balance is raised only when sign-up moves it to a different plan. Once
// signed_up_at is set the row is left untouched.
func (r *UserRepository) SignUp(ctx context.Context, a models.Account) error {
	const query = `
INSERT INTO users (uid, email, display_name, subscription_plan, credits, signed_up_at)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, NOW())
ON DUPLICATE KEY UPDATE
    credits = IF(signed_up_at IS NULL AND subscription_plan <> VALUES(subscription_plan),
        GREATEST(credits, VALUES(credits)), credits),
    subscription_plan = IF(signed_up_at IS NULL, VALUES(subscription_plan), subscription_plan),
    email = IF(signed_up_at IS NULL, VALUES(email), email),
    display_name = IF(signed_up_at IS NULL, VALUES(display_name), display_name),
    signed_up_at = COALESCE(signed_up_at, NOW())`
	if _, err := r.db.ExecContext(ctx, query, a.UID, a.Email, a.DisplayName, a.SubscriptionPlan, a.Credits); err != nil {
		return fmt.Errorf("sign up user: %w", err)
	}
	return nil
}

// DeductCredits subtracts amount only when the balance covers it.
func (r *UserRepository) DeductCredits(ctx context.Context, uid string, amount int) (bool, error) {
	const query = `
UPDATE users SET credits = credits - ?, updated_at = NOW()
WHERE uid = ? AND credits >= ?`
	res, err := r.db.ExecContext(ctx, query, amount, uid, amount)
	if err != nil {
		return false, fmt.Errorf("deduct credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deduct rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *UserRepository) AddCredits(ctx context.Context, uid string, amount int) (bool, error) {
	const query = `UPDATE users SET credits = credits + ?, updated_at = NOW() WHERE uid = ?`
	res, err := r.db.ExecContext(ctx, query, amount, uid)
	if err != nil {
		return false, fmt.Errorf("add credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add credits rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *UserRepository) List(ctx context.Context, limit int) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.UID, &a.Email, &a.DisplayName, &a.SubscriptionPlan, &a.Credits, &a.SignedUpAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user list: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
