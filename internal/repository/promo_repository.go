package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/digkill/magicpixa/internal/models"
)

// ErrPromoInUse is returned when a code cannot be deleted because redemptions reference it.
var ErrPromoInUse = errors.New("promo code has redemptions and cannot be deleted")

// MySQL foreign key violations on delete: ER_ROW_IS_REFERENCED_2 and ER_ROW_IS_REFERENCED.
const (
	errRowIsReferenced2 = 1451
	errRowIsReferenced  = 1217
)

type PromoRepository struct {
	db *sql.DB
}

func NewPromoRepository(db *sql.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

func (r *PromoRepository) DB() *sql.DB {
	return r.db
}

const promoColumns = `id, code, credits, max_uses, uses, created_at`

func scanPromo(row interface{ Scan(...any) error }) (*models.PromoCode, error) {
	var p models.PromoCode
	if err := row.Scan(&p.ID, &p.Code, &p.Credits, &p.MaxUses, &p.Uses, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PromoRepository) GetByID(ctx context.Context, id int64) (*models.PromoCode, error) {
	promo, err := scanPromo(r.db.QueryRowContext(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get promo by id: %w", err)
	}
	return promo, nil
}

func (r *PromoRepository) List(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	defer rows.Close()

	var promos []models.PromoCode
	for rows.Next() {
		promo, err := scanPromo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promo list: %w", err)
		}
		promos = append(promos, *promo)
	}
	return promos, rows.Err()
}

func (r *PromoRepository) Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	const query = `
INSERT INTO promo_codes (code, credits, max_uses, uses)
VALUES (?, ?, ?, 0)`
	res, err := r.db.ExecContext(ctx, query, promo.Code, promo.Credits, promo.MaxUses)
	if err != nil {
		return nil, fmt.Errorf("create promo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("promo last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PromoRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM promo_codes WHERE id = ?`, id); err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && (myErr.Number == errRowIsReferenced2 || myErr.Number == errRowIsReferenced) {
			return ErrPromoInUse
		}
		return fmt.Errorf("delete promo: %w", err)
	}
	return nil
}
