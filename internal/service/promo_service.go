package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/models"
	"github.com/digkill/magicpixa/internal/repository"
)

var (
	ErrPromoInvalid         = errors.New("promo code invalid")
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed")
	ErrPromoExhausted       = errors.New("promo code exhausted")
	ErrPromoInUse           = repository.ErrPromoInUse
)

type PromoService struct {
	promos *repository.PromoRepository
	ledger *ledger.Ledger
}

func NewPromoService(promos *repository.PromoRepository, l *ledger.Ledger) *PromoService {
	return &PromoService{promos: promos, ledger: l}
}

// Redeem adds the code's credits to the caller's account once and returns the new balance.
func (s *PromoService) Redeem(ctx context.Context, id models.Identity, code string) (int, error) {
	if !id.Authenticated() {
		return 0, ErrNotAuthenticated
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ErrPromoInvalid
	}
	// The account document must exist before credits can be added to it.
	if _, err := s.ledger.Balance(ctx, id); err != nil {
		return 0, err
	}

	tx, err := s.promos.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var promoID int64
	var credits, uses, maxUses int
	row := tx.QueryRowContext(ctx, `SELECT id, credits, uses, max_uses FROM promo_codes WHERE code = ? FOR UPDATE`, code)
	if err := row.Scan(&promoID, &credits, &uses, &maxUses); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPromoInvalid
		}
		return 0, fmt.Errorf("lock promo: %w", err)
	}
	if uses >= maxUses {
		return 0, ErrPromoExhausted
	}

	var dummy int
	row = tx.QueryRowContext(ctx, `SELECT 1 FROM promo_redemptions WHERE user_uid = ? AND promo_code_id = ?`, id.UID, promoID)
	if err := row.Scan(&dummy); err == nil {
		return 0, ErrPromoAlreadyRedeemed
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check redemption: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO promo_redemptions (user_uid, promo_code_id) VALUES (?, ?)`, id.UID, promoID); err != nil {
		return 0, fmt.Errorf("insert redemption: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE promo_codes SET uses = uses + 1 WHERE id = ?`, promoID); err != nil {
		return 0, fmt.Errorf("increment promo uses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits + ?, updated_at = NOW() WHERE uid = ?`, credits, id.UID); err != nil {
		return 0, fmt.Errorf("add promo credits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit promo tx: %w", err)
	}

	s.ledger.Invalidate(id)
	bal, err := s.ledger.Balance(ctx, id)
	if err != nil {
		return 0, err
	}
	return bal.Credits, nil
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	return s.promos.List(ctx)
}

func (s *PromoService) Create(ctx context.Context, code string, credits, maxUses int) (*models.PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" || credits <= 0 || maxUses <= 0 {
		return nil, fmt.Errorf("%w: code, positive credits and max uses are required", ErrInvalidInput)
	}
	return s.promos.Create(ctx, &models.PromoCode{Code: code, Credits: credits, MaxUses: maxUses})
}

func (s *PromoService) Delete(ctx context.Context, id int64) error {
	return s.promos.Delete(ctx, id)
}
