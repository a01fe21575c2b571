package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/digkill/magicpixa/internal/models"
)

// Store persists one integer balance per credit holder.
type Store interface {
	// Load returns ErrNoBalance when the holder has no balance yet.
	Load(ctx context.Context, id models.Identity) (int, error)
	// Create stores grant unless a balance exists and returns the balance in effect.
	Create(ctx context.Context, id models.Identity, grant int) (balance int, created bool, err error)
	// Deduct atomically subtracts amount when the balance covers it. On refusal it returns
	// the current balance with ErrInsufficientCredits and writes nothing.
	Deduct(ctx context.Context, id models.Identity, amount int) (int, error)
	Add(ctx context.Context, id models.Identity, amount int) (int, error)
}

// unavailable maps transport-level failures to ErrStoreUnavailable.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
