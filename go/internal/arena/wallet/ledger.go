// Package wallet enforces the balance invariants on participant
// wallets: a balance never goes negative and the only mutation this
// engine performs is the debit-on-win at auction settlement.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmehra21/codebid/go/internal/store"
)

// ErrInsufficientFunds is returned when a debit fails against the
// current balance.
var ErrInsufficientFunds = errors.New("insufficient wallet balance")

// UserStore is what the ledger needs from persistence. The debit must
// be atomic with respect to other debits on the same wallet.
type UserStore interface {
	DebitWallet(ctx context.Context, userID uuid.UUID, amount int) error
}

// Ledger mediates all wallet debits.
type Ledger struct {
	users UserStore
}

func NewLedger(users UserStore) *Ledger {
	return &Ledger{users: users}
}

// Debit subtracts amount from the user's wallet at settlement.
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount int) error {
	if amount < 0 {
		return fmt.Errorf("ledger: negative debit %d for user %s", amount, userID)
	}
	if err := l.users.DebitWallet(ctx, userID, amount); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return fmt.Errorf("ledger: debit %d from %s: %w", amount, userID, ErrInsufficientFunds)
		}
		return fmt.Errorf("ledger: failed to debit %d from %s: %w", amount, userID, err)
	}
	return nil
}
