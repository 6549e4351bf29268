/*
ledger.go - Append-only reward ledger

PURPOSE:
  The Ledger is the source of truth for a user's vault. Rewards are
  credited, spending is withdrawn, and mistakes are reversed. Balance is
  always computed by replaying transactions.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)
  3. NON-NEGATIVE: Neither a withdrawal nor a credit reversal takes the
     balance below zero

CORRECTIONS:
  Reverse() appends an opposite-sign transaction. Both remain in history.

SEE ALSO:
  - store.go: Low-level persistence interface
  - store/sqlite/sqlite.go: Writes check-in credits in the same DB
    transaction as the check-in record
*/
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger interface {
	// Credit adds a positive amount to the user's vault.
	Credit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (Transaction, error)

	// Withdraw spends amount. Fails with *InsufficientBalanceError when the
	// balance does not cover it.
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal, description string) (Transaction, error)

	// Reverse undoes a previous transaction.
	Reverse(ctx context.Context, userID string, id TransactionID, reason string) (Transaction, error)

	// Summary returns the balance and totals. Read-only.
	Summary(ctx context.Context, userID string) (Summary, error)

	// History returns all transactions, oldest first. Read-only.
	History(ctx context.Context, userID string) ([]Transaction, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Credit(ctx context.Context, userID string, amount decimal.Decimal, description, referenceID string) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	tx := NewCredit(userID, amount, description, referenceID)
	err := l.atomically(ctx, func(s Store) error {
		return appendChecked(ctx, s, tx)
	})
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (l *DefaultLedger) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, description string) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	tx := NewWithdrawal(userID, amount, description)

	err := l.atomically(ctx, func(s Store) error {
		if err := ensureCovered(ctx, s, userID, amount); err != nil {
			return err
		}
		return s.AppendVault(ctx, tx)
	})
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Reverse appends the opposite of a previous transaction. Reversing a
// credit takes money out of the vault, so it is refused when the credit
// has already been spent.
func (l *DefaultLedger) Reverse(ctx context.Context, userID string, id TransactionID, reason string) (Transaction, error) {
	var tx Transaction
	err := l.atomically(ctx, func(s Store) error {
		orig, err := s.GetVaultTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if orig == nil {
			return ErrTransactionNotFound
		}

		tx = Transaction{
			ID:             TransactionID(uuid.NewString()),
			UserID:         userID,
			Type:           TxReversal,
			Delta:          orig.Delta.Neg(),
			Description:    fmt.Sprintf("Reversal: %s", reason),
			ReferenceID:    string(orig.ID),
			IdempotencyKey: "reversal:" + string(orig.ID),
			CreatedAt:      time.Now().UTC(),
		}
		if tx.Delta.IsNegative() {
			if err := ensureCovered(ctx, s, userID, tx.Delta.Neg()); err != nil {
				return err
			}
		}
		return appendChecked(ctx, s, tx)
	})
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (l *DefaultLedger) Summary(ctx context.Context, userID string) (Summary, error) {
	txs, err := l.Store.LoadVault(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(userID, txs), nil
}

func (l *DefaultLedger) History(ctx context.Context, userID string) ([]Transaction, error) {
	return l.Store.LoadVault(ctx, userID)
}

// atomically runs fn in a store transaction when the store supports one.
func (l *DefaultLedger) atomically(ctx context.Context, fn func(Store) error) error {
	if ts, ok := l.Store.(TxStore); ok {
		return ts.WithVaultTx(ctx, fn)
	}
	return fn(l.Store)
}

// ensureCovered fails with *InsufficientBalanceError when taking amount out
// of the vault would leave it negative.
func ensureCovered(ctx context.Context, s Store, userID string, amount decimal.Decimal) error {
	txs, err := s.LoadVault(ctx, userID)
	if err != nil {
		return err
	}
	available := Summarize(userID, txs).Balance
	if available.LessThan(amount) {
		return &InsufficientBalanceError{UserID: userID, Available: available, Requested: amount}
	}
	return nil
}

func appendChecked(ctx context.Context, s Store, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := s.VaultKeyExists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return s.AppendVault(ctx, tx)
}
