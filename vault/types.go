/*
Package vault provides the reward ledger ("vault") credited by check-ins.

PURPOSE:
  Every reward a user earns, and every amount they spend, is recorded as an
  immutable transaction. The balance is never stored; it is always derived
  by replaying the user's transactions, so it cannot drift from history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: An immutable ledger entry (credit, withdrawal, reversal)
  - Summary: Balance and totals computed from a transaction list
  - NewCredit / NewWithdrawal: Constructors that fix the sign convention

SIGN CONVENTION:
  Transaction.Delta is signed. Credits are positive, withdrawals negative,
  reversals carry the opposite sign of the transaction they undo.

PRECISION:
  Amounts use decimal.Decimal. Halved remedial rewards (e.g. 2.5) and
  repeated sums must stay exact.

SEE ALSO:
  - ledger.go: Ledger interface and default implementation
  - store.go: Persistence interface
  - checkin/service.go: Builds credits for successful check-ins
*/
package vault

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to a vault balance
// =============================================================================

type TransactionType string

const (
	TxCredit     TransactionType = "credit"     // Reward earned (check-in)
	TxWithdrawal TransactionType = "withdrawal" // Amount spent by the user
	TxReversal   TransactionType = "reversal"   // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	UserID         string
	Type           TransactionType
	Delta          decimal.Decimal
	Description    string
	ReferenceID    string // e.g. the check-in record id
	IdempotencyKey string
	CreatedAt      time.Time
}

// NewCredit builds a credit of amount for userID. The caller persists it,
// either through Ledger.Credit or atomically alongside its own write.
func NewCredit(userID string, amount decimal.Decimal, description, referenceID string) Transaction {
	tx := Transaction{
		ID:          TransactionID(uuid.NewString()),
		UserID:      userID,
		Type:        TxCredit,
		Delta:       amount.Abs(),
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	}
	if referenceID != "" {
		tx.IdempotencyKey = "credit:" + referenceID
	}
	return tx
}

// NewWithdrawal builds a withdrawal of amount for userID.
func NewWithdrawal(userID string, amount decimal.Decimal, description string) Transaction {
	return Transaction{
		ID:          TransactionID(uuid.NewString()),
		UserID:      userID,
		Type:        TxWithdrawal,
		Delta:       amount.Abs().Neg(),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// =============================================================================
// SUMMARY - Computed state of a vault
// =============================================================================

type Summary struct {
	UserID         string
	Balance        decimal.Decimal
	TotalCredited  decimal.Decimal
	TotalWithdrawn decimal.Decimal
	Transactions   int
}

// Summarize replays txs. Order does not matter.
func Summarize(userID string, txs []Transaction) Summary {
	s := Summary{
		UserID:         userID,
		Balance:        decimal.Zero,
		TotalCredited:  decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		Transactions:   len(txs),
	}
	for _, tx := range txs {
		s.Balance = s.Balance.Add(tx.Delta)
		switch tx.Type {
		case TxCredit:
			s.TotalCredited = s.TotalCredited.Add(tx.Delta)
		case TxWithdrawal:
			s.TotalWithdrawn = s.TotalWithdrawn.Add(tx.Delta.Neg())
		case TxReversal:
			// A reversed withdrawal reduces withdrawn, a reversed credit reduces credited.
			if tx.Delta.IsPositive() {
				s.TotalWithdrawn = s.TotalWithdrawn.Sub(tx.Delta)
			} else {
				s.TotalCredited = s.TotalCredited.Add(tx.Delta)
			}
		}
	}
	return s
}
