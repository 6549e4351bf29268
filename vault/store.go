package vault

import "context"

// =============================================================================
// STORE - Interface for vault transaction persistence (append-only)
// =============================================================================

// Store handles persistence of vault transactions.
// Store is APPEND-ONLY. Corrections are made via reversal transactions.
type Store interface {
	// AppendVault persists a transaction. Returns ErrDuplicateIdempotencyKey
	// if the key already exists.
	AppendVault(ctx context.Context, tx Transaction) error

	// LoadVault returns all transactions for a user, oldest first.
	LoadVault(ctx context.Context, userID string) ([]Transaction, error)

	// GetVaultTransaction returns one transaction, or nil if absent.
	GetVaultTransaction(ctx context.Context, userID string, id TransactionID) (*Transaction, error)

	// VaultKeyExists checks if an idempotency key already exists.
	VaultKeyExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support. Withdrawals use it so the
// balance check and the append happen atomically.
type TxStore interface {
	Store

	// WithVaultTx executes fn within a transaction. If fn returns an
	// error, every write made through the Store handed to fn is discarded.
	WithVaultTx(ctx context.Context, fn func(Store) error) error
}
