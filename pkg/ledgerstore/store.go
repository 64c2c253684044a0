// Package ledgerstore persists ledger entries and is the only writer of the
// users.credits balance cache.
package ledgerstore

import (
	"context"

	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/pgutil"
)

// Aggregates are ledger-wide totals over CONFIRMED entries.
type Aggregates struct {
	TotalPurchased   int64
	TotalSpent       int64
	TotalAdjusted    int64
	Purchases        int64
	Unlocks          int64
	OutstandingTotal int64
	TotalPaidWei     string
}

// Store is the persistence contract of the ledger.
//
// Every method takes an optional scope. A nil scope runs the statement on the
// store's own connection pool; a non-nil scope runs it inside that transaction.
// LockBalance, AddToBalance and SetBalance are only meaningful inside a scope.
type Store interface {
	// LockBalance row-locks the user and returns the cached balance.
	LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	// GetBalance reads the cached balance without locking.
	GetBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	// AddToBalance applies delta to the cached balance and returns the result.
	AddToBalance(ctx context.Context, scope *pgutil.Scope, userID, delta int64) (int64, error)
	// SetBalance overwrites the cached balance.
	SetBalance(ctx context.Context, scope *pgutil.Scope, userID, balance int64) error
	// InsertTransaction appends tx and fills its ID and CreatedAt. It reports
	// false without error when tx.TxHash is already recorded.
	InsertTransaction(ctx context.Context, scope *pgutil.Scope, tx *ledger.Transaction) (bool, error)
	// GetTransactionByHash returns ledger.ErrTransactionNotFound when no entry carries txHash.
	GetTransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error)
	ListTransactions(ctx context.Context, scope *pgutil.Scope, userID int64, limit, offset int) ([]*ledger.Transaction, error)
	// SumConfirmed returns the signed sum of the user's CONFIRMED entries.
	SumConfirmed(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	Aggregates(ctx context.Context, scope *pgutil.Scope) (*Aggregates, error)
}
