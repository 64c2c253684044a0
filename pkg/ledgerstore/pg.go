package ledgerstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/pgutil"
	"github.com/comicvault/credits/pkg/userstore"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the ledger store
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) idb(scope *pgutil.Scope) bun.IDB {
	if scope != nil {
		return scope.DB()
	}
	return s.db
}

func (s *pgStore) LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	var credits int64
	err := s.idb(scope).NewSelect().
		Model((*userstore.UserDao)(nil)).
		Column("credits").
		Where("id = ?", userID).
		For("UPDATE").
		Scan(ctx, &credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ledger.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to lock user balance: %w", err)
	}
	return credits, nil
}

func (s *pgStore) GetBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	var credits int64
	err := s.idb(scope).NewSelect().
		Model((*userstore.UserDao)(nil)).
		Column("credits").
		Where("id = ?", userID).
		Scan(ctx, &credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ledger.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get user balance: %w", err)
	}
	return credits, nil
}

func (s *pgStore) AddToBalance(ctx context.Context, scope *pgutil.Scope, userID, delta int64) (int64, error) {
	var credits int64
	err := s.idb(scope).NewUpdate().
		Model((*userstore.UserDao)(nil)).
		Set("credits = credits + ?", delta).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Returning("credits").
		Scan(ctx, &credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ledger.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to update user balance: %w", err)
	}
	return credits, nil
}

func (s *pgStore) SetBalance(ctx context.Context, scope *pgutil.Scope, userID, balance int64) error {
	res, err := s.idb(scope).NewUpdate().
		Model((*userstore.UserDao)(nil)).
		Set("credits = ?", balance).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set user balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrUserNotFound
	}
	return nil
}

func (s *pgStore) InsertTransaction(ctx context.Context, scope *pgutil.Scope, tx *ledger.Transaction) (bool, error) {
	dao := toTransactionDao(tx)

	query := s.idb(scope).NewInsert().
		Model(dao).
		ExcludeColumn("id", "created_at").
		Returning("id, created_at")
	if dao.TxHash != nil {
		query = query.On("CONFLICT (tx_hash) DO NOTHING")
	}

	// ON CONFLICT DO NOTHING returns no row, which Scan reports as sql.ErrNoRows.
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	tx.ID = dao.ID
	tx.CreatedAt = dao.CreatedAt
	return true, nil
}

func (s *pgStore) GetTransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error) {
	dao := new(TransactionDao)
	err := s.idb(scope).NewSelect().
		Model(dao).
		Where("tx_hash = ?", strings.ToLower(txHash)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry by hash: %w", err)
	}
	return toTransaction(dao), nil
}

func (s *pgStore) ListTransactions(
	ctx context.Context,
	scope *pgutil.Scope,
	userID int64,
	limit, offset int,
) ([]*ledger.Transaction, error) {
	var daos []*TransactionDao
	err := s.idb(scope).NewSelect().
		Model(&daos).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	txs := make([]*ledger.Transaction, len(daos))
	for i, dao := range daos {
		txs[i] = toTransaction(dao)
	}
	return txs, nil
}

func (s *pgStore) SumConfirmed(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	var sum int64
	err := s.idb(scope).NewSelect().
		Model((*TransactionDao)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Where("status = ?", string(ledger.StatusConfirmed)).
		Scan(ctx, &sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

func (s *pgStore) Aggregates(ctx context.Context, scope *pgutil.Scope) (*Aggregates, error) {
	db := s.idb(scope)

	var row statsRow
	err := db.NewSelect().
		Model((*TransactionDao)(nil)).
		ColumnExpr("COALESCE(SUM(amount) FILTER (WHERE type = ?), 0) AS total_purchased", string(ledger.TypePurchase)).
		ColumnExpr("COALESCE(-SUM(amount) FILTER (WHERE type = ?), 0) AS total_spent", string(ledger.TypeSpend)).
		ColumnExpr("COALESCE(SUM(amount) FILTER (WHERE type = ?), 0) AS total_adjusted", string(ledger.TypeAdminAdjustment)).
		ColumnExpr("COUNT(*) FILTER (WHERE type = ?) AS purchases", string(ledger.TypePurchase)).
		ColumnExpr("COUNT(*) FILTER (WHERE type = ?) AS unlocks", string(ledger.TypeSpend)).
		ColumnExpr("COALESCE(SUM(amount_paid_wei), 0)::text AS total_paid_wei").
		Where("status = ?", string(ledger.StatusConfirmed)).
		Scan(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ledger: %w", err)
	}

	var outstanding int64
	err = db.NewSelect().
		Model((*userstore.UserDao)(nil)).
		ColumnExpr("COALESCE(SUM(credits), 0)").
		Scan(ctx, &outstanding)
	if err != nil {
		return nil, fmt.Errorf("failed to sum user balances: %w", err)
	}

	return &Aggregates{
		TotalPurchased:   row.TotalPurchased,
		TotalSpent:       row.TotalSpent,
		TotalAdjusted:    row.TotalAdjusted,
		Purchases:        row.Purchases,
		Unlocks:          row.Unlocks,
		OutstandingTotal: outstanding,
		TotalPaidWei:     row.TotalPaidWei,
	}, nil
}
