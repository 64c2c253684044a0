package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/comicvault/credits/pkg/app/errors"
	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/ledgerstore"
	"github.com/comicvault/credits/pkg/pgutil"
)

const testUserID int64 = 1

type sqlStateErr string

func (e sqlStateErr) Error() string    { return "sqlstate " + string(e) }
func (e sqlStateErr) SQLState() string { return string(e) }

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		HistoryDefaultLimit: 20,
		HistoryMaxLimit:     100,
		MaxAdjustment:       10000,
		StatsTTL:            time.Minute,
	}
}

func newTestService(store Store, stats StatsCache) (*ledgerService, *pgutil.InMemoryTransactor) {
	tx := &pgutil.InMemoryTransactor{}
	svc := NewService(tx, store, stats, testLedgerConfig(), zap.NewNop()).(*ledgerService)
	return svc, tx
}

func TestLedgerService_AppendCredit_IsIdempotentOnTxHash(t *testing.T) {
	ctx := context.Background()
	mem := newMemLedger(testUserID)
	svc, _ := newTestService(mem.store(), nil)

	req := &ledger.CreditRequest{
		UserID:        testUserID,
		Amount:        100,
		Description:   "Purchased 100 credits",
		TxHash:        "0xABCDEF",
		ChainID:       8453,
		AmountPaidWei: "10000000000000000",
	}

	first, err := svc.AppendCredit(ctx, nil, req)
	require.NoError(t, err)
	require.False(t, first.Replayed)
	require.Equal(t, "0xabcdef", *first.Transaction.TxHash, "hash is stored lowercase")

	for i := 0; i < 3; i++ {
		again, err := svc.AppendCredit(ctx, nil, req)
		require.NoError(t, err)
		require.True(t, again.Replayed)
		require.Equal(t, first.Transaction.ID, again.Transaction.ID)
	}

	balance, err := svc.Balance(ctx, testUserID)
	require.NoError(t, err)
	require.EqualValues(t, 100, balance)
	require.Equal(t, 1, mem.count())
}

func TestLedgerService_AppendCredit_HashOwnedByOtherUser(t *testing.T) {
	ctx := context.Background()
	mem := newMemLedger(1, 2)
	svc, _ := newTestService(mem.store(), nil)

	_, err := svc.AppendCredit(ctx, nil, &ledger.CreditRequest{UserID: 1, Amount: 10, TxHash: "0xaa"})
	require.NoError(t, err)

	_, err = svc.AppendCredit(ctx, nil, &ledger.CreditRequest{UserID: 2, Amount: 10, TxHash: "0xaa"})
	require.ErrorIs(t, err, ledger.ErrTransactionHashClaimedByOtherUser)
	require.True(t, apperrors.Is(err, apperrors.CategoryDataConflict))

	balance, err := svc.Balance(ctx, 2)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestLedgerService_AppendCredit_Validation(t *testing.T) {
	svc, tx := newTestService(&MockStore{}, nil)

	for _, amount := range []int64{0, -5} {
		_, err := svc.AppendCredit(context.Background(), nil, &ledger.CreditRequest{UserID: testUserID, Amount: amount})
		require.ErrorIs(t, err, ledger.ErrInvalidAmount)
		require.True(t, apperrors.Is(err, apperrors.CategoryDataError))
	}
	require.Zero(t, tx.Runs, "invalid requests must not open a transaction")
}

func TestLedgerService_AppendCredit_UnknownUser(t *testing.T) {
	mem := newMemLedger()
	svc, _ := newTestService(mem.store(), nil)

	_, err := svc.AppendCredit(context.Background(), nil, &ledger.CreditRequest{UserID: 99, Amount: 5})
	require.ErrorIs(t, err, ledger.ErrUserNotFound)
	require.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
	require.Zero(t, mem.count())
}

func TestLedgerService_AppendDebit_NeverOverdraws(t *testing.T) {
	ctx := context.Background()
	mem := newMemLedger(testUserID)
	svc, _ := newTestService(mem.store(), nil)

	_, err := svc.AppendCredit(ctx, nil, &ledger.CreditRequest{UserID: testUserID, Amount: 30})
	require.NoError(t, err)

	steps := []struct {
		amount  int64
		wantErr bool
		balance int64
	}{
		{amount: 10, balance: 20},
		{amount: 25, wantErr: true, balance: 20},
		{amount: 20, balance: 0},
		{amount: 1, wantErr: true, balance: 0},
	}

	for _, step := range steps {
		got, err := svc.AppendDebit(ctx, nil, testUserID, step.amount, "Unlocked chapter")
		if step.wantErr {
			require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
			require.True(t, apperrors.Is(err, apperrors.CategoryPaymentRequired))
		} else {
			require.NoError(t, err)
			require.Equal(t, step.balance, got)
		}

		balance, err := svc.Balance(ctx, testUserID)
		require.NoError(t, err)
		require.Equal(t, step.balance, balance)
		require.GreaterOrEqual(t, balance, int64(0))
	}

	// one credit and two successful debits
	require.Equal(t, 3, mem.count())
	sum, err := mem.store().SumConfirmed(ctx, nil, testUserID)
	require.NoError(t, err)
	require.Zero(t, sum)
}

func TestLedgerService_AppendDebit_WritesNegatedSpend(t *testing.T) {
	var inserted *ledger.Transaction
	store := &MockStore{
		LockBalanceFunc: func(context.Context, *pgutil.Scope, int64) (int64, error) { return 50, nil },
		InsertTransactionFunc: func(_ context.Context, _ *pgutil.Scope, tx *ledger.Transaction) (bool, error) {
			inserted = tx
			return true, nil
		},
		AddToBalanceFunc: func(_ context.Context, _ *pgutil.Scope, _, delta int64) (int64, error) {
			return 50 + delta, nil
		},
	}
	svc, _ := newTestService(store, nil)

	balance, err := svc.AppendDebit(context.Background(), nil, testUserID, 15, "Unlocked chapter 3")
	require.NoError(t, err)
	require.EqualValues(t, 35, balance)
	require.NotNil(t, inserted)
	require.Equal(t, ledger.TypeSpend, inserted.Type)
	require.EqualValues(t, -15, inserted.Amount)
	require.Equal(t, ledger.StatusConfirmed, inserted.Status)
	require.Nil(t, inserted.TxHash)
}

func TestLedgerService_AppendAdminAdjustment_Bounds(t *testing.T) {
	ctx := context.Background()
	mem := newMemLedger(testUserID)
	svc, _ := newTestService(mem.store(), nil)

	balance, err := svc.AppendAdminAdjustment(ctx, nil, &ledger.AdjustmentRequest{
		UserID: testUserID, Amount: 50, Reason: "goodwill", ActorID: 9,
	})
	require.NoError(t, err)
	require.EqualValues(t, 50, balance)

	_, err = svc.AppendAdminAdjustment(ctx, nil, &ledger.AdjustmentRequest{
		UserID: testUserID, Amount: -60, Reason: "chargeback", ActorID: 9,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientCreditsForAdjustment)
	require.True(t, apperrors.Is(err, apperrors.CategoryUnprocessable))

	balance, err = svc.Balance(ctx, testUserID)
	require.NoError(t, err)
	require.EqualValues(t, 50, balance, "rejected adjustment leaves the balance unchanged")

	balance, err = svc.AppendAdminAdjustment(ctx, nil, &ledger.AdjustmentRequest{
		UserID: testUserID, Amount: -50, Reason: "chargeback", ActorID: 9,
	})
	require.NoError(t, err)
	require.Zero(t, balance)

	for _, amount := range []int64{10001, -10001, math.MaxInt64, math.MinInt64} {
		_, err = svc.AppendAdminAdjustment(ctx, nil, &ledger.AdjustmentRequest{
			UserID: testUserID, Amount: amount, Reason: "too much", ActorID: 9,
		})
		require.ErrorIs(t, err, ledger.ErrAdjustmentOutOfBounds)
		require.True(t, apperrors.Is(err, apperrors.CategoryDataError))
	}
	_, err = svc.AppendAdminAdjustment(ctx, nil, &ledger.AdjustmentRequest{UserID: testUserID, Amount: 0, Reason: "x"})
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = svc.AppendAdminAdjustment(ctx, nil, &ledger.AdjustmentRequest{UserID: testUserID, Amount: 5, Reason: "   "})
	require.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	require.Equal(t, 2, mem.count())
	for _, e := range mem.entries {
		require.Equal(t, ledger.TypeAdminAdjustment, e.Type)
		require.NotNil(t, e.ActorUserID)
		require.EqualValues(t, 9, *e.ActorUserID)
	}
}

func TestLedgerService_Reconcile_RepairsDriftIdempotently(t *testing.T) {
	ctx := context.Background()
	mem := newMemLedger(testUserID)
	svc, _ := newTestService(mem.store(), nil)

	_, err := svc.AppendCredit(ctx, nil, &ledger.CreditRequest{UserID: testUserID, Amount: 40})
	require.NoError(t, err)
	_, err = svc.AppendDebit(ctx, nil, testUserID, 15, "spend")
	require.NoError(t, err)

	// simulate a cache written outside the ledger
	mem.balances[testUserID] = 999

	first, err := svc.Reconcile(ctx, testUserID)
	require.NoError(t, err)
	require.EqualValues(t, 25, first.Balance)
	require.EqualValues(t, 999, first.Previous)
	require.EqualValues(t, 25-999, first.Drift)

	second, err := svc.Reconcile(ctx, testUserID)
	require.NoError(t, err)
	require.EqualValues(t, 25, second.Balance)
	require.Zero(t, second.Drift)

	balance, err := svc.Balance(ctx, testUserID)
	require.NoError(t, err)
	require.EqualValues(t, 25, balance)
}

func TestLedgerService_Reconcile_SkipsWriteWithoutDrift(t *testing.T) {
	store := &MockStore{
		LockBalanceFunc:  func(context.Context, *pgutil.Scope, int64) (int64, error) { return 10, nil },
		SumConfirmedFunc: func(context.Context, *pgutil.Scope, int64) (int64, error) { return 10, nil },
		SetBalanceFunc: func(context.Context, *pgutil.Scope, int64, int64) error {
			t.Fatal("SetBalance must not be called when the cache is in sync")
			return nil
		},
	}
	svc, _ := newTestService(store, nil)

	res, err := svc.Reconcile(context.Background(), testUserID)
	require.NoError(t, err)
	require.Zero(t, res.Drift)
}

func TestLedgerService_History_ClampsPaging(t *testing.T) {
	var gotLimit, gotOffset int
	store := &MockStore{
		ListTransactionsFunc: func(_ context.Context, _ *pgutil.Scope, _ int64, limit, offset int) ([]*ledger.Transaction, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	}
	svc, _ := newTestService(store, nil)

	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 20, 0},
		{-3, -1, 20, 0},
		{50, 10, 50, 10},
		{1000, 5, 100, 5},
		{1, 0, 1, 0},
	}
	for _, tt := range tests {
		_, err := svc.History(context.Background(), testUserID, tt.limit, tt.offset)
		require.NoError(t, err)
		require.Equal(t, tt.wantLimit, gotLimit)
		require.Equal(t, tt.wantOffset, gotOffset)
	}
}

func TestLedgerService_RetriesOnceOnWriteConflict(t *testing.T) {
	calls := 0
	store := &MockStore{
		LockBalanceFunc: func(context.Context, *pgutil.Scope, int64) (int64, error) {
			calls++
			if calls == 1 {
				return 0, sqlStateErr("40P01")
			}
			return 100, nil
		},
		AddToBalanceFunc: func(_ context.Context, _ *pgutil.Scope, _, delta int64) (int64, error) {
			return 100 + delta, nil
		},
	}
	svc, tx := newTestService(store, nil)

	balance, err := svc.AppendDebit(context.Background(), nil, testUserID, 10, "spend")
	require.NoError(t, err)
	require.EqualValues(t, 90, balance)
	require.Equal(t, 2, tx.Runs)
}

func TestLedgerService_GivesUpAfterSecondConflict(t *testing.T) {
	store := &MockStore{
		LockBalanceFunc: func(context.Context, *pgutil.Scope, int64) (int64, error) {
			return 0, sqlStateErr("40001")
		},
	}
	svc, tx := newTestService(store, nil)

	_, err := svc.AppendDebit(context.Background(), nil, testUserID, 10, "spend")
	require.Error(t, err)
	require.True(t, apperrors.IsInternalError(err), "a persistent conflict is not a funds failure")
	require.False(t, errors.Is(err, ledger.ErrInsufficientFunds))
	require.Equal(t, 2, tx.Runs)
}

func TestLedgerService_JoinedScopeIsNotRetried(t *testing.T) {
	calls := 0
	store := &MockStore{
		LockBalanceFunc: func(context.Context, *pgutil.Scope, int64) (int64, error) {
			calls++
			return 0, sqlStateErr("40001")
		},
	}
	svc, tx := newTestService(store, nil)

	err := tx.Run(context.Background(), nil, func(ctx context.Context, scope *pgutil.Scope) error {
		_, err := svc.AppendDebit(ctx, scope, testUserID, 10, "spend")
		return err
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, tx.Runs)
}

func TestLedgerService_Stats_CachedAndInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	aggregateCalls := 0
	mem := newMemLedger(testUserID)
	store := mem.store()
	store.AggregatesFunc = func(context.Context, *pgutil.Scope) (*ledgerstore.Aggregates, error) {
		aggregateCalls++
		return &ledgerstore.Aggregates{
			TotalPurchased: 100,
			Purchases:      1,
			TotalPaidWei:   "10000000000000000",
		}, nil
	}
	cache := newMockStatsCache()
	svc, _ := newTestService(store, cache)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, "0.01", stats.TotalPaidEth)
	require.EqualValues(t, 100, stats.TotalPurchased)

	_, err = svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, aggregateCalls, "second read is served from cache")

	_, err = svc.AppendCredit(ctx, nil, &ledger.CreditRequest{UserID: testUserID, Amount: 5})
	require.NoError(t, err)
	require.Equal(t, 1, cache.Invalidated)

	_, err = svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, aggregateCalls, "write invalidates the cached stats")
}

func TestLedgerService_FailedWriteKeepsStatsCache(t *testing.T) {
	mem := newMemLedger(testUserID)
	cache := newMockStatsCache()
	svc, _ := newTestService(mem.store(), cache)

	_, err := svc.AppendDebit(context.Background(), nil, testUserID, 5, "spend")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.Zero(t, cache.Invalidated, "after-commit hooks must not run for a failed write")
}
