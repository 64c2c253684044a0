package service

import (
	"context"
	"sync"

	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/ledgerstore"
	"github.com/comicvault/credits/pkg/pgutil"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	LockBalanceFunc          func(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	GetBalanceFunc           func(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	AddToBalanceFunc         func(ctx context.Context, scope *pgutil.Scope, userID, delta int64) (int64, error)
	SetBalanceFunc           func(ctx context.Context, scope *pgutil.Scope, userID, balance int64) error
	InsertTransactionFunc    func(ctx context.Context, scope *pgutil.Scope, tx *ledger.Transaction) (bool, error)
	GetTransactionByHashFunc func(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error)
	ListTransactionsFunc     func(ctx context.Context, scope *pgutil.Scope, userID int64, limit, offset int) ([]*ledger.Transaction, error)
	SumConfirmedFunc         func(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	AggregatesFunc           func(ctx context.Context, scope *pgutil.Scope) (*ledgerstore.Aggregates, error)
}

func (m *MockStore) LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	if m.LockBalanceFunc != nil {
		return m.LockBalanceFunc(ctx, scope, userID)
	}
	return 0, nil
}

func (m *MockStore) GetBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, scope, userID)
	}
	return 0, nil
}

func (m *MockStore) AddToBalance(ctx context.Context, scope *pgutil.Scope, userID, delta int64) (int64, error) {
	if m.AddToBalanceFunc != nil {
		return m.AddToBalanceFunc(ctx, scope, userID, delta)
	}
	return 0, nil
}

func (m *MockStore) SetBalance(ctx context.Context, scope *pgutil.Scope, userID, balance int64) error {
	if m.SetBalanceFunc != nil {
		return m.SetBalanceFunc(ctx, scope, userID, balance)
	}
	return nil
}

func (m *MockStore) InsertTransaction(ctx context.Context, scope *pgutil.Scope, tx *ledger.Transaction) (bool, error) {
	if m.InsertTransactionFunc != nil {
		return m.InsertTransactionFunc(ctx, scope, tx)
	}
	return true, nil
}

func (m *MockStore) GetTransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error) {
	if m.GetTransactionByHashFunc != nil {
		return m.GetTransactionByHashFunc(ctx, scope, txHash)
	}
	return nil, ledger.ErrTransactionNotFound
}

func (m *MockStore) ListTransactions(
	ctx context.Context,
	scope *pgutil.Scope,
	userID int64,
	limit, offset int,
) ([]*ledger.Transaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, scope, userID, limit, offset)
	}
	return nil, nil
}

func (m *MockStore) SumConfirmed(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	if m.SumConfirmedFunc != nil {
		return m.SumConfirmedFunc(ctx, scope, userID)
	}
	return 0, nil
}

func (m *MockStore) Aggregates(ctx context.Context, scope *pgutil.Scope) (*ledgerstore.Aggregates, error) {
	if m.AggregatesFunc != nil {
		return m.AggregatesFunc(ctx, scope)
	}
	return &ledgerstore.Aggregates{TotalPaidWei: "0"}, nil
}

// memLedger backs a MockStore with maps so sequences of operations can be
// checked end to end. Writes made inside a scope that later fails are not
// rolled back; tests only use it with operations that fail before writing.
type memLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
	entries  []*ledger.Transaction
}

func newMemLedger(users ...int64) *memLedger {
	m := &memLedger{balances: make(map[int64]int64)}
	for _, id := range users {
		m.balances[id] = 0
	}
	return m
}

func (m *memLedger) store() *MockStore {
	return &MockStore{
		LockBalanceFunc: func(_ context.Context, _ *pgutil.Scope, userID int64) (int64, error) {
			return m.balance(userID)
		},
		GetBalanceFunc: func(_ context.Context, _ *pgutil.Scope, userID int64) (int64, error) {
			return m.balance(userID)
		},
		AddToBalanceFunc: func(_ context.Context, _ *pgutil.Scope, userID, delta int64) (int64, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.balances[userID] += delta
			return m.balances[userID], nil
		},
		SetBalanceFunc: func(_ context.Context, _ *pgutil.Scope, userID, balance int64) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.balances[userID] = balance
			return nil
		},
		InsertTransactionFunc: func(_ context.Context, _ *pgutil.Scope, tx *ledger.Transaction) (bool, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if tx.TxHash != nil {
				for _, e := range m.entries {
					if e.TxHash != nil && *e.TxHash == *tx.TxHash {
						return false, nil
					}
				}
			}
			stored := *tx
			stored.ID = int64(len(m.entries) + 1)
			m.entries = append(m.entries, &stored)
			tx.ID = stored.ID
			return true, nil
		},
		GetTransactionByHashFunc: func(_ context.Context, _ *pgutil.Scope, txHash string) (*ledger.Transaction, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			for _, e := range m.entries {
				if e.TxHash != nil && *e.TxHash == txHash {
					return e, nil
				}
			}
			return nil, ledger.ErrTransactionNotFound
		},
		SumConfirmedFunc: func(_ context.Context, _ *pgutil.Scope, userID int64) (int64, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			var sum int64
			for _, e := range m.entries {
				if e.UserID == userID && e.Status == ledger.StatusConfirmed {
					sum += e.Amount
				}
			}
			return sum, nil
		},
	}
}

func (m *memLedger) balance(userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return 0, ledger.ErrUserNotFound
	}
	return b, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// MockStatsCache is a mock implementation of StatsCache
type MockStatsCache struct {
	values      map[string]*ledger.Stats
	Invalidated int
}

func newMockStatsCache() *MockStatsCache {
	return &MockStatsCache{values: make(map[string]*ledger.Stats)}
}

func (m *MockStatsCache) Get(key string) (*ledger.Stats, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *MockStatsCache) Set(key string, value *ledger.Stats) {
	m.values[key] = value
}

func (m *MockStatsCache) Invalidate(key string) {
	m.Invalidated++
	delete(m.values, key)
}

// MockService is a mock implementation of Service
type MockService struct {
	AppendCreditFunc          func(ctx context.Context, scope *pgutil.Scope, req *ledger.CreditRequest) (*ledger.CreditResult, error)
	AppendDebitFunc           func(ctx context.Context, scope *pgutil.Scope, userID, amount int64, description string) (int64, error)
	AppendAdminAdjustmentFunc func(ctx context.Context, scope *pgutil.Scope, req *ledger.AdjustmentRequest) (int64, error)
	ReconcileFunc             func(ctx context.Context, userID int64) (*ledger.ReconcileResult, error)
	LockBalanceFunc           func(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	BalanceFunc               func(ctx context.Context, userID int64) (int64, error)
	HistoryFunc               func(ctx context.Context, userID int64, limit, offset int) ([]*ledger.Transaction, error)
	TransactionByHashFunc     func(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error)
	StatsFunc                 func(ctx context.Context) (*ledger.Stats, error)
}

func (m *MockService) AppendCredit(ctx context.Context, scope *pgutil.Scope, req *ledger.CreditRequest) (*ledger.CreditResult, error) {
	if m.AppendCreditFunc != nil {
		return m.AppendCreditFunc(ctx, scope, req)
	}
	return nil, nil
}

func (m *MockService) AppendDebit(ctx context.Context, scope *pgutil.Scope, userID, amount int64, description string) (int64, error) {
	if m.AppendDebitFunc != nil {
		return m.AppendDebitFunc(ctx, scope, userID, amount, description)
	}
	return 0, nil
}

func (m *MockService) AppendAdminAdjustment(ctx context.Context, scope *pgutil.Scope, req *ledger.AdjustmentRequest) (int64, error) {
	if m.AppendAdminAdjustmentFunc != nil {
		return m.AppendAdminAdjustmentFunc(ctx, scope, req)
	}
	return 0, nil
}

func (m *MockService) Reconcile(ctx context.Context, userID int64) (*ledger.ReconcileResult, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, userID)
	}
	return &ledger.ReconcileResult{UserID: userID}, nil
}

func (m *MockService) LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	if m.LockBalanceFunc != nil {
		return m.LockBalanceFunc(ctx, scope, userID)
	}
	return 0, nil
}

func (m *MockService) Balance(ctx context.Context, userID int64) (int64, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockService) History(ctx context.Context, userID int64, limit, offset int) ([]*ledger.Transaction, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (m *MockService) TransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error) {
	if m.TransactionByHashFunc != nil {
		return m.TransactionByHashFunc(ctx, scope, txHash)
	}
	return nil, ledger.ErrTransactionNotFound
}

func (m *MockService) Stats(ctx context.Context) (*ledger.Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &ledger.Stats{}, nil
}
