package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/comicvault/credits/pkg/app/errors"
	"github.com/comicvault/credits/pkg/catalog"
	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/pgutil"
	"github.com/comicvault/credits/pkg/unlock"
)

// MockCatalog is a mock implementation of CatalogStore backed by a map
type MockCatalog struct {
	chapters      map[int64]*catalog.Chapter
	PositionCalls int

	SetPricingFunc func(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error)
}

func newMockCatalog(chapters ...*catalog.Chapter) *MockCatalog {
	m := &MockCatalog{chapters: make(map[int64]*catalog.Chapter)}
	for _, ch := range chapters {
		m.chapters[ch.ID] = ch
	}
	return m
}

func (m *MockCatalog) GetChapter(_ context.Context, _ *pgutil.Scope, chapterID int64) (*catalog.Chapter, error) {
	ch, ok := m.chapters[chapterID]
	if !ok {
		return nil, catalog.ErrChapterNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *MockCatalog) ChapterPosition(_ context.Context, _ *pgutil.Scope, comicID int64, publishedAt time.Time) (int, error) {
	m.PositionCalls++
	position := 0
	for _, ch := range m.chapters {
		if ch.ComicID == comicID && !ch.PublishedAt.After(publishedAt) {
			position++
		}
	}
	return position, nil
}

func (m *MockCatalog) SetPricing(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error) {
	if m.SetPricingFunc != nil {
		return m.SetPricingFunc(ctx, chapterID, pricing)
	}
	ch, ok := m.chapters[chapterID]
	if !ok {
		return nil, catalog.ErrChapterNotFound
	}
	ch.UnlockCost = pricing.UnlockCost
	ch.IsFree = pricing.IsFree
	return ch, nil
}

type unlockKey struct {
	userID, chapterID int64
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mu      sync.Mutex
	unlocks map[unlockKey]int64
	Inserts int

	InsertFunc      func(ctx context.Context, scope *pgutil.Scope, userID, chapterID, creditsSpent int64) (*unlock.ChapterUnlock, error)
	ListLibraryFunc func(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error)
}

func newMockStore() *MockStore {
	return &MockStore{unlocks: make(map[unlockKey]int64)}
}

func (m *MockStore) Exists(_ context.Context, _ *pgutil.Scope, userID, chapterID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.unlocks[unlockKey{userID, chapterID}]
	return ok, nil
}

func (m *MockStore) Insert(ctx context.Context, scope *pgutil.Scope, userID, chapterID, creditsSpent int64) (*unlock.ChapterUnlock, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, scope, userID, chapterID, creditsSpent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := unlockKey{userID, chapterID}
	if _, ok := m.unlocks[key]; ok {
		return nil, sqlStateErr("23505")
	}
	m.Inserts++
	m.unlocks[key] = creditsSpent
	return &unlock.ChapterUnlock{ID: int64(len(m.unlocks)), UserID: userID, ChapterID: chapterID, CreditsSpent: creditsSpent}, nil
}

func (m *MockStore) ListLibrary(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error) {
	if m.ListLibraryFunc != nil {
		return m.ListLibraryFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}

// MockLedger applies debits only when the surrounding unit of work commits,
// so a failed unlock attempt leaves balances untouched.
type MockLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
	Locks    int
	Debits   int
}

func newMockLedger(balances map[int64]int64) *MockLedger {
	return &MockLedger{balances: balances}
}

func (m *MockLedger) LockBalance(_ context.Context, _ *pgutil.Scope, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locks++
	balance, ok := m.balances[userID]
	if !ok {
		return 0, apperrors.ResourceNotFoundError(ledger.ErrUserNotFound, "user not found")
	}
	return balance, nil
}

func (m *MockLedger) AppendDebit(_ context.Context, scope *pgutil.Scope, userID, amount int64, _ string) (int64, error) {
	if scope == nil {
		return 0, fmt.Errorf("debit outside unit of work")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	balance := m.balances[userID]
	if balance < amount {
		return 0, apperrors.PaymentRequiredError(ledger.ErrInsufficientFunds, "insufficient credits")
	}
	scope.AfterCommit(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Debits++
		m.balances[userID] -= amount
	})
	return balance - amount, nil
}

func (m *MockLedger) balance(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

// MockService is a mock implementation of Service
type MockService struct {
	UnlockFunc     func(ctx context.Context, userID, chapterID int64) (*unlock.Result, error)
	AccessFunc     func(ctx context.Context, userID, chapterID int64) (*unlock.Access, error)
	LibraryFunc    func(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error)
	SetPricingFunc func(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error)
}

func (m *MockService) Unlock(ctx context.Context, userID, chapterID int64) (*unlock.Result, error) {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, userID, chapterID)
	}
	return &unlock.Result{Outcome: unlock.OutcomeFree}, nil
}

func (m *MockService) Access(ctx context.Context, userID, chapterID int64) (*unlock.Access, error) {
	if m.AccessFunc != nil {
		return m.AccessFunc(ctx, userID, chapterID)
	}
	return &unlock.Access{ChapterID: chapterID, Readable: true, Reason: unlock.ReasonFreeFlag}, nil
}

func (m *MockService) Library(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error) {
	if m.LibraryFunc != nil {
		return m.LibraryFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (m *MockService) SetPricing(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error) {
	if m.SetPricingFunc != nil {
		return m.SetPricingFunc(ctx, chapterID, pricing)
	}
	return &catalog.Chapter{ID: chapterID, UnlockCost: pricing.UnlockCost, IsFree: pricing.IsFree}, nil
}

type sqlStateErr string

func (e sqlStateErr) Error() string    { return "pg error " + string(e) }
func (e sqlStateErr) SQLState() string { return string(e) }
