package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/comicvault/credits/internal/metrics"
	apperrors "github.com/comicvault/credits/pkg/app/errors"
	"github.com/comicvault/credits/pkg/catalog"
	"github.com/comicvault/credits/pkg/pgutil"
	"github.com/comicvault/credits/pkg/unlock"
)

const (
	defaultLibraryLimit = 20
	maxLibraryLimit     = 100
)

// CatalogStore is the catalog access the unlock engine needs.
type CatalogStore interface {
	GetChapter(ctx context.Context, scope *pgutil.Scope, chapterID int64) (*catalog.Chapter, error)
	ChapterPosition(ctx context.Context, scope *pgutil.Scope, comicID int64, publishedAt time.Time) (int, error)
	SetPricing(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error)
}

// Store is the narrow data-access interface for chapter unlocks.
type Store interface {
	Exists(ctx context.Context, scope *pgutil.Scope, userID, chapterID int64) (bool, error)
	Insert(ctx context.Context, scope *pgutil.Scope, userID, chapterID, creditsSpent int64) (*unlock.ChapterUnlock, error)
	ListLibrary(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error)
}

// Ledger is the part of the ledger service the engine debits through.
type Ledger interface {
	LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	AppendDebit(ctx context.Context, scope *pgutil.Scope, userID, amount int64, description string) (int64, error)
}

// Service unlocks chapters and answers readability questions.
type Service interface {
	// Unlock grants the user access to a chapter, debiting its cost at most once.
	Unlock(ctx context.Context, userID, chapterID int64) (*unlock.Result, error)
	// Access reports whether the user may read a chapter without changing anything.
	Access(ctx context.Context, userID, chapterID int64) (*unlock.Access, error)
	// Library lists the chapters the user has paid for, newest first.
	Library(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error)
	// SetPricing changes a chapter's unlock cost and free flag.
	SetPricing(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error)
}

type unlockService struct {
	tx      pgutil.Transactor
	catalog CatalogStore
	store   Store
	ledger  Ledger
	logger  *zap.Logger
}

// NewService creates a new unlock engine
func NewService(
	tx pgutil.Transactor,
	catalogStore CatalogStore,
	store Store,
	ledger Ledger,
	logger *zap.Logger,
) Service {
	return &unlockService{
		tx:      tx,
		catalog: catalogStore,
		store:   store,
		ledger:  ledger,
		logger:  logger,
	}
}

// Unlock runs the whole check-debit-record sequence in one transaction.
// A unique violation on the unlock row means a concurrent request won; the
// single retry then observes that row and reports already_unlocked.
func (s *unlockService) Unlock(ctx context.Context, userID, chapterID int64) (*unlock.Result, error) {
	var res *unlock.Result
	attempt := func(ctx context.Context, scope *pgutil.Scope) error {
		r, err := s.unlockInScope(ctx, scope, userID, chapterID)
		if err != nil {
			return err
		}
		res = r
		return nil
	}

	err := s.tx.Run(ctx, nil, attempt)
	if err != nil && (pgutil.IsUniqueViolation(err) || pgutil.IsRetryable(err)) {
		metrics.LedgerRetries.WithLabelValues("unlock").Inc()
		s.logger.Info("retrying chapter unlock after write conflict",
			zap.Int64("user_id", userID),
			zap.Int64("chapter_id", chapterID),
			zap.Error(err),
		)
		err = s.tx.Run(ctx, nil, attempt)
	}
	if err != nil {
		if errors.Is(err, unlock.ErrInsufficientCredits) {
			metrics.UnlocksTotal.WithLabelValues("insufficient_credits").Inc()
		}
		return nil, mapError(err)
	}

	metrics.UnlocksTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func (s *unlockService) unlockInScope(
	ctx context.Context,
	scope *pgutil.Scope,
	userID, chapterID int64,
) (*unlock.Result, error) {
	ch, err := s.catalog.GetChapter(ctx, scope, chapterID)
	if err != nil {
		return nil, err
	}

	reason, err := s.freeReason(ctx, scope, ch)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &unlock.Result{Outcome: unlock.OutcomeFree}, nil
	}

	// Every paid path below runs under the user row lock.
	balance, err := s.ledger.LockBalance(ctx, scope, userID)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.store.Exists(ctx, scope, userID, chapterID)
	if err != nil {
		return nil, err
	}
	if unlocked {
		return &unlock.Result{Outcome: unlock.OutcomeAlreadyUnlocked}, nil
	}

	if balance < ch.UnlockCost {
		return nil, unlock.ErrInsufficientCredits
	}

	newBalance, err := s.ledger.AppendDebit(ctx, scope, userID, ch.UnlockCost, fmt.Sprintf("Unlocked chapter %q", ch.Title))
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Insert(ctx, scope, userID, chapterID, ch.UnlockCost); err != nil {
		return nil, err
	}

	return &unlock.Result{
		Outcome:      unlock.OutcomePaid,
		CreditsSpent: ch.UnlockCost,
		Balance:      &newBalance,
	}, nil
}

func (s *unlockService) Access(ctx context.Context, userID, chapterID int64) (*unlock.Access, error) {
	ch, err := s.catalog.GetChapter(ctx, nil, chapterID)
	if err != nil {
		return nil, mapError(err)
	}

	reason, err := s.eligibility(ctx, nil, userID, ch)
	if err != nil {
		return nil, mapError(err)
	}

	return &unlock.Access{
		ChapterID:  ch.ID,
		Readable:   reason.Readable(),
		Reason:     reason,
		UnlockCost: ch.UnlockCost,
	}, nil
}

func (s *unlockService) Library(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error) {
	if limit <= 0 {
		limit = defaultLibraryLimit
	}
	if limit > maxLibraryLimit {
		limit = maxLibraryLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.store.ListLibrary(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

func (s *unlockService) SetPricing(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error) {
	if pricing.UnlockCost < 0 {
		return nil, apperrors.BadRequestError(nil, "unlock_cost must not be negative")
	}
	ch, err := s.catalog.SetPricing(ctx, chapterID, pricing)
	if err != nil {
		return nil, mapError(err)
	}
	return ch, nil
}

// eligibility decides readability. Unlock applies the same two steps with the
// user row lock taken in between.
func (s *unlockService) eligibility(
	ctx context.Context,
	scope *pgutil.Scope,
	userID int64,
	ch *catalog.Chapter,
) (unlock.Reason, error) {
	reason, err := s.freeReason(ctx, scope, ch)
	if err != nil || reason != "" {
		return reason, err
	}

	unlocked, err := s.store.Exists(ctx, scope, userID, ch.ID)
	if err != nil {
		return "", err
	}
	if unlocked {
		return unlock.ReasonUnlocked, nil
	}
	return unlock.ReasonLocked, nil
}

// freeReason returns a non-empty reason when ch is readable by everyone.
// Position is always recomputed from publish times.
func (s *unlockService) freeReason(ctx context.Context, scope *pgutil.Scope, ch *catalog.Chapter) (unlock.Reason, error) {
	if ch.IsFree || ch.UnlockCost == 0 {
		return unlock.ReasonFreeFlag, nil
	}
	if ch.FreeChapters <= 0 {
		return "", nil
	}

	position, err := s.catalog.ChapterPosition(ctx, scope, ch.ComicID, ch.PublishedAt)
	if err != nil {
		return "", err
	}
	if position <= ch.FreeChapters {
		return unlock.ReasonFreePosition, nil
	}
	return "", nil
}

func mapError(err error) error {
	var svcErr *apperrors.ServiceError
	switch {
	case errors.As(err, &svcErr):
		return err
	case errors.Is(err, catalog.ErrChapterNotFound):
		return apperrors.ResourceNotFoundError(err, "chapter not found")
	case errors.Is(err, unlock.ErrInsufficientCredits):
		return apperrors.PaymentRequiredError(err, "insufficient credits")
	default:
		return err
	}
}
