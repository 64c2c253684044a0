package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/comicvault/credits/internal/metrics"
	apperrors "github.com/comicvault/credits/pkg/app/errors"
	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/ledgerstore"
	"github.com/comicvault/credits/pkg/pgutil"
)

// Store is the narrow data-access interface for the ledger service.
// Defined here to keep the ledger service decoupled from ledgerstore implementation details.
type Store interface {
	LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	GetBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	AddToBalance(ctx context.Context, scope *pgutil.Scope, userID, delta int64) (int64, error)
	SetBalance(ctx context.Context, scope *pgutil.Scope, userID, balance int64) error
	InsertTransaction(ctx context.Context, scope *pgutil.Scope, tx *ledger.Transaction) (bool, error)
	GetTransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error)
	ListTransactions(ctx context.Context, scope *pgutil.Scope, userID int64, limit, offset int) ([]*ledger.Transaction, error)
	SumConfirmed(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	Aggregates(ctx context.Context, scope *pgutil.Scope) (*ledgerstore.Aggregates, error)
}

// Service is the credit ledger. It is the only component allowed to change a
// user's balance.
//
// Methods that accept a *pgutil.Scope join it when non-nil and never open a
// nested transaction; with a nil scope they run in their own transaction and
// retry once on a serialization failure or deadlock.
type Service interface {
	AppendCredit(ctx context.Context, scope *pgutil.Scope, req *ledger.CreditRequest) (*ledger.CreditResult, error)
	AppendDebit(ctx context.Context, scope *pgutil.Scope, userID, amount int64, description string) (int64, error)
	AppendAdminAdjustment(ctx context.Context, scope *pgutil.Scope, req *ledger.AdjustmentRequest) (int64, error)
	Reconcile(ctx context.Context, userID int64) (*ledger.ReconcileResult, error)
	// LockBalance row-locks the user inside the caller's scope and returns the
	// cached balance. Later writes in the same scope see no concurrent change.
	LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error)
	Balance(ctx context.Context, userID int64) (int64, error)
	History(ctx context.Context, userID int64, limit, offset int) ([]*ledger.Transaction, error)
	TransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error)
	Stats(ctx context.Context) (*ledger.Stats, error)
}

type ledgerService struct {
	tx     pgutil.Transactor
	store  Store
	stats  StatsCache
	cfg    config.LedgerConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new ledger service
func NewService(
	tx pgutil.Transactor,
	store Store,
	stats StatsCache,
	cfg config.LedgerConfig,
	logger *zap.Logger,
) Service {
	return &ledgerService{
		tx:     tx,
		store:  store,
		stats:  stats,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// AppendCredit records a CONFIRMED purchase and increments the balance.
// A TxHash already present in the ledger makes the call a no-op that returns
// the original entry with Replayed set.
func (s *ledgerService) AppendCredit(
	ctx context.Context,
	scope *pgutil.Scope,
	req *ledger.CreditRequest,
) (*ledger.CreditResult, error) {
	if req.Amount <= 0 {
		return nil, apperrors.BadRequestError(ledger.ErrInvalidAmount, "credit amount must be positive")
	}

	entry := &ledger.Transaction{
		UserID:      req.UserID,
		Type:        ledger.TypePurchase,
		Amount:      req.Amount,
		Description: req.Description,
		Status:      ledger.StatusConfirmed,
	}
	if req.TxHash != "" {
		hash := strings.ToLower(req.TxHash)
		entry.TxHash = &hash
	}
	if req.ChainID != 0 {
		chainID := req.ChainID
		entry.ChainID = &chainID
	}
	if req.AmountPaidWei != "" {
		wei := req.AmountPaidWei
		entry.AmountPaidWei = &wei
	}

	var result *ledger.CreditResult
	err := s.run(ctx, scope, "append_credit", func(ctx context.Context, scope *pgutil.Scope) error {
		if _, err := s.store.LockBalance(ctx, scope, req.UserID); err != nil {
			return err
		}

		attempt := *entry
		inserted, err := s.store.InsertTransaction(ctx, scope, &attempt)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.store.GetTransactionByHash(ctx, scope, *entry.TxHash)
			if err != nil {
				return fmt.Errorf("failed to load replayed entry: %w", err)
			}
			if existing.UserID != req.UserID {
				return ledger.ErrTransactionHashClaimedByOtherUser
			}
			result = &ledger.CreditResult{Transaction: existing, Replayed: true}
			return nil
		}

		if _, err := s.store.AddToBalance(ctx, scope, req.UserID, req.Amount); err != nil {
			return err
		}
		scope.AfterCommit(func() {
			metrics.CreditsPurchased.Add(float64(req.Amount))
			s.invalidateStats()
		})
		result = &ledger.CreditResult{Transaction: &attempt}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// AppendDebit records a CONFIRMED spend and decrements the balance. The
// balance is read under the user row lock so concurrent debits cannot both
// pass a stale check.
func (s *ledgerService) AppendDebit(
	ctx context.Context,
	scope *pgutil.Scope,
	userID, amount int64,
	description string,
) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.BadRequestError(ledger.ErrInvalidAmount, "debit amount must be positive")
	}

	var balance int64
	err := s.run(ctx, scope, "append_debit", func(ctx context.Context, scope *pgutil.Scope) error {
		current, err := s.store.LockBalance(ctx, scope, userID)
		if err != nil {
			return err
		}
		if current < amount {
			return ledger.ErrInsufficientFunds
		}

		if _, err := s.store.InsertTransaction(ctx, scope, &ledger.Transaction{
			UserID:      userID,
			Type:        ledger.TypeSpend,
			Amount:      -amount,
			Description: description,
			Status:      ledger.StatusConfirmed,
		}); err != nil {
			return err
		}

		balance, err = s.store.AddToBalance(ctx, scope, userID, -amount)
		if err != nil {
			return err
		}
		scope.AfterCommit(func() {
			metrics.CreditsSpent.Add(float64(amount))
			s.invalidateStats()
		})
		return nil
	})
	if err != nil {
		return 0, mapError(err)
	}
	return balance, nil
}

// AppendAdminAdjustment applies a signed admin-authored delta.
func (s *ledgerService) AppendAdminAdjustment(
	ctx context.Context,
	scope *pgutil.Scope,
	req *ledger.AdjustmentRequest,
) (int64, error) {
	reason := strings.TrimSpace(req.Reason)
	switch {
	case req.Amount == 0:
		return 0, apperrors.BadRequestError(ledger.ErrInvalidAmount, "amount must be non-zero")
	case req.Amount < -s.cfg.MaxAdjustment || req.Amount > s.cfg.MaxAdjustment:
		return 0, apperrors.BadRequestError(ledger.ErrAdjustmentOutOfBounds,
			fmt.Sprintf("amount must be between -%d and %d", s.cfg.MaxAdjustment, s.cfg.MaxAdjustment))
	case reason == "":
		return 0, apperrors.BadRequestError(nil, "reason is required")
	}

	var balance int64
	err := s.run(ctx, scope, "admin_adjustment", func(ctx context.Context, scope *pgutil.Scope) error {
		current, err := s.store.LockBalance(ctx, scope, req.UserID)
		if err != nil {
			return err
		}
		if current+req.Amount < 0 {
			return ledger.ErrInsufficientCreditsForAdjustment
		}

		actor := req.ActorID
		if _, err := s.store.InsertTransaction(ctx, scope, &ledger.Transaction{
			UserID:      req.UserID,
			Type:        ledger.TypeAdminAdjustment,
			Amount:      req.Amount,
			Description: reason,
			ActorUserID: &actor,
			Status:      ledger.StatusConfirmed,
		}); err != nil {
			return err
		}

		balance, err = s.store.AddToBalance(ctx, scope, req.UserID, req.Amount)
		if err != nil {
			return err
		}
		scope.AfterCommit(func() {
			direction := "credit"
			if req.Amount < 0 {
				direction = "debit"
			}
			metrics.CreditsAdjusted.WithLabelValues(direction).Add(float64(abs(req.Amount)))
			s.invalidateStats()
		})
		return nil
	})
	if err != nil {
		return 0, mapError(err)
	}
	return balance, nil
}

// Reconcile overwrites the cached balance with the sum of CONFIRMED entries.
// It takes the same row lock as the writers, so it never interleaves with a
// debit or credit of the same user, and a second call reports zero drift.
func (s *ledgerService) Reconcile(ctx context.Context, userID int64) (*ledger.ReconcileResult, error) {
	var result *ledger.ReconcileResult
	err := s.run(ctx, nil, "reconcile", func(ctx context.Context, scope *pgutil.Scope) error {
		previous, err := s.store.LockBalance(ctx, scope, userID)
		if err != nil {
			return err
		}
		sum, err := s.store.SumConfirmed(ctx, scope, userID)
		if err != nil {
			return err
		}
		if sum != previous {
			if err := s.store.SetBalance(ctx, scope, userID, sum); err != nil {
				return err
			}
		}
		result = &ledger.ReconcileResult{
			UserID:   userID,
			Balance:  sum,
			Previous: previous,
			Drift:    sum - previous,
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}

	metrics.ReconciliationDrift.Observe(float64(abs(result.Drift)))
	if result.Drift != 0 {
		s.logger.Warn("balance drift repaired",
			zap.Int64("user_id", userID),
			zap.Int64("previous", result.Previous),
			zap.Int64("balance", result.Balance),
			zap.Int64("drift", result.Drift),
		)
		s.invalidateStats()
	}
	return result, nil
}

func (s *ledgerService) LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	if scope == nil {
		return 0, errors.New("lock balance requires an open scope")
	}
	balance, err := s.store.LockBalance(ctx, scope, userID)
	if err != nil {
		return 0, mapError(err)
	}
	return balance, nil
}

// Balance reads the cached balance.
func (s *ledgerService) Balance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.store.GetBalance(ctx, nil, userID)
	if err != nil {
		return 0, mapError(err)
	}
	return balance, nil
}

// History returns the user's entries newest first. The limit falls back to
// the configured default when non-positive and is clamped to the configured maximum.
func (s *ledgerService) History(ctx context.Context, userID int64, limit, offset int) ([]*ledger.Transaction, error) {
	limit, offset = s.clampPage(limit, offset)
	txs, err := s.store.ListTransactions(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	return txs, nil
}

// TransactionByHash returns the entry carrying txHash, or ledger.ErrTransactionNotFound.
func (s *ledgerService) TransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error) {
	return s.store.GetTransactionByHash(ctx, scope, strings.ToLower(txHash))
}

func (s *ledgerService) clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.cfg.HistoryDefaultLimit
	}
	if limit > s.cfg.HistoryMaxLimit {
		limit = s.cfg.HistoryMaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// run executes fn in scope. Only an operation that owns its transaction is
// retried: a joined scope is already aborted and belongs to the caller.
func (s *ledgerService) run(
	ctx context.Context,
	scope *pgutil.Scope,
	op string,
	fn func(ctx context.Context, scope *pgutil.Scope) error,
) error {
	err := s.tx.Run(ctx, scope, fn)
	if err == nil || scope != nil || !pgutil.IsRetryable(err) {
		return err
	}

	metrics.LedgerRetries.WithLabelValues(op).Inc()
	s.logger.Info("retrying ledger operation after write conflict",
		zap.String("operation", op),
		zap.Error(err),
	)
	return s.tx.Run(ctx, nil, fn)
}

// mapError assigns an HTTP-facing category to domain errors. Anything else
// is left untouched and surfaces as an internal failure.
func mapError(err error) error {
	var svcErr *apperrors.ServiceError
	switch {
	case errors.As(err, &svcErr):
		return err
	case errors.Is(err, ledger.ErrUserNotFound):
		return apperrors.ResourceNotFoundError(err, "user not found")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apperrors.PaymentRequiredError(err, "insufficient credits")
	case errors.Is(err, ledger.ErrInsufficientCreditsForAdjustment):
		return apperrors.UnprocessableError(err, "adjustment would make the balance negative")
	case errors.Is(err, ledger.ErrTransactionHashClaimedByOtherUser):
		return apperrors.ConflictError(err, "transaction already credited to another account")
	default:
		return err
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
