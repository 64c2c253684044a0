package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/pgutil"
)

const serviceName = "LedgerService"

// logService wraps Service with automatic logging of all write and admin calls.
// Plain reads are passed through to keep request logs readable.
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the ledger Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) done(method string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(err))...)
		return
	}
	ls.logger.Info(method+" completed", fields...)
}

// AppendCredit wraps the service method with logging
func (ls *logService) AppendCredit(
	ctx context.Context,
	scope *pgutil.Scope,
	req *ledger.CreditRequest,
) (res *ledger.CreditResult, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.Int64("user_id", req.UserID),
			zap.Int64("amount", req.Amount),
			zap.String("tx_hash", req.TxHash),
		}
		if res != nil {
			fields = append(fields, zap.Bool("replayed", res.Replayed))
		}
		ls.done("AppendCredit", start, err, fields...)
	}()

	return ls.svc.AppendCredit(ctx, scope, req)
}

// AppendDebit wraps the service method with logging
func (ls *logService) AppendDebit(
	ctx context.Context,
	scope *pgutil.Scope,
	userID, amount int64,
	description string,
) (balance int64, err error) {
	start := time.Now()
	defer func() {
		ls.done("AppendDebit", start, err,
			zap.Int64("user_id", userID),
			zap.Int64("amount", amount),
			zap.Int64("balance", balance),
		)
	}()

	return ls.svc.AppendDebit(ctx, scope, userID, amount, description)
}

// AppendAdminAdjustment wraps the service method with logging
func (ls *logService) AppendAdminAdjustment(
	ctx context.Context,
	scope *pgutil.Scope,
	req *ledger.AdjustmentRequest,
) (balance int64, err error) {
	start := time.Now()

	ls.logger.Info("AppendAdminAdjustment started",
		zap.String("service", serviceName),
		zap.String("method", "AppendAdminAdjustment"),
		zap.Int64("user_id", req.UserID),
		zap.Int64("actor_id", req.ActorID),
		zap.Int64("amount", req.Amount),
	)

	defer func() {
		ls.done("AppendAdminAdjustment", start, err,
			zap.Int64("user_id", req.UserID),
			zap.Int64("actor_id", req.ActorID),
			zap.Int64("balance", balance),
		)
	}()

	return ls.svc.AppendAdminAdjustment(ctx, scope, req)
}

// Reconcile wraps the service method with logging
func (ls *logService) Reconcile(ctx context.Context, userID int64) (res *ledger.ReconcileResult, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{zap.Int64("user_id", userID)}
		if res != nil {
			fields = append(fields, zap.Int64("balance", res.Balance), zap.Int64("drift", res.Drift))
		}
		ls.done("Reconcile", start, err, fields...)
	}()

	return ls.svc.Reconcile(ctx, userID)
}

func (ls *logService) LockBalance(ctx context.Context, scope *pgutil.Scope, userID int64) (int64, error) {
	return ls.svc.LockBalance(ctx, scope, userID)
}

func (ls *logService) Balance(ctx context.Context, userID int64) (int64, error) {
	return ls.svc.Balance(ctx, userID)
}

func (ls *logService) History(ctx context.Context, userID int64, limit, offset int) ([]*ledger.Transaction, error) {
	return ls.svc.History(ctx, userID, limit, offset)
}

func (ls *logService) TransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error) {
	return ls.svc.TransactionByHash(ctx, scope, txHash)
}

// Stats wraps the service method with logging
func (ls *logService) Stats(ctx context.Context) (stats *ledger.Stats, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.done("Stats", start, err)
		}
	}()

	return ls.svc.Stats(ctx)
}
