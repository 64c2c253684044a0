package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/comicvault/credits/pkg/payment"
)

// logService wraps Service with automatic logging of all calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the payment Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// VerifyAndCredit wraps the service method with logging
func (ls *logService) VerifyAndCredit(ctx context.Context, req *payment.PurchaseRequest) (res *payment.PurchaseResult, err error) {
	start := time.Now()

	ls.logger.Info("VerifyAndCredit started",
		zap.String("service", "PaymentService"),
		zap.String("method", "VerifyAndCredit"),
		zap.Int64("user_id", req.UserID),
		zap.String("tx_hash", req.TxHash),
		zap.Int64("chain_id", req.ChainID),
	)

	defer func() {
		duration := time.Since(start)
		if err != nil {
			ls.logger.Error("VerifyAndCredit failed",
				zap.String("service", "PaymentService"),
				zap.String("method", "VerifyAndCredit"),
				zap.Int64("user_id", req.UserID),
				zap.String("tx_hash", req.TxHash),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return
		}
		ls.logger.Info("VerifyAndCredit completed",
			zap.String("service", "PaymentService"),
			zap.String("method", "VerifyAndCredit"),
			zap.Int64("user_id", req.UserID),
			zap.String("tx_hash", req.TxHash),
			zap.Int64("credits", res.Credits),
			zap.Bool("replayed", res.Replayed),
			zap.Duration("duration", duration),
		)
	}()

	return ls.svc.VerifyAndCredit(ctx, req)
}
