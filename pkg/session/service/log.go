package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/comicvault/credits/pkg/session"
	"github.com/comicvault/credits/pkg/user"
)

const serviceName = "SessionService"

// logService wraps Service with automatic logging of all calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the session Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// IssueNonce wraps the service method with logging
func (ls *logService) IssueNonce(ctx context.Context, address string) (res *session.Challenge, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.logger.Warn("IssueNonce failed",
				zap.String("service", serviceName),
				zap.String("method", "IssueNonce"),
				zap.String("address", address),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		ls.logger.Debug("IssueNonce completed",
			zap.String("service", serviceName),
			zap.String("method", "IssueNonce"),
			zap.String("address", res.Address),
			zap.Time("expires_at", res.ExpiresAt),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	return ls.svc.IssueNonce(ctx, address)
}

// Verify wraps the service method with logging. The message and signature are never logged.
func (ls *logService) Verify(ctx context.Context, message, signature string) (res *session.SignInResult, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.logger.Warn("Verify failed",
				zap.String("service", serviceName),
				zap.String("method", "Verify"),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		ls.logger.Info("Verify completed",
			zap.String("service", serviceName),
			zap.String("method", "Verify"),
			zap.Int64("user_id", res.User.ID),
			zap.String("wallet_address", res.User.WalletAddress),
			zap.Bool("created", res.Created),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	return ls.svc.Verify(ctx, message, signature)
}

// Me wraps the service method with logging
func (ls *logService) Me(ctx context.Context, userID int64) (res *user.Profile, err error) {
	defer func() {
		if err != nil {
			ls.logger.Error("Me failed",
				zap.String("service", serviceName),
				zap.String("method", "Me"),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.Me(ctx, userID)
}
