package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/comicvault/credits/pkg/catalog"
	"github.com/comicvault/credits/pkg/unlock"
)

const serviceName = "UnlockService"

// logService wraps Service with automatic logging of unlocks and pricing changes
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the unlock Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// Unlock wraps the service method with logging
func (ls *logService) Unlock(ctx context.Context, userID, chapterID int64) (res *unlock.Result, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "Unlock"),
			zap.Int64("user_id", userID),
			zap.Int64("chapter_id", chapterID),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			ls.logger.Error("Unlock failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Info("Unlock completed", append(fields,
			zap.String("outcome", string(res.Outcome)),
			zap.Int64("credits_spent", res.CreditsSpent),
		)...)
	}()

	return ls.svc.Unlock(ctx, userID, chapterID)
}

func (ls *logService) Access(ctx context.Context, userID, chapterID int64) (*unlock.Access, error) {
	return ls.svc.Access(ctx, userID, chapterID)
}

func (ls *logService) Library(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error) {
	return ls.svc.Library(ctx, userID, limit, offset)
}

// SetPricing wraps the service method with logging
func (ls *logService) SetPricing(ctx context.Context, chapterID int64, pricing catalog.Pricing) (ch *catalog.Chapter, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "SetPricing"),
			zap.Int64("chapter_id", chapterID),
			zap.Int64("unlock_cost", pricing.UnlockCost),
			zap.Bool("is_free", pricing.IsFree),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			ls.logger.Error("SetPricing failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Info("SetPricing completed", fields...)
	}()

	return ls.svc.SetPricing(ctx, chapterID, pricing)
}
