// Package catalogstore reads chapter pricing and publication order.
package catalogstore

import (
	"context"
	"time"

	"github.com/comicvault/credits/pkg/catalog"
	"github.com/comicvault/credits/pkg/pgutil"
)

// Store is the catalog access the credits service needs. Pricing is the only write.
type Store interface {
	// GetChapter returns the chapter with its comic's free allowance, or catalog.ErrChapterNotFound.
	GetChapter(ctx context.Context, scope *pgutil.Scope, chapterID int64) (*catalog.Chapter, error)
	// ChapterPosition returns the 1-based publication position of a chapter:
	// the number of chapters of comicID published at or before publishedAt.
	ChapterPosition(ctx context.Context, scope *pgutil.Scope, comicID int64, publishedAt time.Time) (int, error)
	// SetPricing updates the unlock cost and free flag and returns the updated chapter.
	SetPricing(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error)
}
