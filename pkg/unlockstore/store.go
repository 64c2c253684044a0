// Package unlockstore persists chapter entitlements.
package unlockstore

import (
	"context"

	"github.com/comicvault/credits/pkg/pgutil"
	"github.com/comicvault/credits/pkg/unlock"
)

// Store defines the interface for chapter unlock persistence.
// Rows are never updated or deleted.
type Store interface {
	Exists(ctx context.Context, scope *pgutil.Scope, userID, chapterID int64) (bool, error)
	// Insert writes a new unlock. A duplicate (user, chapter) pair fails with
	// a unique violation that aborts the surrounding transaction.
	Insert(ctx context.Context, scope *pgutil.Scope, userID, chapterID, creditsSpent int64) (*unlock.ChapterUnlock, error)
	// ListLibrary returns the user's unlocks joined with chapter titles, newest first.
	ListLibrary(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error)
}
