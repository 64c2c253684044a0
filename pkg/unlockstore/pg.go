package unlockstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/pgutil"
	"github.com/comicvault/credits/pkg/unlock"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the unlock store
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) idb(scope *pgutil.Scope) bun.IDB {
	if scope != nil {
		return scope.DB()
	}
	return s.db
}

func (s *pgStore) Exists(ctx context.Context, scope *pgutil.Scope, userID, chapterID int64) (bool, error) {
	exists, err := s.idb(scope).NewSelect().
		Model((*UnlockDao)(nil)).
		Where("user_id = ?", userID).
		Where("chapter_id = ?", chapterID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	return exists, nil
}

func (s *pgStore) Insert(
	ctx context.Context,
	scope *pgutil.Scope,
	userID, chapterID, creditsSpent int64,
) (*unlock.ChapterUnlock, error) {
	dao := &UnlockDao{
		UserID:       userID,
		ChapterID:    chapterID,
		CreditsSpent: creditsSpent,
	}
	_, err := s.idb(scope).NewInsert().
		Model(dao).
		ExcludeColumn("id", "unlocked_at").
		Returning("id, unlocked_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert unlock: %w", err)
	}
	return toUnlock(dao), nil
}

func (s *pgStore) ListLibrary(ctx context.Context, userID int64, limit, offset int) ([]*unlock.LibraryEntry, error) {
	var rows []libraryRow
	err := s.db.NewSelect().
		Model((*UnlockDao)(nil)).
		ColumnExpr("cu.chapter_id, ch.comic_id, ch.title, cu.credits_spent, cu.unlocked_at").
		Join("JOIN chapters AS ch ON ch.id = cu.chapter_id").
		Where("cu.user_id = ?", userID).
		OrderExpr("cu.unlocked_at DESC, cu.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}

	entries := make([]*unlock.LibraryEntry, len(rows))
	for i := range rows {
		entries[i] = &unlock.LibraryEntry{
			ChapterID:    rows[i].ChapterID,
			ComicID:      rows[i].ComicID,
			Title:        rows[i].Title,
			CreditsSpent: rows[i].CreditsSpent,
			UnlockedAt:   rows[i].UnlockedAt,
		}
	}
	return entries, nil
}
