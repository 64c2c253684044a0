package catalogstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/catalog"
	"github.com/comicvault/credits/pkg/pgutil"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the catalog store
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) idb(scope *pgutil.Scope) bun.IDB {
	if scope != nil {
		return scope.DB()
	}
	return s.db
}

func (s *pgStore) GetChapter(ctx context.Context, scope *pgutil.Scope, chapterID int64) (*catalog.Chapter, error) {
	row := new(chapterRow)
	err := s.idb(scope).NewSelect().
		Model((*ChapterDao)(nil)).
		ColumnExpr("ch.id, ch.comic_id, ch.title, ch.unlock_cost, ch.is_free, ch.published_at").
		ColumnExpr("co.free_chapters").
		Join("JOIN comics AS co ON co.id = ch.comic_id").
		Where("ch.id = ?", chapterID).
		Scan(ctx, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrChapterNotFound
		}
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return row.toChapter(), nil
}

func (s *pgStore) ChapterPosition(
	ctx context.Context,
	scope *pgutil.Scope,
	comicID int64,
	publishedAt time.Time,
) (int, error) {
	position, err := s.idb(scope).NewSelect().
		Model((*ChapterDao)(nil)).
		Where("comic_id = ?", comicID).
		Where("published_at <= ?", publishedAt).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to compute chapter position: %w", err)
	}
	return position, nil
}

func (s *pgStore) SetPricing(ctx context.Context, chapterID int64, pricing catalog.Pricing) (*catalog.Chapter, error) {
	if pricing.UnlockCost < 0 {
		return nil, fmt.Errorf("unlock cost must not be negative")
	}

	res, err := s.db.NewUpdate().
		Model((*ChapterDao)(nil)).
		Set("unlock_cost = ?", pricing.UnlockCost).
		Set("is_free = ?", pricing.IsFree).
		Set("updated_at = NOW()").
		Where("id = ?", chapterID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to set chapter pricing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, catalog.ErrChapterNotFound
	}
	return s.GetChapter(ctx, nil, chapterID)
}
