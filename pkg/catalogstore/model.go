package catalogstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/catalog"
)

// ComicDao maps to the 'comics' table. Only the columns the unlock engine
// reads are modelled; the content service owns the rest.
type ComicDao struct {
	bun.BaseModel `bun:"table:comics,alias:co"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Title         string    `bun:"title,notnull,type:varchar(255)"`
	FreeChapters  int       `bun:"free_chapters,notnull,default:0"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ChapterDao maps to the 'chapters' table.
type ChapterDao struct {
	bun.BaseModel `bun:"table:chapters,alias:ch"`
	ID            int64     `bun:"id,pk,autoincrement"`
	ComicID       int64     `bun:"comic_id,notnull"`
	Title         string    `bun:"title,notnull,type:varchar(255)"`
	UnlockCost    int64     `bun:"unlock_cost,notnull,default:0"`
	IsFree        bool      `bun:"is_free,notnull,default:false"`
	PublishedAt   time.Time `bun:"published_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// chapterRow is a chapter joined with its comic's free allowance.
type chapterRow struct {
	ID           int64     `bun:"id"`
	ComicID      int64     `bun:"comic_id"`
	Title        string    `bun:"title"`
	UnlockCost   int64     `bun:"unlock_cost"`
	IsFree       bool      `bun:"is_free"`
	PublishedAt  time.Time `bun:"published_at"`
	FreeChapters int       `bun:"free_chapters"`
}

func (r *chapterRow) toChapter() *catalog.Chapter {
	return &catalog.Chapter{
		ID:           r.ID,
		ComicID:      r.ComicID,
		Title:        r.Title,
		UnlockCost:   r.UnlockCost,
		IsFree:       r.IsFree,
		PublishedAt:  r.PublishedAt,
		FreeChapters: r.FreeChapters,
	}
}
