package unlockstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/unlock"
)

// UnlockDao maps to the 'chapter_unlocks' table. The (user_id, chapter_id)
// unique constraint is the final arbiter between concurrent unlocks.
type UnlockDao struct {
	bun.BaseModel `bun:"table:chapter_unlocks,alias:cu"`
	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        int64     `bun:"user_id,notnull,unique:uq_chapter_unlocks_user_chapter"`
	ChapterID     int64     `bun:"chapter_id,notnull,unique:uq_chapter_unlocks_user_chapter"`
	CreditsSpent  int64     `bun:"credits_spent,notnull,default:0"`
	UnlockedAt    time.Time `bun:"unlocked_at,nullzero,notnull,default:current_timestamp"`
}

type libraryRow struct {
	ChapterID    int64     `bun:"chapter_id"`
	ComicID      int64     `bun:"comic_id"`
	Title        string    `bun:"title"`
	CreditsSpent int64     `bun:"credits_spent"`
	UnlockedAt   time.Time `bun:"unlocked_at"`
}

func toUnlock(dao *UnlockDao) *unlock.ChapterUnlock {
	return &unlock.ChapterUnlock{
		ID:           dao.ID,
		UserID:       dao.UserID,
		ChapterID:    dao.ChapterID,
		CreditsSpent: dao.CreditsSpent,
		UnlockedAt:   dao.UnlockedAt,
	}
}
