package apidb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/comicvault/credits/pkg/pgutil/migrations"
	"github.com/comicvault/credits/pkg/unlockstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating chapter_unlocks table...")
		if err := mghelper.CreateSchema(ctx, db, &unlockstore.UnlockDao{}); err != nil {
			return err
		}
		if err := addConstraint(ctx, db, "chapter_unlocks", "fk_chapter_unlocks_user",
			"FOREIGN KEY (user_id) REFERENCES users (id)"); err != nil {
			return err
		}
		if err := addConstraint(ctx, db, "chapter_unlocks", "fk_chapter_unlocks_chapter",
			"FOREIGN KEY (chapter_id) REFERENCES chapters (id)"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &unlockstore.UnlockDao{}, "chapter_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping chapter_unlocks table...")
		return mghelper.DropTables(ctx, db, &unlockstore.UnlockDao{})
	})
}
