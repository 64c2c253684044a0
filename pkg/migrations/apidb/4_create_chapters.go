package apidb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/catalogstore"
	mghelper "github.com/comicvault/credits/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating chapters table...")
		if err := mghelper.CreateSchema(ctx, db, &catalogstore.ChapterDao{}); err != nil {
			return err
		}
		if err := addConstraint(ctx, db, "chapters", "fk_chapters_comic",
			"FOREIGN KEY (comic_id) REFERENCES comics (id) ON DELETE CASCADE"); err != nil {
			return err
		}
		if err := addConstraint(ctx, db, "chapters", "chk_chapters_unlock_cost_non_negative", "CHECK (unlock_cost >= 0)"); err != nil {
			return err
		}
		// Free-position lookups count a comic's chapters by publish time.
		return mghelper.CreateIndex(ctx, db, "chapters", "idx_chapters_comic_published", "comic_id, published_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping chapters table...")
		return mghelper.DropTables(ctx, db, &catalogstore.ChapterDao{})
	})
}
