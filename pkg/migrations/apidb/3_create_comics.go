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
		log.Println("creating comics table...")
		if err := mghelper.CreateSchema(ctx, db, &catalogstore.ComicDao{}); err != nil {
			return err
		}
		return addConstraint(ctx, db, "comics", "chk_comics_free_chapters_non_negative", "CHECK (free_chapters >= 0)")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping comics table...")
		return mghelper.DropTables(ctx, db, &catalogstore.ComicDao{})
	})
}
