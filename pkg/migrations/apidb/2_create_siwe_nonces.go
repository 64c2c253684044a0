package apidb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/noncestore"
	mghelper "github.com/comicvault/credits/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating siwe_nonces table...")
		if err := mghelper.CreateSchema(ctx, db, &noncestore.NonceDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &noncestore.NonceDao{}, "expires_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping siwe_nonces table...")
		return mghelper.DropTables(ctx, db, &noncestore.NonceDao{})
	})
}
