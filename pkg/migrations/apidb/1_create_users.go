package apidb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/comicvault/credits/pkg/pgutil/migrations"
	"github.com/comicvault/credits/pkg/userstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating users table...")
		if err := mghelper.CreateSchema(ctx, db, &userstore.UserDao{}); err != nil {
			return err
		}
		if err := addConstraint(ctx, db, "users", "chk_users_credits_non_negative", "CHECK (credits >= 0)"); err != nil {
			return err
		}
		return addConstraint(ctx, db, "users", "chk_users_role", "CHECK (role IN ('USER', 'ADMIN'))")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping users table...")
		return mghelper.DropTables(ctx, db, &userstore.UserDao{})
	})
}
