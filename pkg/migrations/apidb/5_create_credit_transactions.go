package apidb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/ledgerstore"
	mghelper "github.com/comicvault/credits/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating credit_transactions table...")
		if err := mghelper.CreateSchema(ctx, db, &ledgerstore.TransactionDao{}); err != nil {
			return err
		}
		if err := addConstraint(ctx, db, "credit_transactions", "fk_credit_transactions_user",
			"FOREIGN KEY (user_id) REFERENCES users (id)"); err != nil {
			return err
		}
		if err := addConstraint(ctx, db, "credit_transactions", "chk_credit_transactions_type",
			"CHECK (type IN ('PURCHASE', 'SPEND', 'ADMIN_ADJUSTMENT'))"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &ledgerstore.TransactionDao{}, "user_id", "created_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping credit_transactions table...")
		return mghelper.DropTables(ctx, db, &ledgerstore.TransactionDao{})
	})
}
