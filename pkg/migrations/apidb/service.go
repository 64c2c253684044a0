// Package apidb holds all the migrations for the credits API database
package apidb

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the credits API database
var Migrations = migrate.NewMigrations()

func addConstraint(ctx context.Context, db bun.IDB, table, name, definition string) error {
	_, err := db.ExecContext(ctx, "ALTER TABLE ? ADD CONSTRAINT ? "+definition, bun.Ident(table), bun.Ident(name))
	return err
}
