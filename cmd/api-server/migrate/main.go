package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun/migrate"

	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/migrations/apidb"
	"github.com/comicvault/credits/pkg/pgutil"
	mghelper "github.com/comicvault/credits/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional dotenv file expanded into ${VAR} references")
	flag.Usage = mghelper.Usage
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading env file: %s", err.Error())
	}

	cfg, err := config.LoadAPIServer(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for credits database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, apidb.Migrations)
	if err := mghelper.RunMigrations(migrator, flag.Args()...); err != nil {
		mghelper.Exitf("%s", err.Error())
	}
}
