//go:build ignore

// grant-admin.go - Promote a wallet to the ADMIN role
//
// Usage:
//   go run scripts/grant-admin.go -config config.yaml -wallet 0x...
//
// The wallet must have signed in at least once. The new role takes effect on
// the next sign-in, since existing tokens carry the role they were issued with.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/pgutil"
	"github.com/comicvault/credits/pkg/user"
	"github.com/comicvault/credits/pkg/userstore"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to config file")
	wallet     = flag.String("wallet", "", "Wallet address to promote")
	revoke     = flag.Bool("revoke", false, "Demote the wallet back to USER")
)

func main() {
	flag.Parse()

	if *wallet == "" {
		fmt.Println("Usage: go run scripts/grant-admin.go -config config.yaml -wallet 0x...")
		os.Exit(1)
	}

	cfg, err := config.LoadAPIServer(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	store := userstore.NewStore(db)

	usr, err := store.GetUserByWallet(ctx, *wallet)
	if err != nil {
		fmt.Printf("Failed to find user %s: %v\n", *wallet, err)
		os.Exit(1)
	}

	role := user.RoleAdmin
	if *revoke {
		role = user.RoleUser
	}
	if err := store.SetRole(ctx, usr.ID, role); err != nil {
		fmt.Printf("Failed to set role: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User %d (%s) is now %s\n", usr.ID, usr.WalletAddress, role)
}
