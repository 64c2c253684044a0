package userstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/user"
)

// UserDao is a data access object that maps directly to the 'users' table in PostgreSQL.
// The credits column is the balance cache; pkg/ledgerstore is its only writer.
type UserDao struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            int64     `bun:"id,pk,autoincrement"`
	WalletAddress string    `bun:"wallet_address,unique,notnull,type:varchar(42)"`
	DisplayName   string    `bun:"display_name,notnull,type:varchar(100)"`
	Role          string    `bun:"role,notnull,type:varchar(16),default:'USER'"`
	Credits       int64     `bun:"credits,notnull,default:0"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// toUserDao converts a user.User to UserDao for insertion.
// Credits is deliberately not copied: a new row always starts at zero.
func toUserDao(usr *user.User) *UserDao {
	role := usr.Role
	if !role.Valid() {
		role = user.RoleUser
	}
	return &UserDao{
		WalletAddress: user.NormalizeWallet(usr.WalletAddress),
		DisplayName:   usr.DisplayName,
		Role:          string(role),
	}
}

// toUser converts a UserDao to user.User.
func toUser(dao *UserDao) *user.User {
	return &user.User{
		ID:            dao.ID,
		WalletAddress: dao.WalletAddress,
		DisplayName:   dao.DisplayName,
		Role:          user.Role(dao.Role),
		Credits:       dao.Credits,
		CreatedAt:     dao.CreatedAt,
		UpdatedAt:     dao.UpdatedAt,
	}
}
