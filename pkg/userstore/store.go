package userstore

import (
	"context"
	"errors"

	"github.com/comicvault/credits/pkg/user"
)

// ErrUserNotFound is returned when a user lookup finds no matching record.
var ErrUserNotFound = errors.New("user not found")

// Store defines the interface for user identity persistence.
// It has no balance mutators; balances change only through the ledger store.
type Store interface {
	GetUser(ctx context.Context, opts ...QueryOption) (*user.User, error)
	GetUserByID(ctx context.Context, id int64) (*user.User, error)
	GetUserByWallet(ctx context.Context, walletAddress string) (*user.User, error)
	GetOrCreateUser(ctx context.Context, usr *user.User) (*user.User, bool, error)
	SetRole(ctx context.Context, id int64, role user.Role) error
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// QueryOptions defines options for querying users
type QueryOptions struct {
	ID            *int64
	WalletAddress *string
}

// QueryOption is a functional option for querying users
type QueryOption func(*QueryOptions)

// WithID sets the user ID filter
func WithID(id int64) QueryOption {
	return func(opts *QueryOptions) {
		opts.ID = &id
	}
}

// WithWalletAddress sets the wallet address filter. The address is lowercased.
func WithWalletAddress(walletAddress string) QueryOption {
	addr := user.NormalizeWallet(walletAddress)
	return func(opts *QueryOptions) {
		opts.WalletAddress = &addr
	}
}
