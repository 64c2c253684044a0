package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/user"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the user store
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) GetUser(ctx context.Context, opts ...QueryOption) (*user.User, error) {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.ID == nil && options.WalletAddress == nil {
		return nil, fmt.Errorf("get user: no filter given")
	}

	dao := new(UserDao)
	query := s.db.NewSelect().Model(dao)

	if options.ID != nil {
		query = query.Where("id = ?", *options.ID)
	}
	if options.WalletAddress != nil {
		query = query.Where("wallet_address = ?", *options.WalletAddress)
	}

	err := query.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toUser(dao), nil
}

func (s *pgStore) GetUserByID(ctx context.Context, id int64) (*user.User, error) {
	return s.GetUser(ctx, WithID(id))
}

func (s *pgStore) GetUserByWallet(ctx context.Context, walletAddress string) (*user.User, error) {
	return s.GetUser(ctx, WithWalletAddress(walletAddress))
}

// GetOrCreateUser returns the user owning usr.WalletAddress, inserting it first
// when absent. The boolean reports whether a row was created by this call.
// Concurrent first sign-ins for one wallet converge on a single row.
func (s *pgStore) GetOrCreateUser(ctx context.Context, usr *user.User) (*user.User, bool, error) {
	dao := toUserDao(usr)

	res, err := s.db.NewInsert().
		Model(dao).
		ExcludeColumn("id", "credits", "created_at", "updated_at").
		On("CONFLICT (wallet_address) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	stored, err := s.GetUserByWallet(ctx, dao.WalletAddress)
	if err != nil {
		return nil, false, err
	}
	return stored, affected > 0, nil
}

func (s *pgStore) SetRole(ctx context.Context, id int64, role user.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}

	res, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("role = ?", string(role)).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *pgStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.NewSelect().
		Model((*UserDao)(nil)).
		Column("id").
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}
