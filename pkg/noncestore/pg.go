package noncestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/session"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the nonce store
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Insert(ctx context.Context, nonce *session.Nonce) error {
	dao := &NonceDao{
		Nonce:     nonce.Value,
		Address:   strings.ToLower(nonce.Address),
		ExpiresAt: nonce.ExpiresAt,
	}
	if _, err := s.db.NewInsert().Model(dao).ExcludeColumn("created_at").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert nonce: %w", err)
	}
	return nil
}

func (s *pgStore) Consume(ctx context.Context, value string) (*session.Nonce, error) {
	dao := new(NonceDao)
	err := s.db.NewDelete().
		Model(dao).
		Where("nonce = ?", value).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNonceNotFound
		}
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return toNonce(dao), nil
}

func (s *pgStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*NonceDao)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep nonces: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to sweep nonces: %w", err)
	}
	return n, nil
}
