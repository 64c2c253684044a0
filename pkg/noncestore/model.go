package noncestore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/session"
)

// NonceDao maps to the 'siwe_nonces' table.
type NonceDao struct {
	bun.BaseModel `bun:"table:siwe_nonces,alias:sn"`
	Nonce         string    `bun:"nonce,pk,type:varchar(64)"`
	Address       string    `bun:"address,notnull,type:varchar(42)"`
	ExpiresAt     time.Time `bun:"expires_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toNonce(dao *NonceDao) *session.Nonce {
	return &session.Nonce{
		Value:     dao.Nonce,
		Address:   dao.Address,
		ExpiresAt: dao.ExpiresAt,
	}
}
