package ledgerstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/comicvault/credits/pkg/ledger"
)

// TransactionDao maps to the append-only 'credit_transactions' table.
// Rows are inserted and never updated.
type TransactionDao struct {
	bun.BaseModel `bun:"table:credit_transactions,alias:ct"`
	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        int64     `bun:"user_id,notnull"`
	Type          string    `bun:"type,notnull,type:varchar(32)"`
	Amount        int64     `bun:"amount,notnull"`
	Description   string    `bun:"description,notnull,type:text"`
	TxHash        *string   `bun:"tx_hash,unique,type:varchar(66)"`
	ChainID       *int64    `bun:"chain_id"`
	AmountPaidWei *string   `bun:"amount_paid_wei,type:numeric(78,0)"`
	ActorUserID   *int64    `bun:"actor_user_id"`
	Status        string    `bun:"status,notnull,type:varchar(16)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toTransactionDao(t *ledger.Transaction) *TransactionDao {
	return &TransactionDao{
		UserID:        t.UserID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Description:   t.Description,
		TxHash:        t.TxHash,
		ChainID:       t.ChainID,
		AmountPaidWei: t.AmountPaidWei,
		ActorUserID:   t.ActorUserID,
		Status:        string(t.Status),
	}
}

func toTransaction(dao *TransactionDao) *ledger.Transaction {
	return &ledger.Transaction{
		ID:            dao.ID,
		UserID:        dao.UserID,
		Type:          ledger.Type(dao.Type),
		Amount:        dao.Amount,
		Description:   dao.Description,
		TxHash:        dao.TxHash,
		ChainID:       dao.ChainID,
		AmountPaidWei: dao.AmountPaidWei,
		ActorUserID:   dao.ActorUserID,
		Status:        ledger.Status(dao.Status),
		CreatedAt:     dao.CreatedAt,
	}
}

// statsRow receives the single aggregate row computed by Stats.
type statsRow struct {
	TotalPurchased int64  `bun:"total_purchased"`
	TotalSpent     int64  `bun:"total_spent"`
	TotalAdjusted  int64  `bun:"total_adjusted"`
	Purchases      int64  `bun:"purchases"`
	Unlocks        int64  `bun:"unlocks"`
	TotalPaidWei   string `bun:"total_paid_wei"`
}
