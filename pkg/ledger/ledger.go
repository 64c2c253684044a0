// Package ledger defines the credit ledger domain: append-only transactions
// and the errors raised when a credit-affecting operation is refused.
package ledger

import (
	"errors"
	"time"
)

// Type is the business reason of a ledger entry.
type Type string

const (
	TypePurchase        Type = "PURCHASE"
	TypeSpend           Type = "SPEND"
	TypeAdminAdjustment Type = "ADMIN_ADJUSTMENT"
)

// Status is the lifecycle state of a ledger entry. Only StatusConfirmed is written today.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

var (
	ErrUserNotFound                      = errors.New("user not found")
	ErrInsufficientFunds                 = errors.New("insufficient credits")
	ErrInsufficientCreditsForAdjustment  = errors.New("insufficient credits for adjustment")
	ErrInvalidAmount                     = errors.New("invalid amount")
	ErrAdjustmentOutOfBounds             = errors.New("adjustment exceeds allowed magnitude")
	ErrTransactionHashClaimedByOtherUser = errors.New("transaction hash already credited to another user")
	ErrTransactionNotFound               = errors.New("transaction not found")
)

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID          int64
	UserID      int64
	Type        Type
	Amount      int64 // positive credit, negative debit
	Description string
	TxHash      *string
	ChainID     *int64
	// AmountPaidWei is the decimal wei amount recorded for on-chain purchases.
	AmountPaidWei *string
	ActorUserID   *int64
	Status        Status
	CreatedAt     time.Time
}

// CreditRequest describes a purchase credit.
type CreditRequest struct {
	UserID        int64
	Amount        int64
	Description   string
	TxHash        string // idempotency key; empty for off-chain credits
	ChainID       int64
	AmountPaidWei string
}

// CreditResult is returned by AppendCredit. Replayed is true when the
// idempotency key was already present and nothing new was written.
type CreditResult struct {
	Transaction *Transaction
	Replayed    bool
}

// AdjustmentRequest describes an admin-authored signed balance change.
type AdjustmentRequest struct {
	UserID  int64  `json:"-"`
	Amount  int64  `json:"amount" validate:"required,ne=0"`
	Reason  string `json:"reason" validate:"required,min=3,max=500"`
	ActorID int64  `json:"-"`
}

// ReconcileResult reports the outcome of a balance reconciliation.
type ReconcileResult struct {
	UserID   int64 `json:"user_id"`
	Balance  int64 `json:"balance"`
	Previous int64 `json:"previous"`
	Drift    int64 `json:"drift"`
}

// Stats are aggregate figures over the whole ledger.
type Stats struct {
	TotalPurchased   int64     `json:"total_purchased"`
	TotalSpent       int64     `json:"total_spent"`
	TotalAdjusted    int64     `json:"total_adjusted"`
	Purchases        int64     `json:"purchases"`
	Unlocks          int64     `json:"unlocks"`
	OutstandingTotal int64     `json:"outstanding_total"`
	TotalPaidEth     string    `json:"total_paid_eth"`
	ComputedAt       time.Time `json:"computed_at"`
}

// HistoryEntry is the API representation of a Transaction.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	Type        Type      `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	TxHash      *string   `json:"transaction_hash,omitempty"`
	ChainID     *int64    `json:"chain_id,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToHistoryEntry converts a Transaction to its API representation.
func (t *Transaction) ToHistoryEntry() HistoryEntry {
	return HistoryEntry{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		TxHash:      t.TxHash,
		ChainID:     t.ChainID,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
	}
}
