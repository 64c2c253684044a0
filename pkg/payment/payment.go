// Package payment verifies on-chain credit purchases.
package payment

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Verification failures. Each is a verdict about the submitted transaction,
// never about the availability of the chain.
var (
	ErrTransactionNotConfirmed = errors.New("transaction not confirmed")
	ErrContractMismatch        = errors.New("transaction was not sent to the payment contract")
	ErrEventNotFound           = errors.New("purchase event not found in transaction")
	ErrBuyerMismatch           = errors.New("purchase buyer does not match caller")
	ErrUnsupportedChain        = errors.New("unsupported chain")
	ErrInvalidCredits          = errors.New("purchase event carries an invalid credit amount")
)

// PurchaseRequest asks to credit the caller for an on-chain purchase.
type PurchaseRequest struct {
	UserID       int64
	BuyerAddress string
	TxHash       string
	ChainID      int64
}

// PurchaseResult reports the credits granted for a purchase. Replayed is
// true when the purchase had already been credited to the same user.
type PurchaseResult struct {
	TxHash        string `json:"transaction_hash"`
	Credits       int64  `json:"credits"`
	AmountPaidWei string `json:"amount_paid_wei"`
	AmountPaidEth string `json:"amount_paid_eth"`
	Replayed      bool   `json:"replayed"`
}

// PurchaseEvent is the decoded purchase log.
type PurchaseEvent struct {
	Buyer      common.Address
	Credits    *big.Int
	AmountPaid *big.Int
}
