package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/comicvault/credits/internal/metrics"
	apperrors "github.com/comicvault/credits/pkg/app/errors"
	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/payment"
	"github.com/comicvault/credits/pkg/pgutil"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Ledger is the part of the ledger service the verifier credits through.
type Ledger interface {
	AppendCredit(ctx context.Context, scope *pgutil.Scope, req *ledger.CreditRequest) (*ledger.CreditResult, error)
	TransactionByHash(ctx context.Context, scope *pgutil.Scope, txHash string) (*ledger.Transaction, error)
}

// Service verifies purchases and mints credits.
type Service interface {
	// VerifyAndCredit credits the caller for a confirmed purchase exactly once.
	VerifyAndCredit(ctx context.Context, req *payment.PurchaseRequest) (*payment.PurchaseResult, error)
}

type verifier struct {
	chain    payment.ChainReader
	decoder  *payment.EventDecoder
	ledger   Ledger
	contract common.Address
	chainID  int64
	logger   *zap.Logger
}

// NewService creates a new purchase verifier
func NewService(
	cfg *config.PaymentConfig,
	chain payment.ChainReader,
	decoder *payment.EventDecoder,
	ledger Ledger,
	logger *zap.Logger,
) Service {
	return &verifier{
		chain:    chain,
		decoder:  decoder,
		ledger:   ledger,
		contract: common.HexToAddress(cfg.ContractAddress),
		chainID:  cfg.ChainID,
		logger:   logger,
	}
}

func (v *verifier) VerifyAndCredit(ctx context.Context, req *payment.PurchaseRequest) (*payment.PurchaseResult, error) {
	res, err := v.verifyAndCredit(ctx, req)
	if err != nil {
		metrics.PaymentVerifications.WithLabelValues(resultLabel(err)).Inc()
		return nil, mapError(err)
	}
	if res.Replayed {
		metrics.PaymentVerifications.WithLabelValues("replayed").Inc()
	} else {
		metrics.PaymentVerifications.WithLabelValues("credited").Inc()
	}
	return res, nil
}

func (v *verifier) verifyAndCredit(ctx context.Context, req *payment.PurchaseRequest) (*payment.PurchaseResult, error) {
	if !txHashPattern.MatchString(req.TxHash) {
		return nil, apperrors.BadRequestError(nil, "transaction_hash must be a 0x-prefixed 32-byte hex string")
	}
	if !common.IsHexAddress(req.BuyerAddress) {
		return nil, apperrors.BadRequestError(nil, "caller has no valid wallet address")
	}
	chainID := req.ChainID
	if chainID == 0 {
		chainID = v.chainID
	}
	if chainID != v.chainID {
		return nil, payment.ErrUnsupportedChain
	}
	txHash := strings.ToLower(req.TxHash)

	// A hash already in the ledger never reaches the chain again.
	existing, err := v.ledger.TransactionByHash(ctx, nil, txHash)
	switch {
	case err == nil:
		if existing.UserID != req.UserID {
			return nil, payment.ErrBuyerMismatch
		}
		return replayedResult(existing), nil
	case !errors.Is(err, ledger.ErrTransactionNotFound):
		return nil, err
	}

	event, err := v.confirmedPurchase(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}

	if event.Buyer != common.HexToAddress(req.BuyerAddress) {
		v.logger.Warn("purchase buyer mismatch",
			zap.String("tx_hash", txHash),
			zap.String("event_buyer", strings.ToLower(event.Buyer.Hex())),
			zap.String("caller", strings.ToLower(req.BuyerAddress)))
		return nil, payment.ErrBuyerMismatch
	}
	if event.Credits.Sign() <= 0 || !event.Credits.IsInt64() {
		return nil, payment.ErrInvalidCredits
	}
	credits := event.Credits.Int64()
	amountPaid := event.AmountPaid
	if amountPaid == nil {
		amountPaid = new(big.Int)
	}

	credited, err := v.ledger.AppendCredit(ctx, nil, &ledger.CreditRequest{
		UserID:        req.UserID,
		Amount:        credits,
		Description:   fmt.Sprintf("Purchased %d credits", credits),
		TxHash:        txHash,
		ChainID:       chainID,
		AmountPaidWei: amountPaid.String(),
	})
	if err != nil {
		return nil, err
	}
	if credited.Replayed {
		return replayedResult(credited.Transaction), nil
	}

	return &payment.PurchaseResult{
		TxHash:        txHash,
		Credits:       credits,
		AmountPaidWei: amountPaid.String(),
		AmountPaidEth: weiToEth(amountPaid.String()),
	}, nil
}

// confirmedPurchase loads the receipt and transaction and extracts the
// purchase event. Chain failures come back as dependency errors.
func (v *verifier) confirmedPurchase(ctx context.Context, hash common.Hash) (*payment.PurchaseEvent, error) {
	receipt, err := v.chain.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, chainError(err)
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		return nil, payment.ErrTransactionNotConfirmed
	}

	tx, pending, err := v.chain.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, chainError(err)
	}
	if pending || tx == nil {
		return nil, payment.ErrTransactionNotConfirmed
	}
	if tx.To() == nil || *tx.To() != v.contract {
		return nil, payment.ErrContractMismatch
	}

	event, err := v.decoder.Find(receipt.Logs, v.contract)
	if err != nil {
		if errors.Is(err, payment.ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", payment.ErrEventNotFound, err)
	}
	return event, nil
}

func chainError(err error) error {
	switch {
	case errors.Is(err, ethereum.NotFound), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", payment.ErrTransactionNotConfirmed, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperrors.DependencyError(err, "chain RPC temporarily unavailable")
	default:
		return apperrors.DependencyError(err, "failed to query chain RPC")
	}
}

func replayedResult(tx *ledger.Transaction) *payment.PurchaseResult {
	wei := "0"
	if tx.AmountPaidWei != nil {
		wei = *tx.AmountPaidWei
	}
	hash := ""
	if tx.TxHash != nil {
		hash = *tx.TxHash
	}
	return &payment.PurchaseResult{
		TxHash:        hash,
		Credits:       tx.Amount,
		AmountPaidWei: wei,
		AmountPaidEth: weiToEth(wei),
		Replayed:      true,
	}
}

func weiToEth(wei string) string {
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return "0"
	}
	return d.Shift(-18).String()
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, payment.ErrBuyerMismatch):
		return "buyer_mismatch"
	case errors.Is(err, payment.ErrContractMismatch):
		return "contract_mismatch"
	case errors.Is(err, payment.ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, payment.ErrTransactionNotConfirmed):
		return "not_confirmed"
	case errors.Is(err, payment.ErrUnsupportedChain):
		return "unsupported_chain"
	case apperrors.Is(err, apperrors.CategoryDependencyFailure):
		return "rpc_error"
	default:
		return "error"
	}
}

func mapError(err error) error {
	var svcErr *apperrors.ServiceError
	switch {
	case errors.Is(err, ledger.ErrTransactionHashClaimedByOtherUser):
		return apperrors.UnprocessableError(payment.ErrBuyerMismatch, "transaction was credited to another account")
	case errors.As(err, &svcErr):
		return err
	case errors.Is(err, payment.ErrTransactionNotConfirmed):
		return apperrors.UnprocessableError(err, "transaction is not confirmed")
	case errors.Is(err, payment.ErrContractMismatch):
		return apperrors.UnprocessableError(err, "transaction was not sent to the payment contract")
	case errors.Is(err, payment.ErrEventNotFound):
		return apperrors.UnprocessableError(err, "no purchase event found in transaction")
	case errors.Is(err, payment.ErrBuyerMismatch):
		return apperrors.UnprocessableError(err, "purchase was made by a different wallet")
	case errors.Is(err, payment.ErrUnsupportedChain):
		return apperrors.UnprocessableError(err, "unsupported chain")
	case errors.Is(err, payment.ErrInvalidCredits):
		return apperrors.UnprocessableError(err, "purchase event carries an invalid credit amount")
	default:
		return err
	}
}
