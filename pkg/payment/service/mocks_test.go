package service

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/ledger"
	"github.com/comicvault/credits/pkg/payment"
	"github.com/comicvault/credits/pkg/pgutil"
)

// MockChain is a mock implementation of payment.ChainReader
type MockChain struct {
	receipts map[common.Hash]*types.Receipt
	txs      map[common.Hash]*types.Transaction
	pending  map[common.Hash]bool
	Calls    int

	TransactionReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

func newMockChain() *MockChain {
	return &MockChain{
		receipts: make(map[common.Hash]*types.Receipt),
		txs:      make(map[common.Hash]*types.Transaction),
		pending:  make(map[common.Hash]bool),
	}
}

func (m *MockChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.Calls++
	if m.TransactionReceiptFunc != nil {
		return m.TransactionReceiptFunc(ctx, txHash)
	}
	r, ok := m.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (m *MockChain) TransactionByHash(_ context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	m.Calls++
	tx, ok := m.txs[txHash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, m.pending[txHash], nil
}

// MockLedger records credits in memory, keyed by transaction hash.
type MockLedger struct {
	entries map[string]*ledger.Transaction
	Credits []*ledger.CreditRequest

	AppendCreditFunc func(ctx context.Context, scope *pgutil.Scope, req *ledger.CreditRequest) (*ledger.CreditResult, error)
}

func newMockLedger() *MockLedger {
	return &MockLedger{entries: make(map[string]*ledger.Transaction)}
}

func (m *MockLedger) AppendCredit(ctx context.Context, scope *pgutil.Scope, req *ledger.CreditRequest) (*ledger.CreditResult, error) {
	m.Credits = append(m.Credits, req)
	if m.AppendCreditFunc != nil {
		return m.AppendCreditFunc(ctx, scope, req)
	}
	if existing, ok := m.entries[req.TxHash]; ok {
		return &ledger.CreditResult{Transaction: existing, Replayed: true}, nil
	}
	hash, chainID, wei := req.TxHash, req.ChainID, req.AmountPaidWei
	tx := &ledger.Transaction{
		ID:            int64(len(m.entries) + 1),
		UserID:        req.UserID,
		Type:          ledger.TypePurchase,
		Amount:        req.Amount,
		TxHash:        &hash,
		ChainID:       &chainID,
		AmountPaidWei: &wei,
		Status:        ledger.StatusConfirmed,
	}
	m.entries[req.TxHash] = tx
	return &ledger.CreditResult{Transaction: tx}, nil
}

func (m *MockLedger) TransactionByHash(_ context.Context, _ *pgutil.Scope, txHash string) (*ledger.Transaction, error) {
	tx, ok := m.entries[strings.ToLower(txHash)]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	return tx, nil
}

// MockService is a mock implementation of Service
type MockService struct {
	VerifyAndCreditFunc func(ctx context.Context, req *payment.PurchaseRequest) (*payment.PurchaseResult, error)
}

func (m *MockService) VerifyAndCredit(ctx context.Context, req *payment.PurchaseRequest) (*payment.PurchaseResult, error) {
	if m.VerifyAndCreditFunc != nil {
		return m.VerifyAndCreditFunc(ctx, req)
	}
	return &payment.PurchaseResult{TxHash: req.TxHash}, nil
}

// purchaseFixture builds confirmed purchase transactions for MockChain.
type purchaseFixture struct {
	t     *testing.T
	cfg   *config.PaymentConfig
	event abi.Event
	chain *MockChain
}

func newPurchaseFixture(t *testing.T, chain *MockChain) *purchaseFixture {
	t.Helper()

	cfg := &config.PaymentConfig{
		RPCURL:          "http://localhost:8545",
		ContractAddress: "0x00000000000000000000000000000000000C0DE1",
	}
	if err := defaults.Set(cfg); err != nil {
		t.Fatalf("failed to apply config defaults: %v", err)
	}
	cfg.ChainID = 8453

	parsed, err := abi.JSON(strings.NewReader(cfg.Event.ABI))
	if err != nil {
		t.Fatalf("failed to parse ABI: %v", err)
	}
	return &purchaseFixture{t: t, cfg: cfg, event: parsed.Events[cfg.Event.Name], chain: chain}
}

func (f *purchaseFixture) contract() common.Address {
	return common.HexToAddress(f.cfg.ContractAddress)
}

func (f *purchaseFixture) purchaseLog(emitter, buyer common.Address, credits, paid *big.Int) *types.Log {
	f.t.Helper()
	data, err := f.event.Inputs.NonIndexed().Pack(credits, paid)
	if err != nil {
		f.t.Fatalf("failed to pack event data: %v", err)
	}
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{f.event.ID, common.BytesToHash(buyer.Bytes())},
		Data:    data,
	}
}

// add registers a mined transaction sent to `to` whose receipt carries logs.
func (f *purchaseFixture) add(hash common.Hash, to common.Address, status uint64, logs ...*types.Log) {
	f.chain.txs[hash] = types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      100000,
		GasPrice: big.NewInt(1),
	})
	f.chain.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: big.NewInt(100),
		Logs:        logs,
	}
}

// addPurchase registers a successful purchase of credits by buyer.
func (f *purchaseFixture) addPurchase(hash common.Hash, buyer common.Address, credits int64, paidWei string) {
	paid, ok := new(big.Int).SetString(paidWei, 10)
	if !ok {
		f.t.Fatalf("invalid wei amount %q", paidWei)
	}
	f.add(hash, f.contract(), types.ReceiptStatusSuccessful,
		f.purchaseLog(f.contract(), buyer, big.NewInt(credits), paid))
}
