package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/comicvault/credits/internal/metrics"
	"github.com/comicvault/credits/pkg/config"
)

// ChainReader is the read-only chain access the verifier needs.
// *ethclient.Client satisfies it.
type ChainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// DialChain connects to the configured RPC endpoint and wraps it with a
// per-call timeout and a circuit breaker.
func DialChain(cfg *config.PaymentConfig, logger *zap.Logger) (ChainReader, func(), error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}

	logger.Info("Connected to chain RPC",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("payment_contract", cfg.ContractAddress))

	return NewBreakerReader(client, cfg.RPCTimeout, cfg.Breaker, logger), client.Close, nil
}

type breakerReader struct {
	next    ChainReader
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[any]
}

// NewBreakerReader bounds every call by timeout and stops calling next while
// the breaker is open. A missing transaction is an answer, not a failure, so
// it never trips the breaker.
func NewBreakerReader(next ChainReader, timeout time.Duration, cfg config.BreakerConfig, logger *zap.Logger) ChainReader {
	metrics.ChainBreakerState.Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "chain-rpc",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ethereum.NotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("chain RPC circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.ChainBreakerState.Set(breakerStateValue(to))
		},
	})

	return &breakerReader{next: next, timeout: timeout, cb: cb}
}

func (r *breakerReader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	res, err := r.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) (any, error) {
		return r.next.TransactionReceipt(ctx, txHash)
	})
	if err != nil {
		return nil, err
	}
	return res.(*types.Receipt), nil
}

type txLookup struct {
	tx      *types.Transaction
	pending bool
}

func (r *breakerReader) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	res, err := r.call(ctx, "eth_getTransactionByHash", func(ctx context.Context) (any, error) {
		tx, pending, err := r.next.TransactionByHash(ctx, txHash)
		if err != nil {
			return nil, err
		}
		return txLookup{tx: tx, pending: pending}, nil
	})
	if err != nil {
		return nil, false, err
	}
	lookup := res.(txLookup)
	return lookup.tx, lookup.pending, nil
}

func (r *breakerReader) call(ctx context.Context, method string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	defer func() {
		metrics.ChainRPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	return r.cb.Execute(func() (any, error) {
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
