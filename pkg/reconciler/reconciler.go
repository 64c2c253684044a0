// Package reconciler runs background housekeeping for the credits service:
// sweeping expired sign-in nonces and repairing cached balances from the ledger.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/comicvault/credits/internal/metrics"
	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/ledger"
)

const runTimeout = 2 * time.Minute

// NonceSweeper deletes expired sign-in nonces.
type NonceSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserLister lists every user whose balance should be reconciled.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// BalanceReconciler recomputes one cached balance from the ledger.
type BalanceReconciler interface {
	Reconcile(ctx context.Context, userID int64) (*ledger.ReconcileResult, error)
}

// Summary reports the outcome of a full reconciliation pass.
type Summary struct {
	Users    int
	Repaired int
	Failed   int
	// TotalDrift is the sum of absolute drifts repaired.
	TotalDrift int64
}

// Reconciler handles periodic maintenance of derived state
type Reconciler struct {
	nonces NonceSweeper
	users  UserLister
	ledger BalanceReconciler
	cfg    config.MaintenanceConfig
	logger *zap.Logger
	now    func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Reconciler
func New(cfg config.MaintenanceConfig, nonces NonceSweeper, users UserLister, ledger BalanceReconciler, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		nonces: nonces,
		users:  users,
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// SweepNonces deletes every nonce that expired before now.
func (r *Reconciler) SweepNonces(ctx context.Context) (int64, error) {
	n, err := r.nonces.SweepExpired(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep nonces: %w", err)
	}
	metrics.NoncesSwept.Add(float64(n))
	if n > 0 {
		r.logger.Debug("Swept expired nonces", zap.Int64("count", n))
	}
	return n, nil
}

// ReconcileAll reconciles every user's cached balance. A failure for one user
// is logged and counted; the pass continues with the next user.
func (r *Reconciler) ReconcileAll(ctx context.Context) (*Summary, error) {
	r.logger.Info("Starting balance reconciliation")
	start := time.Now()

	ids, err := r.users.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	summary := &Summary{Users: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := r.ledger.Reconcile(ctx, id)
		if err != nil {
			summary.Failed++
			metrics.ErrorsTotal.WithLabelValues("reconciler", "reconcile").Inc()
			r.logger.Warn("Failed to reconcile balance", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		if res.Drift != 0 {
			summary.Repaired++
			summary.TotalDrift += absDrift(res.Drift)
		}
	}

	r.logger.Info("Balance reconciliation completed",
		zap.Int("users", summary.Users),
		zap.Int("repaired", summary.Repaired),
		zap.Int("failed", summary.Failed),
		zap.Int64("total_drift", summary.TotalDrift),
		zap.Duration("duration", time.Since(start)))

	return summary, nil
}

// Start launches the background loops. The reconciliation loop only runs when
// a reconcile interval is configured.
func (r *Reconciler) Start() {
	if r.cfg.NonceSweepInterval > 0 {
		r.loop("nonce sweep", r.cfg.NonceSweepInterval, func(ctx context.Context) error {
			_, err := r.SweepNonces(ctx)
			return err
		})
	}
	if r.cfg.ReconcileInterval > 0 {
		r.loop("balance reconciliation", r.cfg.ReconcileInterval, func(ctx context.Context) error {
			_, err := r.ReconcileAll(ctx)
			return err
		})
	}
}

func (r *Reconciler) loop(name string, interval time.Duration, run func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.logger.Info("Started periodic "+name, zap.Duration("interval", interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
				if err := run(ctx); err != nil {
					metrics.ErrorsTotal.WithLabelValues("reconciler", "periodic").Inc()
					r.logger.Error("Periodic "+name+" failed", zap.Error(err))
				}
				cancel()
			case <-r.stopCh:
				r.logger.Info("Stopping periodic " + name)
				return
			}
		}
	}()
}

// Stop stops the background loops and waits for a running pass to finish
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func absDrift(d int64) int64 {
	if d < 0 {
		return -d
	}
	return d
}
