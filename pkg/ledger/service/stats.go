package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/comicvault/credits/pkg/ledger"
)

const statsCacheKey = "ledger"

// weiPerEthExp is the decimal exponent between wei and ether.
const weiPerEthExp = -18

// StatsCache holds computed ledger statistics. Entries expire after the
// cache's TTL; every successful ledger write invalidates them so the next
// reader recomputes. A reader racing a writer may store a value computed
// just before the write; it lives at most one TTL.
type StatsCache interface {
	Get(key string) (*ledger.Stats, bool)
	Set(key string, value *ledger.Stats)
	Invalidate(key string)
}

// Stats returns ledger-wide aggregates, served from the cache while fresh.
func (s *ledgerService) Stats(ctx context.Context) (*ledger.Stats, error) {
	if s.stats != nil {
		if cached, ok := s.stats.Get(statsCacheKey); ok {
			return cached, nil
		}
	}

	agg, err := s.store.Aggregates(ctx, nil)
	if err != nil {
		return nil, err
	}

	paid, err := decimal.NewFromString(agg.TotalPaidWei)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total paid wei %q: %w", agg.TotalPaidWei, err)
	}

	stats := &ledger.Stats{
		TotalPurchased:   agg.TotalPurchased,
		TotalSpent:       agg.TotalSpent,
		TotalAdjusted:    agg.TotalAdjusted,
		Purchases:        agg.Purchases,
		Unlocks:          agg.Unlocks,
		OutstandingTotal: agg.OutstandingTotal,
		TotalPaidEth:     paid.Shift(weiPerEthExp).String(),
		ComputedAt:       s.now().UTC(),
	}

	if s.stats != nil {
		s.stats.Set(statsCacheKey, stats)
	}
	return stats, nil
}

func (s *ledgerService) invalidateStats() {
	if s.stats != nil {
		s.stats.Invalidate(statsCacheKey)
	}
}
