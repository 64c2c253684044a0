// Package noncestore persists single-use sign-in nonces.
package noncestore

import (
	"context"
	"time"

	"github.com/comicvault/credits/pkg/session"
)

// Store defines the interface for nonce persistence.
type Store interface {
	Insert(ctx context.Context, nonce *session.Nonce) error
	// Consume deletes the nonce and returns it, or session.ErrNonceNotFound.
	// Of several concurrent calls for one nonce at most one succeeds.
	Consume(ctx context.Context, value string) (*session.Nonce, error)
	// SweepExpired deletes nonces that expired at or before now.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
