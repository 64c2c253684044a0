package noncestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/comicvault/credits/pkg/pgutil"
	mghelper "github.com/comicvault/credits/pkg/pgutil/migrations"
	"github.com/comicvault/credits/pkg/session"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &NonceDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, &pgStore{db: db}
}

func TestNoncePGStore_InsertConsume(t *testing.T) {
	ctx, s := setupStore(t)

	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Microsecond)
	err := s.Insert(ctx, &session.Nonce{
		Value:     "abc123def456",
		Address:   "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	got, err := s.Consume(ctx, "abc123def456")
	if err != nil {
		t.Fatalf("Consume() failed: %v", err)
	}
	if got.Address != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("address not normalized: %s", got.Address)
	}
	if !got.ExpiresAt.Equal(expires) {
		t.Fatalf("expires_at mismatch: got %v want %v", got.ExpiresAt, expires)
	}

	if _, err = s.Consume(ctx, "abc123def456"); !errors.Is(err, session.ErrNonceNotFound) {
		t.Fatalf("expected ErrNonceNotFound on second consume, got %v", err)
	}
}

func TestNoncePGStore_ConsumeOnce_Concurrent(t *testing.T) {
	ctx, s := setupStore(t)

	if err := s.Insert(ctx, &session.Nonce{
		Value:     "racenonce01",
		Address:   "0x1111111111111111111111111111111111111111",
		ExpiresAt: time.Now().Add(time.Minute),
	}); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Consume(ctx, "racenonce01")
			if err != nil && !errors.Is(err, session.ErrNonceNotFound) {
				t.Errorf("Consume() failed: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", wins)
	}
}

func TestNoncePGStore_SweepExpired(t *testing.T) {
	ctx, s := setupStore(t)

	now := time.Now()
	for value, expires := range map[string]time.Time{
		"expired0001": now.Add(-time.Hour),
		"expired0002": now.Add(-time.Second),
		"live0000001": now.Add(time.Hour),
	} {
		if err := s.Insert(ctx, &session.Nonce{
			Value:     value,
			Address:   "0x2222222222222222222222222222222222222222",
			ExpiresAt: expires,
		}); err != nil {
			t.Fatalf("Insert(%s) failed: %v", value, err)
		}
	}

	swept, err := s.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("SweepExpired() failed: %v", err)
	}
	if swept != 2 {
		t.Fatalf("expected 2 swept nonces, got %d", swept)
	}
	pgutil.AssertRowCount(t, s.db, "siwe_nonces", 1)

	if _, err = s.Consume(ctx, "live0000001"); err != nil {
		t.Fatalf("expected live nonce to survive sweep: %v", err)
	}
}
