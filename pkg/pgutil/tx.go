package pgutil

import (
	"context"
	"database/sql"
	"sync"

	"github.com/uptrace/bun"
)

// Scope is an open unit of work bound to a single database transaction.
//
// Functions that compose several writes accept a *Scope. A nil scope means
// "open your own transaction"; a non-nil scope must be joined, never nested.
type Scope struct {
	tx bun.IDB

	mu    sync.Mutex
	hooks []func()
}

// DB returns the query runner of the scope.
func (s *Scope) DB() bun.IDB {
	return s.tx
}

// AfterCommit registers fn to run once the transaction owning the scope has
// committed. Hooks of a rolled back transaction never run.
func (s *Scope) AfterCommit(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

func (s *Scope) committed() {
	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// NewScope wraps an existing query runner.
func NewScope(db bun.IDB) *Scope {
	return &Scope{tx: db}
}

// Transactor opens units of work.
type Transactor interface {
	// Run executes fn inside scope when it is non-nil, otherwise inside a
	// new transaction that is committed when fn returns nil.
	Run(ctx context.Context, scope *Scope, fn func(ctx context.Context, scope *Scope) error) error
}

type txRunner struct {
	db   *bun.DB
	opts *sql.TxOptions
}

// NewTransactor returns a Transactor backed by db using READ COMMITTED transactions.
// Per-user serialization is achieved with row locks, not with isolation level.
func NewTransactor(db *bun.DB) Transactor {
	return &txRunner{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

func (r *txRunner) Run(ctx context.Context, scope *Scope, fn func(ctx context.Context, scope *Scope) error) error {
	if scope != nil {
		return fn(ctx, scope)
	}

	var own *Scope
	err := r.db.RunInTx(ctx, r.opts, func(ctx context.Context, tx bun.Tx) error {
		own = &Scope{tx: tx}
		return fn(ctx, own)
	})
	if err != nil {
		return err
	}
	own.committed()
	return nil
}

// InMemoryTransactor runs units of work without a database. Services under
// test use it with mocked stores; Runs counts the transactions it opened.
type InMemoryTransactor struct {
	mu   sync.Mutex
	Runs int
}

func (t *InMemoryTransactor) Run(ctx context.Context, scope *Scope, fn func(ctx context.Context, scope *Scope) error) error {
	if scope != nil {
		return fn(ctx, scope)
	}

	t.mu.Lock()
	t.Runs++
	t.mu.Unlock()

	own := &Scope{}
	if err := fn(ctx, own); err != nil {
		return err
	}
	own.committed()
	return nil
}
