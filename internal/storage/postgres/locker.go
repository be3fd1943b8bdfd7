package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// AdvisoryLocker hands out transaction-scoped advisory locks, so every instance sharing the
// database waits on the same key. Each held lock pins one connection of db: give it a pool
// of its own, otherwise lock holders can starve the queries they are waiting to run.
type AdvisoryLocker struct {
	db        *sql.DB
	namespace string
}

func NewAdvisoryLocker(db *sql.DB, namespace string) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, namespace: namespace}
}

func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get lock connection: %w", err)
	}

	// The transaction outlives ctx: the lock is released by unlock, not by cancellation.
	tx, err := conn.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin lock transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, l.namespace+":"+key); err != nil {
		_ = tx.Rollback()
		_ = conn.Close()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = tx.Rollback()
			_ = conn.Close()
		})
	}, nil
}
