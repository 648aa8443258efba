package database

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/keylock"
)

// AdvisoryLocker serialises critical sections across processes using PostgreSQL
// transaction-level advisory locks. Ending the transaction releases every key, so a
// lock granted while the caller's context was being cancelled cannot outlive the section.
type AdvisoryLocker struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewAdvisoryLocker constructs an AdvisoryLocker.
func NewAdvisoryLocker(db *sqlx.DB, logger *zap.Logger) *AdvisoryLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisoryLocker{db: db, logger: logger}
}

// Lock takes pg_advisory_xact_lock for every key in sorted order inside one transaction.
// The returned function rolls the transaction back.
func (l *AdvisoryLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := keylock.Normalize(keys)
	// The transaction is not bound to ctx: a cancelled request must not drop the locks
	// while its critical section is still running.
	tx, err := l.db.BeginTxx(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("begin lock transaction: %w", err)
	}

	release := func() {
		if err := tx.Rollback(); err != nil {
			l.logger.Warn("advisory lock release failed", zap.Strings("keys", ordered), zap.Error(err))
		}
	}

	for _, key := range ordered {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, AdvisoryKey(key)); err != nil {
			release()
			return nil, fmt.Errorf("advisory lock %s: %w", key, err)
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// AdvisoryKey maps a textual lock key onto PostgreSQL's bigint lock space.
func AdvisoryKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
