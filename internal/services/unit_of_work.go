package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hisabkitab/backend/internal/config"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
)

// UnitOfWork runs a function inside a single database transaction and
// retries it a bounded number of times when storage reports a transient
// conflict. Business-rule errors are never retried.
type UnitOfWork struct {
	db         *sql.DB
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewUnitOfWork(db *sql.DB, cfg *config.LedgerConfig, logger *zap.Logger) *UnitOfWork {
	return &UnitOfWork{
		db:         db,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		logger:     logger,
	}
}

// Do commits fn's writes atomically or not at all. fn may run more than once.
func (u *UnitOfWork) Do(ctx context.Context, name string, fn func(tx *sql.Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := u.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			u.logger.Warn("transient conflict in unit of work",
				zap.String("unit", name), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = u.baseDelay
	policy.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(u.maxRetries)), ctx))
	if err != nil && isRetryable(err) {
		return fmt.Errorf("%w: %s gave up after %d attempts: %v", ErrTransientConflict, name, attempt, err)
	}
	return err
}

func (u *UnitOfWork) runOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type retryableError struct {
	err error
}

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

// markRetryable flags a storage error the caller knows is a lost race that a
// fresh attempt will resolve into a proper business error.
func markRetryable(err error) error {
	return retryableError{err: err}
}

func isRetryable(err error) bool {
	var r retryableError
	if errors.As(err, &r) {
		return true
	}
	return hasSQLState(err, sqlStateSerializationFailure, sqlStateDeadlockDetected)
}

func hasSQLState(err error, codes ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	for _, code := range codes {
		if string(pqErr.Code) == code {
			return true
		}
	}
	return false
}
