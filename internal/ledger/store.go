package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// DefaultMaxRetries is the number of times a conflicting transaction is retried.
const DefaultMaxRetries = 5

// TxFunc is the body of a transaction. Returning an error rolls the transaction back.
type TxFunc func(ctx context.Context, tx *Tx) error

// Store runs transaction bodies against a Backend, retrying on ErrConflict.
type Store struct {
	backend    Backend
	maxRetries uint64
	newBackOff func() backoff.BackOff
	onRetry    func(err error)
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRetries sets how many times a conflicting transaction is retried.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n < 0 {
			n = 0
		}
		s.maxRetries = uint64(n)
	}
}

// WithBackOff replaces the retry schedule. Primarily used for testing.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *Store) {
		s.newBackOff = fn
	}
}

// WithRetryHook registers a callback invoked before each retry.
func WithRetryHook(fn func(err error)) Option {
	return func(s *Store) {
		s.onRetry = fn
	}
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		maxRetries: DefaultMaxRetries,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0 // bounded by retry count
	b.Reset()
	return b
}

// RunInTx runs fn in a new transaction and commits whatever it staged.
// Conflicts are retried with backoff; any other error is returned unchanged.
// When retries are exhausted the returned error wraps ErrConflict.
func (s *Store) RunInTx(ctx context.Context, fn TxFunc) error {
	attempt := 0
	op := func() error {
		attempt++
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConflict) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)
	err := backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("next_retry_in", next).
			Msg("ledger transaction conflict, retrying")
		if s.onRetry != nil {
			s.onRetry(err)
		}
	})
	if err != nil && errors.Is(err, ErrConflict) {
		return fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return err
}

func (s *Store) runOnce(ctx context.Context, fn TxFunc) error {
	sess, err := s.backend.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sess.Rollback(ctx) }() // Safe: no-op if committed

	tx := newTx(sess)
	defer tx.finish()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}
