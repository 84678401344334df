// Package store implements the document store the content graph layer runs on.
//
// Documents live in named collections on top of Badger. The store offers the
// primitives the consistency layer depends on: conditional create, atomic
// increment, all-or-nothing batches, optimistic transactions and ordered,
// filtered queries with cursor and offset pagination plus a count aggregate.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dgraph-io/badger/v4"
)

// Default tuning values.
const (
	DefaultMaxTxnRetries = 8
	// MaxBatchOps mirrors the per-commit write limit of hosted document stores.
	MaxBatchOps = 500
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	aggregateCount bool
	maxTxnRetries  uint
	// indexes maps a collection to its sorted indexed fields.
	indexes map[string][]string
}

// Option configures a Store.
type Option func(*Store)

// WithAggregateCount toggles server-side count aggregation.
// When disabled, Query.Count returns ErrAggregateUnsupported.
func WithAggregateCount(enabled bool) Option {
	return func(s *Store) {
		s.aggregateCount = enabled
	}
}

// WithMaxTxnRetries sets how many times a conflicting transaction is attempted.
func WithMaxTxnRetries(n uint) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTxnRetries = n
		}
	}
}

// New opens a Store at path. An empty path opens an in-memory database.
func New(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	var bopts badger.Options
	if path == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(path)
		bopts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
		bopts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	}
	bopts.Logger = nil // Disable Badger's internal logging

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{
		db:             db,
		logger:         logger,
		aggregateCount: true,
		maxTxnRetries:  DefaultMaxTxnRetries,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureIndexes(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare indexes: %w", err)
	}

	if logger != nil {
		if path == "" {
			logger.Info("Badger database opened in memory")
		} else {
			logger.Info("Badger database opened successfully", "path", path)
		}
	}

	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Collection returns a handle on the named collection.
// Collection names must not contain the key separator.
func (s *Store) Collection(name string) *Collection {
	if name == "" || strings.Contains(name, keySeparator) {
		panic(fmt.Sprintf("store: invalid collection name %q", name))
	}
	return &Collection{store: s, name: name}
}

// RunTransaction runs fn inside an optimistic read-write transaction.
//
// Every read made through tx is tracked by Badger; if another transaction
// commits a write to any of those keys first, the commit fails with a conflict
// and fn is run again from scratch on a fresh snapshot. fn must therefore be
// free of side effects outside tx. Errors returned by fn abort the transaction
// and are returned unchanged.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++

		var fnErr error
		commitErr := s.db.Update(func(txn *badger.Txn) error {
			fnErr = fn(&Txn{store: s, txn: txn})
			return fnErr
		})
		if fnErr != nil {
			return struct{}{}, backoff.Permanent(fnErr)
		}
		if errors.Is(commitErr, badger.ErrConflict) {
			return struct{}{}, commitErr
		}
		if commitErr != nil {
			return struct{}{}, backoff.Permanent(unavailable("commit transaction", commitErr))
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(s.maxTxnRetries))

	if errors.Is(err, badger.ErrConflict) {
		if s.logger != nil {
			s.logger.Warn("transaction abandoned after repeated conflicts", "attempts", attempts)
		}
		return unavailable(fmt.Sprintf("transaction contention after %d attempts", attempts), err)
	}
	return err
}

// view runs fn in a read-only transaction.
func (s *Store) view(ctx context.Context, fn func(tx *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&Txn{store: s, txn: txn, readOnly: true})
	})
}
