package authzkit

import (
	"context"
	"fmt"

	"github.com/fernandezvara/dbkit"
)

// Transaction opens a database transaction, runs fn and commits, or
// rolls back when fn returns an error. The rollback covers statements
// issued on the transaction handle itself; service methods called
// inside fn keep using the pool handle the service was built with and
// are not undone. Use it to group direct store work with an error
// boundary:
//
//	err := service.Transaction(ctx, func(ctx context.Context) error {
//	    if err := service.AssignRole(ctx, "user1", "manager", nil); err != nil {
//	        return err // stops the sequence, error surfaces to the caller
//	    }
//	    return service.RevokeRole(ctx, "user1", "promoter")
//	})
func (s *Service) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Check if we're already in a transaction by casting to dbkit.Tx
	if tx, ok := s.db.(*dbkit.Tx); ok {
		// We're already in a transaction, use savepoint
		return tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	}

	if db, ok := s.db.(*dbkit.DBKit); ok {
		return db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	}

	return fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
}

// TransactionWithOptions is Transaction with custom options, such as
// read-only transactions and isolation levels. Statement coverage is
// the same as Transaction's.
func (s *Service) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error {
	if tx, ok := s.db.(*dbkit.Tx); ok {
		// Nested transactions fall back to savepoints, no options support
		return tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	}

	if db, ok := s.db.(*dbkit.DBKit); ok {
		return db.TransactionWithOptions(ctx, opts, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	}

	return fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
}

// ReadOnlyTransaction executes a function within a read-only database
// transaction. Useful for consistent multi-query audit reads.
func (s *Service) ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}
