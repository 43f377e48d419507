package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"specstore/pkg/query"
)

type txState int

const (
	txOpen txState = iota
	txCommitted
	txRolledBack
	txClosed
)

// Transaction is the explicit scoped commit/rollback wrapper handed out by
// Context.BeginTransaction. Disposal with no prior decision performs an
// implicit rollback, never an implicit commit.
type Transaction struct {
	inner  query.Tx
	logger zerolog.Logger
	state  txState
}

// Commit makes every SaveChanges performed inside the scope durable.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.state != txOpen {
		return fmt.Errorf("commit: %w", ErrTransactionDone)
	}
	if err := t.inner.Commit(ctx); err != nil {
		return err
	}
	t.state = txCommitted
	t.logger.Debug().Msg("transaction committed")
	return nil
}

// Rollback discards every SaveChanges performed inside the scope.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.state != txOpen {
		return fmt.Errorf("rollback: %w", ErrTransactionDone)
	}
	if err := t.inner.Rollback(ctx); err != nil {
		return err
	}
	t.state = txRolledBack
	t.logger.Debug().Msg("transaction rolled back")
	return nil
}

// Close rolls back an undecided transaction. Repeated Close never faults.
func (t *Transaction) Close() error {
	if t.state != txOpen {
		return nil
	}
	t.state = txClosed
	if err := t.inner.Close(); err != nil {
		return err
	}
	t.logger.Debug().Msg("transaction closed undecided, rolled back")
	return nil
}
