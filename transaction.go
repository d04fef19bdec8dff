package tipy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// rollbackSignal is returned by RequestRollback. It unwinds the transaction
// scope it was raised in and is absorbed there.
type rollbackSignal struct {
	depth int
}

func (s *rollbackSignal) Error() string {
	return fmt.Sprintf("tipy: rollback requested at depth %d", s.depth)
}

func (s *rollbackSignal) Is(target error) bool {
	return target == ErrRollbackRequested
}

func savepointName(level int) string {
	return fmt.Sprintf("savepoint_%d", level)
}

// Depth returns the transaction nesting depth: 0 outside a transaction, 1
// inside the outermost one, one more for every nested scope.
func (db *DB) Depth() int { return db.depth }

// InTransaction reports whether a transaction is open.
func (db *DB) InTransaction() bool { return db.depth > 0 }

// CurrentSavepointName returns the savepoint marking the current nested
// scope, or false when no nested scope is open.
func (db *DB) CurrentSavepointName() (string, bool) {
	if db.depth <= 1 {
		return "", false
	}
	return savepointName(db.depth - 1), true
}

// RequestRollback returns the signal that makes the innermost
// RunInTransaction roll its scope back and return nil. Work functions
// return it as their error. Outside a transaction it returns
// ErrRollbackOutsideTransaction instead.
func (db *DB) RequestRollback() error {
	if db.depth == 0 {
		return ErrRollbackOutsideTransaction
	}
	return &rollbackSignal{depth: db.depth}
}

// RunInTransaction runs work inside a transaction scope. The outermost scope
// is a real transaction; nested scopes are savepoints, so rolling one back
// keeps the writes of the scopes around it.
//
// When work returns nil the scope is committed. When it returns the signal
// from RequestRollback the scope is rolled back and nil is returned. Any
// other error rolls the scope back and is returned. A panic rolls the scope
// back and is re-raised.
func (db *DB) RunInTransaction(ctx context.Context, work func(ctx context.Context) error) (err error) {
	if err := db.begin(ctx); err != nil {
		return err
	}
	level := db.depth

	defer func() {
		if p := recover(); p != nil {
			if rbErr := db.rollback(ctx); rbErr != nil {
				db.logger.Error("rollback after panic failed", zap.Int("depth", level), zap.Error(rbErr))
			}
			panic(p)
		}
	}()

	if err = work(ctx); err != nil {
		if rbErr := db.rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		var sig *rollbackSignal
		if errors.As(err, &sig) && sig.depth == level {
			return nil
		}
		return err
	}

	return db.commit(ctx)
}

func (db *DB) begin(ctx context.Context) error {
	stmt := "BEGIN"
	if db.depth > 0 {
		stmt = "SAVEPOINT " + savepointName(db.depth)
	}
	if err := db.execControl(ctx, stmt); err != nil {
		return err
	}
	db.depth++
	db.logger.Debug("transaction scope opened", zap.Int("depth", db.depth))
	return nil
}

func (db *DB) commit(ctx context.Context) error {
	stmt := "COMMIT"
	if db.depth > 1 {
		stmt = "RELEASE SAVEPOINT " + savepointName(db.depth-1)
	}
	if err := db.execControl(ctx, stmt); err != nil {
		// The scope is still open; unwind it so depth matches the database.
		if rbErr := db.rollback(ctx); rbErr != nil {
			db.logger.Error("rollback after failed commit failed", zap.Error(rbErr))
		}
		return err
	}
	db.logger.Debug("transaction scope committed", zap.Int("depth", db.depth))
	db.depth--
	return nil
}

// rollback undoes the current scope and leaves it.
func (db *DB) rollback(ctx context.Context) error {
	stmt := "ROLLBACK"
	if db.depth > 1 {
		stmt = "ROLLBACK TO SAVEPOINT " + savepointName(db.depth-1)
	}
	err := db.execControl(ctx, stmt)
	db.logger.Debug("transaction scope rolled back", zap.Int("depth", db.depth))
	db.depth--
	return err
}

// HardRollback aborts the whole transaction regardless of nesting and
// resets the depth to zero. It is meant for shutdown paths such as signal
// handlers; Close calls it when a transaction is still open.
func (db *DB) HardRollback(ctx context.Context) error {
	if db.depth == 0 {
		return nil
	}
	db.depth = 0
	return db.execControl(ctx, "ROLLBACK")
}
