package ledger

import (
	"context"
	"errors"

	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
)

// TranslateError maps a store sentinel to its domain code. Domain errors
// pass through with their code intact.
func TranslateError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInsufficientFunds, msg)
	case errors.Is(err, sentinel.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// Atomically runs fn in one transaction when runner is non-nil, and directly
// against store otherwise. Callers without a runner must keep fn's writes
// individually idempotent.
func Atomically(ctx context.Context, store Store, runner TxRunner, fn func(Store) error) error {
	if runner == nil {
		return fn(store)
	}
	return runner.RunInTx(ctx, fn)
}
