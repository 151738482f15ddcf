// Package fetch wraps a single remote call and classifies its outcome.
// It never retries, caches or schedules; that policy lives in datastore and
// poller.
package fetch

import (
	"context"
	"fmt"
)

// Result is either Ok(value) or Err(reason).
type Result[T any] struct {
	value T
	err   *Error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func Err[T any](err *Error) Result[T] {
	return Result[T]{err: err}
}

func (r Result[T]) Ok() bool {
	return r.err == nil
}

func (r Result[T]) Value() T {
	return r.value
}

// Err returns the classified failure, or nil for a successful result.
func (r Result[T]) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Do executes op exactly once. Each call is independent, so Do is safe to
// call from many goroutines at once.
func Do[T any](ctx context.Context, name string, op func(ctx context.Context) (T, error)) (res Result[T]) {
	if err := ctx.Err(); err != nil {
		return Err[T](Classify(name, err))
	}

	defer func() {
		if p := recover(); p != nil {
			res = Err[T](&Error{Kind: KindApplication, Op: name, Message: fmt.Sprintf("panic: %v", p)})
		}
	}()

	v, err := op(ctx)
	if err != nil {
		return Err[T](Classify(name, err))
	}
	return Ok(v)
}
