// Package poll waits for a condition on live page state.
//
// A check is evaluated immediately and then once per interval until it holds
// or the deadline passes. A check that returns an error counts as "not yet":
// locating an element that is not on the page is an ordinary outcome while
// waiting, never a reason to stop.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/errs"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

// Options bounds a wait.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// Expect names the awaited state in the timeout error.
	Expect string
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Expect == "" {
		o.Expect = "condition"
	}
	return o
}

// Until blocks until check reports true. It returns an errs.Timeout error
// naming opts.Expect when the timeout elapses or ctx ends first.
func Until(ctx context.Context, opts Options, check func(context.Context) (bool, error)) error {
	_, err := Value(ctx, opts, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := check(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// Value blocks until fn accepts a value and returns that value.
func Value[T any](ctx context.Context, opts Options, fn func(context.Context) (T, bool, error)) (T, error) {
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var (
		zero    T
		lastErr error
		tries   int
	)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		tries++
		v, ok, err := fn(ctx)
		if err == nil && ok {
			return v, nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			cause := lastErr
			if cause == nil {
				cause = ctx.Err()
			}
			msg := fmt.Sprintf("gave up after %s (%d checks)", opts.Timeout, tries)
			return zero, &errs.Error{Code: errs.Timeout, Message: msg, Expected: opts.Expect, Err: cause}
		case <-ticker.C:
		}
	}
}
