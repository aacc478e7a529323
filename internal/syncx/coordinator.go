// Package syncx provides a single-flight coordinator: concurrent callers of
// RunExclusive share one execution of the function and its result.
package syncx

import (
	"context"

	"golang.org/x/sync/singleflight"
)

const flightKey = "exclusive"

// Coordinator serialises one kind of operation. The zero value is ready to
// use; each Coordinator is independent of every other.
type Coordinator[T any] struct {
	g singleflight.Group
}

// RunExclusive runs fn unless a call is already in flight, in which case it
// waits for that call and returns its result. shared reports whether the
// result was delivered to more than one caller.
//
// fn runs detached from the caller's cancellation so that one caller giving
// up does not fail the others; a caller whose ctx ends stops waiting and
// gets ctx.Err().
func (c *Coordinator[T]) RunExclusive(ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, shared bool, err error) {
	ch := c.g.DoChan(flightKey, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return v, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}
