// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"time"
)

// ObserveFunc receives the duration and outcome of one completion call.
type ObserveFunc func(elapsed time.Duration, err error)

type observed struct {
	next Completer
	fn   ObserveFunc
}

// Observe wraps c so fn sees every call.
func Observe(c Completer, fn ObserveFunc) Completer {
	if fn == nil {
		return c
	}
	return &observed{next: c, fn: fn}
}

func (o *observed) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := o.next.Complete(ctx, req)
	o.fn(time.Since(start), err)
	return out, err
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
