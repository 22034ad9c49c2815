// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fuse

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchfs/fuse/fuseops"
)

// withTimeout returns a context that is canceled when either parent is
// canceled or d elapses, whichever comes first. Unlike context.WithTimeout,
// a zero or negative d disables the timeout rather than firing immediately,
// since a handler table that leaves an operation's deadline unset should
// behave as though none was requested.
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// mergeContext returns a context that is canceled as soon as any of the
// given parents is canceled, carrying the Err() of whichever parent was
// canceled first and the union of their Done() signals. The returned
// cancel func may be called more than once. The standard library has no multi-parent
// context constructor; this dispatcher needs one because a single
// in-flight request is cancelable by at least two independent sources: the
// kernel's INTERRUPT for that request's unique ID, and the session-wide
// shutdown context torn down on unmount.
func mergeContext(parents ...context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &mergedContext{Context: ctx}

	var once sync.Once
	stop := make(chan struct{})
	for _, p := range parents {
		p := p
		go func() {
			select {
			case <-p.Done():
				once.Do(func() {
					m.mu.Lock()
					m.err = p.Err()
					m.mu.Unlock()
					cancel()
				})
			case <-stop:
			}
		}()
	}

	var stopOnce sync.Once
	return m, func() {
		stopOnce.Do(func() { close(stop) })
		cancel()
	}
}

// mergedContext overrides Err so callers observe the cause that actually
// triggered cancellation rather than context.Canceled, the value the
// context.Background()-derived ctx would otherwise report.
type mergedContext struct {
	context.Context

	mu  sync.Mutex
	err error
}

func (m *mergedContext) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	return m.Context.Err()
}

// raceHandler runs fn in its own goroutine and returns whichever finishes
// first: fn's result, or ctx's cancellation mapped to the errno a handler
// would have returned had it noticed ctx itself. A handler that never
// checks ctx.Done() still causes the wrapper to reply promptly to an
// INTERRUPT; the goroutine running fn is abandoned (not killed, since Go
// has no such mechanism) and its eventual result is discarded.
func raceHandler[Resp any](ctx context.Context, fn func() (Resp, error)) (Resp, error) {
	if err := ctx.Err(); err != nil {
		var zero Resp
		if err == context.DeadlineExceeded {
			return zero, fuseops.ErrTimedOut
		}
		return zero, fuseops.ErrCanceled
	}

	type result struct {
		resp Resp
		err  error
	}

	done := make(chan result, 1)
	go func() {
		resp, err := fn()
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		var zero Resp
		if ctx.Err() == context.DeadlineExceeded {
			return zero, fuseops.ErrTimedOut
		}
		return zero, fuseops.ErrCanceled
	}
}
