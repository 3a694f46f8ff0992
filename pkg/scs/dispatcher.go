// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"context"
	"errors"
)

// ErrDispatcherStopped is returned by Submit once Run has returned
var ErrDispatcherStopped = errors.New("scs: dispatcher stopped")

// Request is one queued round trip
type Request struct {
	ID     uint8
	Op     Opcode
	Params []byte
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan Result
}

// Dispatcher issues round trips on a Session from a single worker, in the
// order callers hand them over. Callers block in Submit until the worker
// accepts their request, so waiting callers form a FIFO queue.
type Dispatcher struct {
	session *Session
	queue   chan job
	done    chan struct{}
}

// NewDispatcher creates a dispatcher for s. Call Run to start it.
func NewDispatcher(s *Session) *Dispatcher {
	return &Dispatcher{
		session: s,
		queue:   make(chan job),
		done:    make(chan struct{}),
	}
}

// Run executes queued requests until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-d.queue:
			j.reply <- d.session.RoundTrip(j.ctx, j.req.ID, j.req.Op, j.req.Params)
		}
	}
}

// Submit hands req to the worker and returns a channel that receives the
// result. It blocks until the worker takes the request.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (<-chan Result, error) {
	j := job{ctx: ctx, req: req, reply: make(chan Result, 1)}
	select {
	case d.queue <- j:
		return j.reply, nil
	case <-d.done:
		return nil, ErrDispatcherStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits req and waits for its result
func (d *Dispatcher) Do(ctx context.Context, req Request) Result {
	reply, err := d.Submit(ctx, req)
	if err != nil {
		return Result{Outcome: RxUnavailable, Err: err}
	}
	return <-reply
}
