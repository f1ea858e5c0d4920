// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scheduler implements C3: the two-class (HIGH/NORMAL) preemptive
// scheduler over in-flight compute attempts, with drain-based admission and
// an unbounded retry loop for preempted NORMAL requests.
//
// Grounded on gopls/internal/cache/future.go's cancel-and-retry shape ("if
// the computation is cancelled, hand it to the next requester") and
// gopls/internal/cache/check.go's use of context.WithCancel / errgroup for
// per-attempt linked cancellation.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rdiagd/rdiag/internal/coordkey"
)

// highTicket is the task handle registered for one in-flight HIGH attempt.
// NORMAL's drain loop awaits Done being closed.
type highTicket struct {
	done chan struct{}
}

// normalTicket is the cancel source registered for one in-flight NORMAL
// attempt. Debug-mode callers never touch it except through Scheduler's own
// preempt routine.
type normalTicket struct {
	cancel context.CancelFunc
}

// Scheduler holds the two registries of spec.md §4.3, guarded by a single
// mutex. The zero value is not usable; construct with New.
type Scheduler struct {
	mu            sync.Mutex
	highTasks     map[*highTicket]struct{}
	normalCancels map[*normalTicket]struct{}
}

// New returns a ready Scheduler.
func New() *Scheduler {
	return &Scheduler{
		highTasks:     make(map[*highTicket]struct{}),
		normalCancels: make(map[*normalTicket]struct{}),
	}
}

// HighCount reports the number of currently registered HIGH tickets. Test
// and liveness-property helper only.
func (s *Scheduler) HighCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.highTasks)
}

// NormalCount reports the number of currently registered NORMAL cancel
// sources. Test and liveness-property helper only.
func (s *Scheduler) NormalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.normalCancels)
}

// firePreempt snapshots normalCancels under the lock and fires each cancel
// function outside the lock. Firing an already-disposed cancel function is
// a safe no-op in Go's context package, which absorbs exactly the race
// spec.md §4.3 step 2 calls out.
func (s *Scheduler) firePreempt() {
	s.mu.Lock()
	victims := make([]*normalTicket, 0, len(s.normalCancels))
	for t := range s.normalCancels {
		victims = append(victims, t)
	}
	s.mu.Unlock()

	for _, t := range victims {
		t.cancel()
	}
}

// drainHigh repeatedly snapshots highTasks and awaits every member to
// completion, returning to the snapshot step until an iteration observes an
// empty set. New HIGH arrivals during the drain are waited on too (spec.md
// §4.3 step 3). It returns the caller's cancellation if ctx is done while
// waiting.
func (s *Scheduler) drainHigh(ctx context.Context) error {
	for {
		s.mu.Lock()
		snapshot := make([]*highTicket, 0, len(s.highTasks))
		for t := range s.highTasks {
			snapshot = append(snapshot, t)
		}
		s.mu.Unlock()

		if len(snapshot) == 0 {
			return nil
		}

		for _, t := range snapshot {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.done:
			}
		}
	}
}

// registerHigh inserts t, asserting absence before insertion.
func (s *Scheduler) registerHigh(t *highTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.highTasks[t]; dup {
		panic("scheduler: duplicate high ticket registration")
	}
	s.highTasks[t] = struct{}{}
}

func (s *Scheduler) deregisterHigh(t *highTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.highTasks, t)
}

func (s *Scheduler) registerNormal(t *normalTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.normalCancels[t]; dup {
		panic("scheduler: duplicate normal ticket registration")
	}
	s.normalCancels[t] = struct{}{}
}

func (s *Scheduler) deregisterNormal(t *normalTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.normalCancels, t)
}

// Run admits one request at priority, retrying an unbounded number of times
// while preempted, and returns the first attempt's result that either
// succeeds or fails for a reason other than this scheduler's own preempt
// signal (spec.md §4.3, §7).
//
// compute is invoked with a per-attempt context linking ctx (the caller's
// cancellation) with this attempt's own cancel source; compute must honor
// that context promptly.
//
// Run is a free function, not a method, because Go methods cannot carry
// their own type parameters independent of the receiver's.
func Run[R any](ctx context.Context, s *Scheduler, priority coordkey.Priority, op string, compute func(context.Context) (R, error)) (R, error) {
	var zero R
	for {
		if err := ctx.Err(); err != nil {
			return zero, coordkey.NewCancelled(op, err)
		}

		if priority == coordkey.PriorityHigh {
			s.firePreempt()
		} else {
			if err := s.drainHigh(ctx); err != nil {
				return zero, coordkey.NewCancelled(op, err)
			}
		}

		attemptCtx, cancel := context.WithCancel(ctx)

		var (
			result R
			runErr error
		)
		if priority == coordkey.PriorityHigh {
			ht := &highTicket{done: make(chan struct{})}
			s.registerHigh(ht)
			result, runErr = compute(attemptCtx)
			close(ht.done)
			s.deregisterHigh(ht)
		} else {
			nt := &normalTicket{cancel: cancel}
			s.registerNormal(nt)
			result, runErr = compute(attemptCtx)
			s.deregisterNormal(nt)
		}
		cancel()

		if runErr == nil {
			return result, nil
		}

		if !isContextCancellation(runErr) {
			// HostFailure or any other error: no retry, propagate as-is.
			return zero, runErr
		}

		if ctx.Err() != nil {
			// The caller's own token tripped: propagate unchanged.
			return zero, coordkey.NewCancelled(op, ctx.Err())
		}

		// The local attempt's cancel source fired, and it wasn't the
		// caller's doing: this can only be a preempt (spec.md §4.3 step
		// 7/Retry rule). Only NORMAL attempts are ever preempted.
		if priority == coordkey.PriorityHigh {
			return zero, coordkey.NewContractViolation(op, "high-priority attempt observed an un-caller-driven cancellation")
		}
		// Retry: loop back to step 1. No backoff (spec.md §9).
	}
}

// isContextCancellation reports whether err represents a context
// cancellation. A *coordkey.CoordError is classified purely by its Kind
// (a HostFailure wrapping a context error, e.g. one surfaced while honoring
// a deadline internally, is still a HostFailure); any other error falls
// back to a raw context.Canceled/DeadlineExceeded check.
func isContextCancellation(err error) bool {
	if k, ok := coordkey.KindOf(err); ok {
		return k == coordkey.KindCancelled || k == coordkey.KindPreempted
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
