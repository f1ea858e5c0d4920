// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coordinator implements the top-level GetDiagnostics operation of
// spec.md §6: snapshot reconciliation, admission through the two-class
// scheduler, and the C4 compute sequence, assembled into the one call the
// MCP tool in internal/rpc drives.
//
// Grounded on gopls/internal/server/diagnostics.go's diagnose entrypoint,
// which also reconciles a snapshot before running any analysis.
package coordinator

import (
	"context"

	"github.com/rdiagd/rdiag/internal/coordkey"
	"github.com/rdiagd/rdiag/internal/diagcache"
	"github.com/rdiagd/rdiag/internal/hostadapter"
	"github.com/rdiagd/rdiag/internal/pipeline"
	"github.com/rdiagd/rdiag/internal/scheduler"
	"github.com/rdiagd/rdiag/internal/telemetry"
)

// Coordinator is the process-wide diagnostic coordinator: one cache slot,
// one scheduler, shared by every request regardless of caller.
type Coordinator struct {
	cache     *diagcache.Cache
	scheduler *scheduler.Scheduler
	pipeline  *pipeline.Pipeline
}

// New builds a Coordinator backed by host, with an optional telemetry
// tracker (nil selects a no-op tracker).
func New(host hostadapter.Host, tracker telemetry.Tracker) *Coordinator {
	cache := diagcache.New(host)
	return &Coordinator{
		cache:     cache,
		scheduler: scheduler.New(),
		pipeline:  pipeline.New(cache, host, tracker),
	}
}

// GetDiagnostics implements spec.md §6: reconcile the request's project (and
// document, if any) against the cache's current identity for this snapshot,
// then run the C4 pipeline under the scheduler at the request's priority.
//
// A HIGH request preempts any in-flight NORMAL request immediately and is
// never itself preempted. A preempted NORMAL request retries without
// backoff until it either completes or the caller's own context is done.
func (c *Coordinator) GetDiagnostics(ctx context.Context, request coordkey.Request) (coordkey.Result, error) {
	project, document := c.cache.Reconcile(request.Snapshot, request.Project, request.Document)
	request.Project = project
	request.Document = document

	return scheduler.Run(ctx, c.scheduler, request.Priority, "coordinator.GetDiagnostics", func(attemptCtx context.Context) (coordkey.Result, error) {
		return c.pipeline.Run(attemptCtx, request.Snapshot, request.Project, request)
	})
}

// HighCount and NormalCount expose the scheduler's liveness counters for
// callers that want to report in-flight load (e.g. a debug endpoint).
func (c *Coordinator) HighCount() int   { return c.scheduler.HighCount() }
func (c *Coordinator) NormalCount() int { return c.scheduler.NormalCount() }

// Peek returns the current cache entry, or nil if none has been built yet.
// Debug/introspection only; never used on the request path.
func (c *Coordinator) Peek() *diagcache.Entry { return c.cache.Peek() }
