// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diagcache implements C2: the single-slot memoization cache of
// (SnapshotID, ProjectID) -> CacheEntry, with snapshot-identity
// reconciliation.
//
// Grounded on the single-mutex-guarded-field idiom of gopls/internal/cache/
// session.go and view.go, deliberately rejecting the teacher's own
// futureCache/analysisNode map-of-packages approach: spec.md §4.2 and §9
// ("cache vs map") call for exactly one slot, replaced wholesale on miss,
// with no LRU and no per-project map.
package diagcache

import (
	"context"
	"sync"

	"github.com/rdiagd/rdiag/internal/analyzerset"
	"github.com/rdiagd/rdiag/internal/coordkey"
	"github.com/rdiagd/rdiag/internal/hostadapter"
)

// Entry is the CacheEntry record of spec.md §3. At most one exists
// process-wide.
type Entry struct {
	Snapshot coordkey.SnapshotID
	Project  coordkey.ProjectHandle
	Context  *hostadapter.AnalysisContext
	IDMap    *coordkey.AnalyzerIDMap
}

// Cache holds the single process-wide CacheEntry slot. The zero value is
// not usable; construct with New.
type Cache struct {
	host hostadapter.Host

	mu    sync.Mutex
	entry *Entry // nil until the first build
}

// New returns a Cache that builds entries via host.
func New(host hostadapter.Host) *Cache {
	return &Cache{host: host}
}

// identical reports whether a and b are the same ProjectHandle instance:
// both carry the same non-zero identity stamp (see
// coordkey.ProjectHandle.WithNewIdentity). Unstamped handles never match.
func identical(a, b coordkey.ProjectHandle) bool {
	// The source language distinguishes handle instances by reference
	// equality. In Go we approximate that with the handle's HandleIdentity,
	// stamped by whoever constructs the handle (see coordkey.ProjectHandle).
	return a.HandleIdentity() != 0 && a.HandleIdentity() == b.HandleIdentity()
}

// GetOrBuild implements the C2 contract. If the current entry matches both
// snapshot and the exact project identity, it is returned unchanged.
// Otherwise a new entry is built via analyzerset.Build and the Host
// Adapter, and the single slot is replaced unconditionally under the cache
// lock.
//
// Only document-scoped requests go through GetOrBuild. Whole-project
// requests bypass the slot entirely: callers use BuildTransient for them
// instead.
func (c *Cache) GetOrBuild(ctx context.Context, snapshot coordkey.SnapshotID, project coordkey.ProjectHandle) (*Entry, error) {
	c.mu.Lock()
	cur := c.entry
	c.mu.Unlock()

	if cur != nil && cur.Snapshot == snapshot && identical(cur.Project, project) {
		return cur, nil
	}

	entry, err := c.build(ctx, snapshot, project)
	if err != nil {
		// Build failures propagate; the slot is left unchanged (spec.md
		// §4.2 Failure modes).
		return nil, err
	}

	c.mu.Lock()
	c.entry = entry
	c.mu.Unlock()

	return entry, nil
}

// build runs C1 then asks the Host Adapter for a concurrent compilation and
// a bound AnalysisContext. It never touches the cache slot.
func (c *Cache) build(ctx context.Context, snapshot coordkey.SnapshotID, project coordkey.ProjectHandle) (*Entry, error) {
	idMap, analyzers := analyzerset.Build(project)

	compilation, err := project.GetCompilation(ctx)
	if err != nil {
		return nil, coordkey.WrapHostError("diagcache.build", err)
	}
	compilation, err = c.host.WithConcurrentBuild(ctx, compilation)
	if err != nil {
		return nil, coordkey.WrapHostError("diagcache.build", err)
	}
	ac, err := c.host.WithAnalyzers(ctx, compilation, analyzers, hostadapter.DefaultOptions(nil))
	if err != nil {
		return nil, coordkey.WrapHostError("diagcache.build", err)
	}

	return &Entry{Snapshot: snapshot, Project: project, Context: ac, IDMap: idMap}, nil
}

// BuildTransient builds a fresh Entry for a whole-project request without
// ever reading or writing the cache slot (spec.md §4.2 bypass rule).
func (c *Cache) BuildTransient(ctx context.Context, snapshot coordkey.SnapshotID, project coordkey.ProjectHandle) (*Entry, error) {
	return c.build(ctx, snapshot, project)
}

// Peek returns the current entry, or nil if none has been built yet. Used
// only for reconciliation and tests; it never builds.
func (c *Cache) Peek() *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// Reconcile rewrites request's project (and document, if present) to the
// cached handle when there is an entry for the same snapshot and the same
// ProjectID but a distinct handle identity. This preserves cache hits
// across transient handle respawns within one logical snapshot (spec.md
// §4.2 Snapshot reconciliation).
//
// Per spec.md §9 Open Questions, a document id that the cached project no
// longer recognizes is rewritten to nil silently; downstream code treats a
// nil document as whole-project. If the cached project has no
// GetTextDocument lookup, the document is passed through unchanged.
func (c *Cache) Reconcile(snapshot coordkey.SnapshotID, project coordkey.ProjectHandle, document *coordkey.DocumentID) (coordkey.ProjectHandle, *coordkey.DocumentID) {
	entry := c.Peek()
	if entry == nil || entry.Snapshot != snapshot || entry.Project.ID != project.ID || identical(entry.Project, project) {
		return project, document
	}

	newProject := entry.Project
	if document == nil {
		return newProject, nil
	}
	if newProject.GetTextDocument == nil {
		return newProject, document
	}
	resolved, _ := newProject.GetTextDocument(*document)
	return newProject, resolved
}
