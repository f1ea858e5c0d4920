// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diagcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/analysis"

	"github.com/rdiagd/rdiag/internal/coordkey"
	"github.com/rdiagd/rdiag/internal/hostadapter/hostadaptertest"
)

func testProject(id coordkey.ProjectID, host *hostadaptertest.Host) coordkey.ProjectHandle {
	a := hostadaptertest.NewAnalyzer("A")
	return coordkey.ProjectHandle{
		ID:       id,
		Language: "go",
		Refs:     []coordkey.AnalyzerReference{coordkey.NewAnalyzerReference("r", []*analysis.Analyzer{a})},
		GetCompilation: func(ctx context.Context) (*coordkey.Compilation, error) {
			return host.GetCompilation(ctx, coordkey.ProjectHandle{ID: id})
		},
	}.WithNewIdentity()
}

func TestGetOrBuild_CachesOnExactIdentity(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host)
	ctx := context.Background()

	p := testProject("p1", host)

	e1, err := c.GetOrBuild(ctx, "s1", p)
	require.NoError(t, err)
	e2, err := c.GetOrBuild(ctx, "s1", p)
	require.NoError(t, err)

	require.Same(t, e1, e2)
	require.EqualValues(t, 1, host.WithAnalyzersCalls())
}

func TestGetOrBuild_RebuildsOnDifferentIdentity(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host)
	ctx := context.Background()

	p1 := testProject("p1", host)
	p2 := testProject("p1", host) // same ProjectID, distinct identity

	_, err := c.GetOrBuild(ctx, "s1", p1)
	require.NoError(t, err)
	_, err = c.GetOrBuild(ctx, "s1", p2)
	require.NoError(t, err)

	require.EqualValues(t, 2, host.WithAnalyzersCalls())
}

func TestReconcile_SameSnapshotAndProjectID(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host)
	ctx := context.Background()

	p1 := testProject("p1", host)
	_, err := c.GetOrBuild(ctx, "s1", p1)
	require.NoError(t, err)

	p1Respawned := testProject("p1", host) // same ProjectID, new handle
	doc := coordkey.DocumentID("d1")

	reconciledProject, reconciledDoc := c.Reconcile("s1", p1Respawned, &doc)

	require.Equal(t, p1.HandleIdentity(), reconciledProject.HandleIdentity())
	require.Equal(t, &doc, reconciledDoc, "project never registered GetTextDocument, so reconciliation keeps the document as given")
}

func TestReconcile_DocumentLookup(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host)
	ctx := context.Background()

	p1 := testProject("p1", host)
	p1.GetTextDocument = func(id coordkey.DocumentID) (*coordkey.DocumentID, bool) {
		if id == "known" {
			resolved := coordkey.DocumentID("known")
			return &resolved, true
		}
		return nil, false
	}
	_, err := c.GetOrBuild(ctx, "s1", p1)
	require.NoError(t, err)

	p1Respawned := testProject("p1", host)
	known := coordkey.DocumentID("known")
	_, reconciledDoc := c.Reconcile("s1", p1Respawned, &known)
	require.NotNil(t, reconciledDoc)
	require.Equal(t, coordkey.DocumentID("known"), *reconciledDoc)

	unknown := coordkey.DocumentID("missing")
	_, reconciledDoc2 := c.Reconcile("s1", p1Respawned, &unknown)
	require.Nil(t, reconciledDoc2)
}

func TestGetOrBuild_DifferentSnapshotRebuilds(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host)
	ctx := context.Background()

	p1 := testProject("p1", host)
	_, err := c.GetOrBuild(ctx, "s1", p1)
	require.NoError(t, err)
	_, err = c.GetOrBuild(ctx, "s2", p1)
	require.NoError(t, err)

	require.EqualValues(t, 2, host.WithAnalyzersCalls())
}

func TestBuildTransient_NeverTouchesSlot(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host)
	ctx := context.Background()

	p1 := testProject("p1", host)
	_, err := c.GetOrBuild(ctx, "s1", p1)
	require.NoError(t, err)

	before := c.Peek()

	p2 := testProject("p2", host)
	_, err = c.BuildTransient(ctx, "s1", p2)
	require.NoError(t, err)

	require.Same(t, before, c.Peek(), "whole-project build must not read or write the cache slot")
}

func TestGetOrBuild_BuildFailureLeavesSlotUnchanged(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host)
	ctx := context.Background()

	p1 := testProject("p1", host)
	e1, err := c.GetOrBuild(ctx, "s1", p1)
	require.NoError(t, err)

	host.FailCompilation = errors.New("boom")
	p2 := testProject("p2", host)
	_, err = c.GetOrBuild(ctx, "s1", p2)
	require.Error(t, err)

	require.Same(t, e1, c.Peek())
}
