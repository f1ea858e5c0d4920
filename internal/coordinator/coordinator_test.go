// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

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

func TestGetDiagnostics_ColdCacheDocumentRequest(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host, nil)

	project := testProject("p1", host)
	doc := coordkey.DocumentID("d1")
	req := coordkey.Request{
		Snapshot:    "s1",
		Project:     project,
		Document:    &doc,
		AnalyzerIDs: []coordkey.AnalyzerID{"A"},
	}

	result, err := c.GetDiagnostics(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.PerAnalyzer, 1)
}

func TestGetDiagnostics_RepeatRequestDoesNotRebuild(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host, nil)

	project := testProject("p1", host)
	doc := coordkey.DocumentID("d1")
	req := coordkey.Request{Snapshot: "s1", Project: project, Document: &doc, AnalyzerIDs: []coordkey.AnalyzerID{"A"}}

	_, err := c.GetDiagnostics(context.Background(), req)
	require.NoError(t, err)
	_, err = c.GetDiagnostics(context.Background(), req)
	require.NoError(t, err)

	require.EqualValues(t, 1, host.WithAnalyzersCalls(), "second identical request must not rebuild the AnalysisContext")
}

func TestGetDiagnostics_SnapshotReconciliation(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host, nil)

	project := testProject("p1", host)
	doc := coordkey.DocumentID("d1")
	req := coordkey.Request{Snapshot: "s1", Project: project, Document: &doc, AnalyzerIDs: []coordkey.AnalyzerID{"A"}}
	_, err := c.GetDiagnostics(context.Background(), req)
	require.NoError(t, err)

	respawned := testProject("p1", host) // same ProjectID, new handle identity
	req2 := coordkey.Request{Snapshot: "s1", Project: respawned, Document: &doc, AnalyzerIDs: []coordkey.AnalyzerID{"A"}}
	_, err = c.GetDiagnostics(context.Background(), req2)
	require.NoError(t, err)

	require.EqualValues(t, 1, host.WithAnalyzersCalls(), "reconciliation must rewrite the respawned handle onto the cached identity")
}

func TestGetDiagnostics_HighPreemptsInFlightNormal(t *testing.T) {
	host := &hostadaptertest.Host{}
	host.AnalyzeDelay = 50 * time.Millisecond
	c := New(host, nil)

	project := testProject("p1", host)
	doc := coordkey.DocumentID("d1")

	normalDone := make(chan error, 1)
	go func() {
		req := coordkey.Request{Snapshot: "s1", Project: project, Document: &doc, AnalyzerIDs: []coordkey.AnalyzerID{"A"}, Priority: coordkey.PriorityNormal}
		_, err := c.GetDiagnostics(context.Background(), req)
		normalDone <- err
	}()

	time.Sleep(10 * time.Millisecond) // let NORMAL start its (slow) analysis call

	highReq := coordkey.Request{Snapshot: "s1", Project: project, Document: &doc, AnalyzerIDs: []coordkey.AnalyzerID{"A"}, Priority: coordkey.PriorityHigh}
	_, err := c.GetDiagnostics(context.Background(), highReq)
	require.NoError(t, err)

	require.NoError(t, <-normalDone)
	require.Zero(t, c.HighCount())
	require.Zero(t, c.NormalCount())
}

func TestGetDiagnostics_CallerCancelDuringPreemptDrain(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host, nil)

	project := testProject("p1", host)
	doc := coordkey.DocumentID("d1")

	highBlocked := make(chan struct{})
	releaseHigh := make(chan struct{})
	var once bool
	host.Diagnose = func(a *analysis.Analyzer, scope *coordkey.DocumentScope) coordkey.DiagnosticMap {
		if !once {
			once = true
			close(highBlocked)
			<-releaseHigh
		}
		return coordkey.DiagnosticMap{}
	}

	go func() {
		req := coordkey.Request{Snapshot: "s1", Project: project, Document: &doc, AnalyzerIDs: []coordkey.AnalyzerID{"A"}, Priority: coordkey.PriorityHigh}
		_, _ = c.GetDiagnostics(context.Background(), req)
	}()
	<-highBlocked

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	req := coordkey.Request{Snapshot: "s1", Project: project, Document: &doc, AnalyzerIDs: []coordkey.AnalyzerID{"A"}, Priority: coordkey.PriorityNormal}
	_, err := c.GetDiagnostics(ctx, req)
	require.Error(t, err)
	require.True(t, coordkey.IsCancelled(err))

	close(releaseHigh)
}

func TestGetDiagnostics_HostFailureIsFatalAndLeavesCacheUnchanged(t *testing.T) {
	host := &hostadaptertest.Host{}
	c := New(host, nil)

	project := testProject("p1", host)
	doc := coordkey.DocumentID("d1")
	req := coordkey.Request{Snapshot: "s1", Project: project, Document: &doc, AnalyzerIDs: []coordkey.AnalyzerID{"A"}}
	_, err := c.GetDiagnostics(context.Background(), req)
	require.NoError(t, err)
	before := c.Peek()

	host.FailAnalysis = errors.New("boom")
	_, err = c.GetDiagnostics(context.Background(), req)
	require.Error(t, err)
	k, ok := coordkey.KindOf(err)
	require.True(t, ok)
	require.Equal(t, coordkey.KindHostFailure, k)
	require.Same(t, before, c.Peek(), "an analysis failure must not disturb the existing cache entry")
}
