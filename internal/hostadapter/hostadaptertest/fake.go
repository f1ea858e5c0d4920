// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hostadaptertest provides a deterministic, instrumented fake of
// hostadapter.Host shared by every other component's tests, matching the
// teacher's own style of fake-backed concurrency tests (gopls/internal/
// cache/future_test.go).
package hostadaptertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/tools/go/analysis"

	"github.com/rdiagd/rdiag/internal/coordkey"
	"github.com/rdiagd/rdiag/internal/hostadapter"
)

// Host is a fake hostadapter.Host with injectable latency and failures, and
// counters for asserting how many times each operation ran.
type Host struct {
	// BuildDelay is slept (honoring ctx) inside GetCompilation and
	// WithAnalyzers, to simulate an expensive build.
	BuildDelay time.Duration
	// AnalyzeDelay is slept (honoring ctx) inside GetAnalysisResult.
	AnalyzeDelay time.Duration

	// FailCompilation, if non-nil, is returned by GetCompilation instead
	// of building one.
	FailCompilation error
	// FailAnalysis, if non-nil, is returned by GetAnalysisResult.
	FailAnalysis error

	// Diagnose, if non-nil, produces the diagnostics for one (analyzer,
	// scope) pair; otherwise a single deterministic diagnostic per
	// analyzer is synthesized.
	Diagnose func(a *analysis.Analyzer, scope *coordkey.DocumentScope) coordkey.DiagnosticMap

	compilations  atomic.Int32
	withAnalyzers atomic.Int32
	analyses      atomic.Int32

	mu   sync.Mutex
	seq  int
}

// CompilationCalls reports how many times GetCompilation ran.
func (h *Host) CompilationCalls() int32 { return h.compilations.Load() }

// WithAnalyzersCalls reports how many times WithAnalyzers ran (i.e. how
// many AnalysisContexts — cached or specialized — were built).
func (h *Host) WithAnalyzersCalls() int32 { return h.withAnalyzers.Load() }

// AnalysisCalls reports how many times GetAnalysisResult ran.
func (h *Host) AnalysisCalls() int32 { return h.analyses.Load() }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (h *Host) GetCompilation(ctx context.Context, project coordkey.ProjectHandle) (*coordkey.Compilation, error) {
	h.compilations.Add(1)
	if err := sleep(ctx, h.BuildDelay); err != nil {
		return nil, err
	}
	if h.FailCompilation != nil {
		return nil, h.FailCompilation
	}
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()
	return &coordkey.Compilation{ProjectID: project.ID, Packages: seq}, nil
}

func (h *Host) WithConcurrentBuild(ctx context.Context, c *coordkey.Compilation) (*coordkey.Compilation, error) {
	cp := *c
	cp.Concurrent = true
	return &cp, ctx.Err()
}

func (h *Host) WithAnalyzers(ctx context.Context, c *coordkey.Compilation, analyzers []*analysis.Analyzer, opts hostadapter.Options) (*hostadapter.AnalysisContext, error) {
	h.withAnalyzers.Add(1)
	if err := sleep(ctx, h.BuildDelay); err != nil {
		return nil, err
	}
	return &hostadapter.AnalysisContext{Compilation: c, Analyzers: analyzers, Options: opts}, nil
}

func (h *Host) GetAnalysisResult(ctx context.Context, ac *hostadapter.AnalysisContext, scope *coordkey.DocumentScope, project coordkey.ProjectHandle) (hostadapter.AnalysisResult, []coordkey.Diagnostic, error) {
	h.analyses.Add(1)
	if err := sleep(ctx, h.AnalyzeDelay); err != nil {
		return nil, nil, err
	}
	if h.FailAnalysis != nil {
		return nil, nil, h.FailAnalysis
	}

	diagFn := h.Diagnose
	if diagFn == nil {
		diagFn = func(a *analysis.Analyzer, scope *coordkey.DocumentScope) coordkey.DiagnosticMap {
			doc := coordkey.DocumentID("")
			if scope != nil {
				doc = scope.DocumentID
			}
			return coordkey.DiagnosticMap{
				SemanticLocal: map[coordkey.DocumentID][]coordkey.Diagnostic{
					doc: {{Message: fmt.Sprintf("finding from %s", a.Name), Severity: "warning", Category: a.Name}},
				},
			}
		}
	}

	var diags []hostadapter.AnalyzerDiagnostics
	var tele []hostadapter.AnalyzerTelemetry
	for _, a := range ac.Analyzers {
		diags = append(diags, hostadapter.AnalyzerDiagnostics{Analyzer: a, Diagnostics: diagFn(a, scope)})
		tele = append(tele, hostadapter.AnalyzerTelemetry{Analyzer: a, Telemetry: coordkey.TelemetryInfo{Data: map[string]any{"analyzer": a.Name}}})
	}
	return hostadapter.NewResult(diags, tele), nil, nil
}

// NewAnalyzer builds a minimal, side-effect-free *analysis.Analyzer usable
// as a deduplication/resolution fixture across component tests.
func NewAnalyzer(name string) *analysis.Analyzer {
	return &analysis.Analyzer{
		Name: name,
		Doc:  "fake analyzer " + name,
		Run: func(*analysis.Pass) (any, error) {
			return nil, nil
		},
	}
}
