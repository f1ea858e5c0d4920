// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hostadapter defines the seam between the coordinator and the
// analyzer host: the collaborator that owns compilation and the actual
// running of go/analysis analyzers (C6 in the design).
//
// This package intentionally says nothing about how compilation works; it
// only states the four calls the coordinator needs and the shape of their
// results, matching spec.md §4.6.
package hostadapter

import (
	"context"

	"golang.org/x/tools/go/analysis"

	"github.com/rdiagd/rdiag/internal/coordkey"
)

// Options is the fixed analysis configuration the coordinator always asks
// for. A single cached AnalysisContext must satisfy every caller regardless
// of their request flags; per-request filtering (e.g. ReportSuppressed)
// happens later, in the shaper.
type Options struct {
	Concurrent       bool
	LogExecutionTime bool
	ReportSuppressed bool
	IDE              map[string]any
}

// DefaultOptions returns the fixed configuration mandated by spec.md §4.6.
func DefaultOptions(ide map[string]any) Options {
	return Options{
		Concurrent:       true,
		LogExecutionTime: true,
		ReportSuppressed: true,
		IDE:              ide,
	}
}

// AnalysisContext is an immutable binding of a compilation to an ordered
// set of analyzers with fixed options, produced by Host.WithAnalyzers.
type AnalysisContext struct {
	Compilation *coordkey.Compilation
	Analyzers   []*analysis.Analyzer
	Options     Options
}

// AnalyzerDiagnostics pairs one executed analyzer with its
// document-partitioned diagnostics.
type AnalyzerDiagnostics struct {
	Analyzer    *analysis.Analyzer
	Diagnostics coordkey.DiagnosticMap
}

// AnalyzerTelemetry pairs one executed analyzer with its telemetry.
type AnalyzerTelemetry struct {
	Analyzer  *analysis.Analyzer
	Telemetry coordkey.TelemetryInfo
}

// AnalysisResult is the opaque outcome of one GetAnalysisResult call. Its
// two iteration orders are both the host's own execution order.
type AnalysisResult interface {
	Diagnostics() []AnalyzerDiagnostics
	Telemetry() []AnalyzerTelemetry
}

// Host is the set of capabilities the coordinator requires of the analyzer
// host (C6). Every method may suspend and must honor ctx cancellation.
type Host interface {
	// GetCompilation fetches or builds the compilation for project.
	GetCompilation(ctx context.Context, project coordkey.ProjectHandle) (*coordkey.Compilation, error)

	// WithConcurrentBuild returns a variant of c configured for concurrent
	// internal work. The coordinator always requests this mode.
	WithConcurrentBuild(ctx context.Context, c *coordkey.Compilation) (*coordkey.Compilation, error)

	// WithAnalyzers binds c to analyzers under opts, producing a new
	// AnalysisContext. Called both to build a fresh cache entry and to
	// specialize a transient, non-cached subset context.
	WithAnalyzers(ctx context.Context, c *coordkey.Compilation, analyzers []*analysis.Analyzer, opts Options) (*AnalysisContext, error)

	// GetAnalysisResult runs ac's analyzers over scope (nil meaning
	// whole-project) and returns the result plus any extra suppression
	// diagnostics the host produced outside the analyzer pipeline.
	GetAnalysisResult(ctx context.Context, ac *AnalysisContext, scope *coordkey.DocumentScope, project coordkey.ProjectHandle) (AnalysisResult, []coordkey.Diagnostic, error)
}

// sliceResult is the straightforward AnalysisResult implementation shared
// by every Host: an ordered slice of per-analyzer diagnostics and telemetry.
type sliceResult struct {
	diags []AnalyzerDiagnostics
	tele  []AnalyzerTelemetry
}

func (r *sliceResult) Diagnostics() []AnalyzerDiagnostics { return r.diags }
func (r *sliceResult) Telemetry() []AnalyzerTelemetry     { return r.tele }

// NewResult builds an AnalysisResult from already-computed per-analyzer
// diagnostics and telemetry, preserving the given order.
func NewResult(diags []AnalyzerDiagnostics, tele []AnalyzerTelemetry) AnalysisResult {
	return &sliceResult{diags: diags, tele: tele}
}
