// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline implements C4: the per-request compute sequence that
// turns a coordkey.Request into a coordkey.Result, given an already-built
// or cacheable AnalysisContext.
//
// Grounded on gopls/internal/cache/analysis.go's Snapshot.Analyze, which
// drives acquire -> resolve -> run -> shape for one package graph; this
// package simplifies that shape to the single-context-per-request model of
// spec.md §4.4, since C2 already owns context acquisition/identity.
package pipeline

import (
	"context"

	"golang.org/x/tools/go/analysis"

	"github.com/rdiagd/rdiag/internal/coordkey"
	"github.com/rdiagd/rdiag/internal/diagcache"
	"github.com/rdiagd/rdiag/internal/hostadapter"
	"github.com/rdiagd/rdiag/internal/shaper"
	"github.com/rdiagd/rdiag/internal/telemetry"
)

// Pipeline runs the C4 compute sequence for one request.
type Pipeline struct {
	Cache   *diagcache.Cache
	Host    hostadapter.Host
	Tracker telemetry.Tracker
}

// New returns a Pipeline. tracker may be nil, in which case a NoopTracker is
// used.
func New(cache *diagcache.Cache, host hostadapter.Host, tracker telemetry.Tracker) *Pipeline {
	if tracker == nil {
		tracker = telemetry.NoopTracker{}
	}
	return &Pipeline{Cache: cache, Host: host, Tracker: tracker}
}

// Run executes spec.md §4.4 steps 1-7 for request against snapshot+project,
// which have already been reconciled to the cache's identity by the caller
// (the Coordinator).
func (p *Pipeline) Run(ctx context.Context, snapshot coordkey.SnapshotID, project coordkey.ProjectHandle, request coordkey.Request) (coordkey.Result, error) {
	// Step 1: acquire the AnalysisContext. Document-scoped requests use the
	// single-slot cache; whole-project requests always build a transient
	// context that bypasses it (spec.md §4.2 bypass rule).
	var entry *diagcache.Entry
	var err error
	if request.DocumentPresent() {
		entry, err = p.Cache.GetOrBuild(ctx, snapshot, project)
	} else {
		entry, err = p.Cache.BuildTransient(ctx, snapshot, project)
	}
	if err != nil {
		return coordkey.Result{}, err
	}
	ac := entry.Context
	idMap := entry.IDMap

	// Step 2: resolve request.AnalyzerIDs against this entry's map, silently
	// dropping unknown ids. An empty resolved set needs no host call.
	resolved := resolveAnalyzerIDs(request.AnalyzerIDs, idMap)
	if len(resolved) == 0 {
		return coordkey.Result{}, nil
	}

	// Step 3: specialize for a whole-project request whose resolved set is a
	// strict subset of the cached context's analyzers. A document-scoped
	// request always runs the full cached context and is filtered down
	// during shaping instead, since it must keep using the single cached
	// entry (spec.md §4.4 step 3 scopes specialization to document_present
	// == false).
	runAC := ac
	if !request.DocumentPresent() && len(resolved) < len(ac.Analyzers) {
		specialized, serr := p.Host.WithAnalyzers(ctx, ac.Compilation, resolveAnalyzers(resolved, idMap), ac.Options)
		if serr != nil {
			return coordkey.Result{}, coordkey.WrapHostError("pipeline.Run", serr)
		}
		runAC = specialized
	}

	// Step 4: skipped-analyzer accounting.
	var skipped map[coordkey.AnalyzerID]string
	if project.SkippedAnalyzers != nil {
		skipped = project.SkippedAnalyzers(idMap)
	}

	// Step 5: build the document scope, if any, and run.
	var scope *coordkey.DocumentScope
	if request.Document != nil {
		kind := coordkey.KindUnspecified
		if request.Kind != nil {
			kind = *request.Kind
		}
		scope = &coordkey.DocumentScope{
			DocumentID:     *request.Document,
			Span:           request.Span,
			AnalyzerSubset: resolved,
			Kind:           kind,
		}
	}

	analysisResult, extraSuppression, err := p.Host.GetAnalysisResult(ctx, runAC, scope, project)
	if err != nil {
		return coordkey.Result{}, coordkey.WrapHostError("pipeline.Run", err)
	}

	// Step 6: optional perf sample, only when a tracker is actually
	// listening (spec.md §4.4 step 6).
	if request.WantPerf && p.Tracker.Active() {
		unitCount := 1
		if scope == nil {
			unitCount += project.DocumentCount
		}
		tele, terr := shaper.Telemetry(analysisResult, idMap, resolved, true)
		if terr != nil {
			return coordkey.Result{}, terr
		}
		p.Tracker.Record(telemetry.Sample{
			UnitCount: unitCount,
			ForSpan:   request.Span != nil,
			Telemetry: tele,
		})
	}

	// Step 7: shape into the boundary Result.
	perAnalyzer, err := shaper.Dehydrate(analysisResult, idMap, resolved, skipped, request.ReportSuppressed, extraSuppression)
	if err != nil {
		return coordkey.Result{}, err
	}
	tele, err := shaper.Telemetry(analysisResult, idMap, resolved, request.WantTelemetry)
	if err != nil {
		return coordkey.Result{}, err
	}

	return coordkey.Result{PerAnalyzer: perAnalyzer, Telemetry: tele}, nil
}

// resolveAnalyzerIDs filters ids to those known in idMap, preserving
// request order (spec.md §4.4 step 2: unknown ids are silently dropped).
func resolveAnalyzerIDs(ids []coordkey.AnalyzerID, idMap *coordkey.AnalyzerIDMap) []coordkey.AnalyzerID {
	out := make([]coordkey.AnalyzerID, 0, len(ids))
	for _, id := range ids {
		if _, ok := idMap.Lookup(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// resolveAnalyzers converts resolved ids back to *analysis.Analyzer values
// for a specialized host call, in the same order as resolved.
func resolveAnalyzers(resolved []coordkey.AnalyzerID, idMap *coordkey.AnalyzerIDMap) []*analysis.Analyzer {
	out := make([]*analysis.Analyzer, 0, len(resolved))
	for _, id := range resolved {
		if a, ok := idMap.Lookup(id); ok {
			out = append(out, a)
		}
	}
	return out
}
