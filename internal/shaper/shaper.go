// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shaper implements C5: converting the Host Adapter's opaque
// AnalysisResult into the boundary-level Result, filtering for what was
// actually requested, what the host marks suppressed, and what the project
// reports as host-only/skipped.
//
// Grounded on gopls/internal/server/diagnostics.go's diagMap type and its
// per-document partitioning/hashing style.
package shaper

import (
	"slices"

	"github.com/rdiagd/rdiag/internal/coordkey"
	"github.com/rdiagd/rdiag/internal/hostadapter"
)

// SuppressionAnalyzerID is the synthetic analyzer id under which
// extra_suppression_diagnostics (spec.md §4.4 step 5) are folded, since
// they do not originate from any one analyzer in AnalyzerIDMap.
const SuppressionAnalyzerID coordkey.AnalyzerID = "__suppression__"

const suppressedTag = "suppressed"

// Dehydrate converts result into the boundary per-analyzer records.
//
//   - resolved is the set of AnalyzerIds the request actually asked for and
//     that were known in idMap (spec.md §4.4 step 2); any analyzer in
//     result but not in resolved is dropped, because a document request
//     always runs against the full cached context (never specialized) yet
//     must report only what was asked for.
//   - skipped is the project's host-only/skipped-analyzer set (spec.md
//     §4.4 step 4); a resolved analyzer that is also skipped is dropped.
//   - reportSuppressed, when false, drops diagnostics tagged "suppressed".
//   - extraDiagnostics (the host's extra_suppression_diagnostics) are
//     folded into a synthetic SuppressionAnalyzerID entry's Other bucket.
//
// A missing reverse lookup for any analyzer result's identity is a
// contract violation: every AnalyzerId crossing this boundary must have
// come from the same AnalyzerIDMap used to decode it (spec.md invariant 2).
func Dehydrate(
	result hostadapter.AnalysisResult,
	idMap *coordkey.AnalyzerIDMap,
	resolved []coordkey.AnalyzerID,
	skipped map[coordkey.AnalyzerID]string,
	reportSuppressed bool,
	extraDiagnostics []coordkey.Diagnostic,
) ([]coordkey.PerAnalyzerResult, error) {
	resolvedSet := toSet(resolved)

	var out []coordkey.PerAnalyzerResult
	for _, ad := range result.Diagnostics() {
		id, ok := idMap.ReverseLookup(ad.Analyzer)
		if !ok {
			return nil, coordkey.NewContractViolation("shaper.Dehydrate", "analysis result referenced an analyzer absent from its AnalyzerIdMap: "+ad.Analyzer.Name)
		}
		if !resolvedSet[id] {
			continue
		}
		if _, isSkipped := skipped[id]; isSkipped {
			continue
		}
		out = append(out, coordkey.PerAnalyzerResult{
			AnalyzerID:  id,
			Diagnostics: filterSuppressed(ad.Diagnostics, reportSuppressed),
		})
	}

	if len(extraDiagnostics) > 0 {
		filtered := filterSuppressedSlice(extraDiagnostics, reportSuppressed)
		if len(filtered) > 0 {
			out = append(out, coordkey.PerAnalyzerResult{
				AnalyzerID:  SuppressionAnalyzerID,
				Diagnostics: coordkey.DiagnosticMap{Other: filtered},
			})
		}
	}

	return out, nil
}

// Telemetry converts result's telemetry into the boundary sequence,
// respecting wantTelemetry and filtering to the resolved analyzer set when
// the host's telemetry map covers more analyzers than were actually
// requested (the un-specialized, document-scoped case of spec.md §4.5).
func Telemetry(result hostadapter.AnalysisResult, idMap *coordkey.AnalyzerIDMap, resolved []coordkey.AnalyzerID, wantTelemetry bool) ([]coordkey.PerAnalyzerTelemetry, error) {
	if !wantTelemetry {
		return nil, nil
	}
	resolvedSet := toSet(resolved)

	var out []coordkey.PerAnalyzerTelemetry
	for _, at := range result.Telemetry() {
		id, ok := idMap.ReverseLookup(at.Analyzer)
		if !ok {
			return nil, coordkey.NewContractViolation("shaper.Telemetry", "telemetry referenced an analyzer absent from its AnalyzerIdMap: "+at.Analyzer.Name)
		}
		if !resolvedSet[id] {
			continue
		}
		out = append(out, coordkey.PerAnalyzerTelemetry{AnalyzerID: id, Telemetry: at.Telemetry})
	}
	return out, nil
}

func toSet(ids []coordkey.AnalyzerID) map[coordkey.AnalyzerID]bool {
	set := make(map[coordkey.AnalyzerID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func filterSuppressed(dm coordkey.DiagnosticMap, reportSuppressed bool) coordkey.DiagnosticMap {
	if reportSuppressed {
		return dm
	}
	return coordkey.DiagnosticMap{
		SyntaxLocal:   filterBucket(dm.SyntaxLocal),
		SemanticLocal: filterBucket(dm.SemanticLocal),
		NonLocal:      filterBucket(dm.NonLocal),
		Other:         filterSuppressedSlice(dm.Other, false),
	}
}

func filterBucket(bucket map[coordkey.DocumentID][]coordkey.Diagnostic) map[coordkey.DocumentID][]coordkey.Diagnostic {
	if bucket == nil {
		return nil
	}
	out := make(map[coordkey.DocumentID][]coordkey.Diagnostic, len(bucket))
	for doc, diags := range bucket {
		filtered := filterSuppressedSlice(diags, false)
		if len(filtered) > 0 {
			out[doc] = filtered
		}
	}
	return out
}

func filterSuppressedSlice(diags []coordkey.Diagnostic, reportSuppressed bool) []coordkey.Diagnostic {
	if reportSuppressed {
		return diags
	}
	out := make([]coordkey.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if slices.Contains(d.Tags, suppressedTag) {
			continue
		}
		out = append(out, d)
	}
	return out
}
