// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package analyzerset implements C1: deduplicating a project's analyzer
// references into a stable, ordered analyzer list and id bijection.
//
// Grounded on gopls/internal/settings/analyzer.go (the Analyzer wrapper
// around go/analysis.Analyzer) and the reference-dedup loop in
// gopls/internal/cache/analysis.go.
package analyzerset

import (
	"fmt"

	"golang.org/x/tools/go/analysis"

	"github.com/rdiagd/rdiag/internal/coordkey"
)

// Build iterates project's solution and project analyzer references, in
// that order, skipping references whose RefID has already been seen (and any
// analyzer another reference already contributed), and returns the deduplicated ordered analyzer list alongside the AnalyzerID
// bijection used to decode it.
//
// The resulting order is deterministic given the input order (spec.md
// §4.1): for a fixed sequence of references, repeated calls to Build
// produce byte-identical AnalyzerID assignments.
func Build(project coordkey.ProjectHandle) (*coordkey.AnalyzerIDMap, []*analysis.Analyzer) {
	idMap := coordkey.NewAnalyzerIDMap()
	var ordered []*analysis.Analyzer

	seen := make(map[string]bool)
	nextSeq := make(map[string]int) // per-analyzer-name sequence, for id uniqueness

	for _, ref := range project.AnalyzerRefs() {
		if seen[ref.RefID] {
			continue
		}
		seen[ref.RefID] = true

		for _, a := range ref.AnalyzersFor(project.Language) {
			if _, dup := idMap.ReverseLookup(a); dup {
				continue
			}
			id := assignID(a, nextSeq)
			idMap.Add(id, a)
			ordered = append(ordered, a)
		}
	}

	return idMap, ordered
}

// assignID derives a stable-within-process AnalyzerID for a, disambiguating
// repeat analyzer names with a numeric suffix. Stability across process
// restarts is explicitly not required (spec.md §9 Open Questions).
func assignID(a *analysis.Analyzer, nextSeq map[string]int) coordkey.AnalyzerID {
	n := a.Name
	seq := nextSeq[n]
	nextSeq[n] = seq + 1
	if seq == 0 {
		return coordkey.AnalyzerID(n)
	}
	return coordkey.AnalyzerID(fmt.Sprintf("%s#%d", n, seq))
}
