// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry holds the built-in analyzer presets rdiagd ships with.
//
// The teacher's own DefaultAnalyzers (gopls/internal/settings/analysis.go)
// mixes stdlib go/analysis/passes with a long tail of gopls-private
// analyzers under golang.org/x/tools/gopls/internal/analysis/... — an
// internal import path this module cannot reach across the rename, the
// same restriction that pushed internal/rdiaglog off of x/tools/internal/
// event. We carry forward the part of the teacher's registry built from
// the public go/analysis/passes tree, which is the overwhelming majority
// of what DefaultAnalyzers actually enables by default.
package registry

import (
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/appends"
	"golang.org/x/tools/go/analysis/passes/asmdecl"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/composite"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/ifaceassert"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/shift"
	"golang.org/x/tools/go/analysis/passes/sortslice"
	"golang.org/x/tools/go/analysis/passes/stdmethods"
	"golang.org/x/tools/go/analysis/passes/stringintconv"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/tests"
	"golang.org/x/tools/go/analysis/passes/timeformat"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unsafeptr"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
)

// Default returns the analyzer set rdiagd runs when a project does not
// name its own preset. Ordering is stable across process runs: the
// analyzer-set builder assigns ids by first-seen order (see
// internal/analyzerset), so callers that persist an analyzer id across a
// single run can rely on this slice's order not shuffling between calls.
func Default() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		appends.Analyzer,
		asmdecl.Analyzer,
		assign.Analyzer,
		atomic.Analyzer,
		bools.Analyzer,
		composite.Analyzer,
		copylock.Analyzer,
		errorsas.Analyzer,
		httpresponse.Analyzer,
		ifaceassert.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		nilfunc.Analyzer,
		nilness.Analyzer,
		printf.Analyzer,
		shadow.Analyzer,
		shift.Analyzer,
		sortslice.Analyzer,
		stdmethods.Analyzer,
		stringintconv.Analyzer,
		structtag.Analyzer,
		tests.Analyzer,
		timeformat.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,
		unsafeptr.Analyzer,
		unusedresult.Analyzer,
	}
}

// Presets maps a preset name to the analyzer set it selects. "default" is
// the only preset rdiagd ships today; it exists as a map, not a bare
// function, so a deployment can register additional presets (a stricter
// "vet"-only subset, a project-specific superset) without touching the
// call sites that resolve project.analyzer_preset.
var Presets = map[string][]*analysis.Analyzer{
	"default": Default(),
}

// Lookup returns the analyzer set named by preset, or Default's set if
// preset is unknown or empty.
func Lookup(preset string) []*analysis.Analyzer {
	if set, ok := Presets[preset]; ok {
		return set
	}
	return Default()
}
