// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostadapter

import (
	"context"
	"fmt"
	"go/token"
	"go/types"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/packages"

	"github.com/rdiagd/rdiag/internal/coordkey"
)

// packagesLoader abstracts go/packages.Load for testability.
type packagesLoader func(cfg *packages.Config, patterns ...string) ([]*packages.Package, error)

// PackagesHost is the default Host Adapter: it loads compilations with
// golang.org/x/tools/go/packages and runs golang.org/x/tools/go/analysis
// analyzers directly against the loaded syntax and type information.
//
// It intentionally does not implement cross-package fact propagation or
// persistent result caching (see DESIGN.md): the coordinator's contract
// treats the compilation engine and individual analyzer bodies as external
// collaborators, so a single-package driver with in-memory Requires
// resolution is sufficient to exercise the coordinator's own behavior.
type PackagesHost struct {
	load    packagesLoader
	dir     string
	pattern string
}

// NewPackagesHost returns a Host that loads the package(s) matching pattern
// rooted at dir (e.g. dir="/path/to/proj", pattern="./...").
func NewPackagesHost(dir, pattern string) *PackagesHost {
	return &PackagesHost{load: packages.Load, dir: dir, pattern: pattern}
}

func (h *PackagesHost) GetCompilation(ctx context.Context, project coordkey.ProjectHandle) (*coordkey.Compilation, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedDeps | packages.NeedImports,
		Dir:     h.dir,
	}
	pattern := h.pattern
	if pattern == "" {
		pattern = "./..."
	}
	pkgs, err := h.load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("hostadapter: load packages: %w", err)
	}
	for _, p := range pkgs {
		if len(p.Errors) > 0 {
			return nil, fmt.Errorf("hostadapter: package %s has load errors: %v", p.PkgPath, p.Errors[0])
		}
	}
	return &coordkey.Compilation{ProjectID: project.ID, Packages: pkgs}, nil
}

func (h *PackagesHost) WithConcurrentBuild(ctx context.Context, c *coordkey.Compilation) (*coordkey.Compilation, error) {
	cp := *c
	cp.Concurrent = true
	return &cp, nil
}

func (h *PackagesHost) WithAnalyzers(ctx context.Context, c *coordkey.Compilation, analyzers []*analysis.Analyzer, opts Options) (*AnalysisContext, error) {
	return &AnalysisContext{Compilation: c, Analyzers: analyzers, Options: opts}, nil
}

// GetAnalysisResult runs every analyzer in ac.Analyzers concurrently, one
// goroutine per analyzer, fanned out with errgroup the way the teacher's
// own Snapshot.Analyze runs package nodes of its DAG concurrently
// (gopls/internal/cache/analysis.go). A single analyzer's failure is
// contained to that analyzer's own diagnostics rather than aborting its
// siblings; only ctx's own cancellation aborts the whole request, and it
// is returned unchanged so the caller can classify it as Cancelled rather
// than a host failure.
func (h *PackagesHost) GetAnalysisResult(ctx context.Context, ac *AnalysisContext, scope *coordkey.DocumentScope, project coordkey.ProjectHandle) (AnalysisResult, []coordkey.Diagnostic, error) {
	pkgs, ok := ac.Compilation.Packages.([]*packages.Package)
	if !ok {
		return nil, nil, fmt.Errorf("hostadapter: compilation carries no *packages.Package payload")
	}

	diags := make([]AnalyzerDiagnostics, len(ac.Analyzers))
	tele := make([]AnalyzerTelemetry, len(ac.Analyzers))

	var g errgroup.Group
	for i, a := range ac.Analyzers {
		i, a := i, a
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dm, err := runAnalyzer(ctx, a, pkgs, scope)
			if err != nil {
				// Contain the failure to this analyzer: record it as an
				// "other" diagnostic rather than aborting every analyzer in
				// the request (see DESIGN.md: per-analyzer panic containment,
				// adapted from the teacher's runAnalyzer).
				dm = coordkey.DiagnosticMap{
					Other: []coordkey.Diagnostic{{
						Message:  fmt.Sprintf("analyzer %s failed: %v", a.Name, err),
						Severity: "error",
						Category: a.Name,
					}},
				}
			}
			diags[i] = AnalyzerDiagnostics{Analyzer: a, Diagnostics: dm}
			tele[i] = AnalyzerTelemetry{Analyzer: a, Telemetry: coordkey.TelemetryInfo{}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return NewResult(diags, tele), nil, nil
}

// runAnalyzer executes a single analyzer against every loaded package,
// resolving its Requires dependencies in-process (no cross-package facts).
func runAnalyzer(ctx context.Context, a *analysis.Analyzer, pkgs []*packages.Package, scope *coordkey.DocumentScope) (dm coordkey.DiagnosticMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	dm = coordkey.DiagnosticMap{
		SyntaxLocal:   map[coordkey.DocumentID][]coordkey.Diagnostic{},
		SemanticLocal: map[coordkey.DocumentID][]coordkey.Diagnostic{},
		NonLocal:      map[coordkey.DocumentID][]coordkey.Diagnostic{},
	}

	for _, pkg := range pkgs {
		results, err := runRequires(a, pkg)
		if err != nil {
			return dm, err
		}

		pass := &analysis.Pass{
			Analyzer:   a,
			Fset:       pkg.Fset,
			Files:      pkg.Syntax,
			Pkg:        pkg.Types,
			TypesInfo:  pkg.TypesInfo,
			TypesSizes: pkg.TypesSizes,
			ResultOf:   results,
			Report: func(d analysis.Diagnostic) {
				doc, bucket := bucketFor(pkg.Fset, d.Pos, scope)
				diag := coordkey.Diagnostic{
					Message:  d.Message,
					Severity: "warning",
					Category: a.Name,
				}
				switch bucket {
				case "syntax":
					dm.SyntaxLocal[doc] = append(dm.SyntaxLocal[doc], diag)
				case "semantic":
					dm.SemanticLocal[doc] = append(dm.SemanticLocal[doc], diag)
				case "nonlocal":
					dm.NonLocal[doc] = append(dm.NonLocal[doc], diag)
				default:
					dm.Other = append(dm.Other, diag)
				}
			},
			ImportObjectFact:  func(types.Object, analysis.Fact) bool { return false },
			ExportObjectFact:  func(types.Object, analysis.Fact) {},
			ImportPackageFact: func(*types.Package, analysis.Fact) bool { return false },
			ExportPackageFact: func(analysis.Fact) {},
		}
		if _, err := a.Run(pass); err != nil {
			return dm, fmt.Errorf("package %s: %w", pkg.PkgPath, err)
		}
	}
	return dm, nil
}

// runRequires runs a's prerequisite analyzers (depth-first, single package
// scope only) and returns their results keyed for ResultOf.
func runRequires(a *analysis.Analyzer, pkg *packages.Package) (map[*analysis.Analyzer]any, error) {
	results := make(map[*analysis.Analyzer]any)
	var visit func(a *analysis.Analyzer) error
	visit = func(a *analysis.Analyzer) error {
		if _, done := results[a]; done {
			return nil
		}
		for _, req := range a.Requires {
			if err := visit(req); err != nil {
				return err
			}
		}
		pass := &analysis.Pass{
			Analyzer:          a,
			Fset:              pkg.Fset,
			Files:             pkg.Syntax,
			Pkg:                pkg.Types,
			TypesInfo:         pkg.TypesInfo,
			TypesSizes:        pkg.TypesSizes,
			ResultOf:          results,
			Report:            func(analysis.Diagnostic) {},
			ImportObjectFact:  func(types.Object, analysis.Fact) bool { return false },
			ExportObjectFact:  func(types.Object, analysis.Fact) {},
			ImportPackageFact: func(*types.Package, analysis.Fact) bool { return false },
			ExportPackageFact: func(analysis.Fact) {},
		}
		res, err := a.Run(pass)
		if err != nil {
			return err
		}
		results[a] = res
		return nil
	}
	for _, req := range a.Requires {
		if err := visit(req); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// bucketFor classifies a diagnostic position against scope.
//
// When scope is nil (whole-project run), every positioned diagnostic is
// semantic-local to its own document; there is no "the document" to be
// non-local to. When scope names a document, a diagnostic positioned in
// that document buckets as syntax or semantic per scope.Kind, and a
// diagnostic positioned in any other document is nonlocal. A diagnostic
// with no resolvable position is unkeyed ("other").
func bucketFor(fset *token.FileSet, pos token.Pos, scope *coordkey.DocumentScope) (coordkey.DocumentID, string) {
	if !pos.IsValid() {
		return "", "other"
	}
	doc := coordkey.DocumentID(fset.Position(pos).Filename)
	if doc == "" {
		return "", "other"
	}
	if scope == nil {
		return doc, "semantic"
	}
	if doc != scope.DocumentID {
		return doc, "nonlocal"
	}
	if scope.Kind == coordkey.KindSyntax {
		return doc, "syntax"
	}
	return doc, "semantic"
}
