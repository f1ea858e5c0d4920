// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coordkey defines the data model shared by every component of the
// diagnostic coordinator: snapshot and project identity, the analyzer id
// bijection, and the request/result records that cross the service
// boundary.
package coordkey

import (
	"context"
	"sync/atomic"

	"golang.org/x/tools/go/analysis"
)

// SnapshotID is an opaque, content-addressed identifier for a workspace
// state. Only equality is required of it.
type SnapshotID string

// ProjectID is an opaque, comparable identifier for a project within a
// workspace.
type ProjectID string

// DocumentID is an opaque, comparable identifier for a document (file)
// within a project.
type DocumentID string

// AnalysisKind classifies the scope of a document-level request.
type AnalysisKind int

const (
	// KindUnspecified marks a whole-project request (no document).
	KindUnspecified AnalysisKind = iota
	KindSyntax
	KindSemantic
	KindNonLocal
)

func (k AnalysisKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindSemantic:
		return "semantic"
	case KindNonLocal:
		return "nonlocal"
	default:
		return "unspecified"
	}
}

// Priority is the two-class scheduling priority of a request.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// Span is a half-open byte-offset range within a document. It is only
// meaningful when a DocumentID is also set.
type Span struct {
	Start, End int
}

// AnalyzerReference deduplicates by RefID before its analyzers are ever
// extracted: two references sharing a RefID contribute the same analyzers
// exactly once, even if the reference values themselves differ.
type AnalyzerReference struct {
	RefID string

	// analyzersFor returns the ordered analyzers this reference contributes
	// for the given language tag. It is a func field rather than a method
	// so that tests can construct references without a concrete analyzer
	// registry.
	analyzersFor func(language string) []*analysis.Analyzer
}

// NewAnalyzerReference builds a reference with a fixed analyzer set,
// independent of the requested language (the common case: one reference,
// one fixed bundle of analyzers).
func NewAnalyzerReference(refID string, analyzers []*analysis.Analyzer) AnalyzerReference {
	return AnalyzerReference{
		RefID: refID,
		analyzersFor: func(string) []*analysis.Analyzer {
			return analyzers
		},
	}
}

// NewLanguageAnalyzerReference builds a reference whose contributed
// analyzers depend on the project's language tag.
func NewLanguageAnalyzerReference(refID string, fn func(language string) []*analysis.Analyzer) AnalyzerReference {
	return AnalyzerReference{RefID: refID, analyzersFor: fn}
}

// AnalyzersFor returns the ordered analyzers this reference contributes for
// language.
func (r AnalyzerReference) AnalyzersFor(language string) []*analysis.Analyzer {
	if r.analyzersFor == nil {
		return nil
	}
	return r.analyzersFor(language)
}

// AnalyzerID is a short string key for an analyzer, stable within the
// lifetime of one AnalyzerIDMap (and thus one CacheEntry), but never
// promised stable across process restarts.
type AnalyzerID string

// AnalyzerIDMap is a bijection between AnalyzerID and *analysis.Analyzer.
// Every value present was inserted exactly once; reverse lookup is always
// defined for any analyzer present in the map.
type AnalyzerIDMap struct {
	byID       map[AnalyzerID]*analysis.Analyzer
	reverse    map[*analysis.Analyzer]AnalyzerID
	ordered    []AnalyzerID // insertion order, for deterministic iteration
}

// NewAnalyzerIDMap returns an empty bijection.
func NewAnalyzerIDMap() *AnalyzerIDMap {
	return &AnalyzerIDMap{
		byID:    make(map[AnalyzerID]*analysis.Analyzer),
		reverse: make(map[*analysis.Analyzer]AnalyzerID),
	}
}

// Add inserts a into the map under id. It must not already contain a.
func (m *AnalyzerIDMap) Add(id AnalyzerID, a *analysis.Analyzer) {
	m.byID[id] = a
	m.reverse[a] = id
	m.ordered = append(m.ordered, id)
}

// Lookup returns the analyzer for id, or (nil, false) if id is unknown.
func (m *AnalyzerIDMap) Lookup(id AnalyzerID) (*analysis.Analyzer, bool) {
	a, ok := m.byID[id]
	return a, ok
}

// ReverseLookup returns the id assigned to a, or ("", false) if a was never
// added to this map. Spec: a missing reverse lookup during result shaping
// is a contract violation, not a recoverable condition.
func (m *AnalyzerIDMap) ReverseLookup(a *analysis.Analyzer) (AnalyzerID, bool) {
	id, ok := m.reverse[a]
	return id, ok
}

// Len reports the number of analyzers in the map.
func (m *AnalyzerIDMap) Len() int { return len(m.ordered) }

// Ordered returns the analyzer ids in insertion order.
func (m *AnalyzerIDMap) Ordered() []AnalyzerID {
	out := make([]AnalyzerID, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// Analyzers returns the analyzers in insertion order.
func (m *AnalyzerIDMap) Analyzers() []*analysis.Analyzer {
	out := make([]*analysis.Analyzer, 0, len(m.ordered))
	for _, id := range m.ordered {
		out = append(out, m.byID[id])
	}
	return out
}

// Compilation is the opaque, host-owned representation of a project's
// sources, ready for semantic queries. Its fields are only ever read by the
// Host Adapter that produced it.
type Compilation struct {
	// ProjectID identifies the project this compilation was built for.
	ProjectID ProjectID
	// Concurrent reports whether this compilation was configured for
	// concurrent internal work via WithConcurrentBuild.
	Concurrent bool
	// Packages is the opaque payload a concrete Host Adapter attaches;
	// the coordinator never inspects it directly.
	Packages any
}

// ProjectHandle is a value identifying one project within one workspace
// snapshot. Two ProjectHandles may share a ProjectID but have distinct
// identity (e.g. across transient respawns within one logical snapshot);
// the cache treats them as interchangeable once SnapshotID also matches
// (see Reconcile).
type ProjectHandle struct {
	ID       ProjectID
	Language string

	// identity distinguishes ProjectHandle *instances* that share the same
	// ID: the source language's handles have reference identity that Go's
	// value types don't carry implicitly, so construction assigns one
	// explicitly via NewHandleIdentity. Two handles built by the same
	// NewProjectHandle-style call site share identity only if they copy
	// the same value; independently constructed handles never collide.
	identity uint64

	// SolutionRefs and Refs are appended in that order (solution first,
	// then project) before deduplication, matching spec.md §4.1.
	SolutionRefs []AnalyzerReference
	Refs         []AnalyzerReference

	// GetCompilation fetches (or lazily builds) this project's
	// compilation. It may suspend and must honor ctx cancellation.
	GetCompilation func(ctx context.Context) (*Compilation, error)

	// DocumentCount is the number of documents belonging to this project,
	// used by the telemetry unit-count computation (spec.md §4.4 step 6).
	DocumentCount int

	// GetTextDocument looks up a document by id within this project. It
	// returns (nil, true) if the id is known but the document is absent
	// (matches the source behavior inherited by spec.md's Open Questions:
	// reconciliation passes through a missing document as nil, silently).
	GetTextDocument func(id DocumentID) (*DocumentID, bool)

	// SkippedAnalyzers reports the set of analyzer ids that are host-only
	// and thus always skipped for this project, each with a short reason.
	SkippedAnalyzers func(*AnalyzerIDMap) map[AnalyzerID]string
}

var handleIdentitySeq atomic.Uint64

// NewHandleIdentity returns a process-unique identity value, never zero.
func NewHandleIdentity() uint64 { return handleIdentitySeq.Add(1) }

// WithNewIdentity returns a copy of h stamped with a fresh, process-unique
// identity. Two ProjectHandles are "the exact same handle" (spec.md §4.2)
// only if they were copied from a value that went through WithNewIdentity
// (or the zero value, which never matches anything).
func (h ProjectHandle) WithNewIdentity() ProjectHandle {
	h.identity = NewHandleIdentity()
	return h
}

// HandleIdentity returns h's stamped identity, or 0 if h was never stamped.
func (h ProjectHandle) HandleIdentity() uint64 { return h.identity }

// AnalyzerRefs returns the deduplication input for C1: solution references
// followed by project references, in spec.md §4.1 order.
func (h ProjectHandle) AnalyzerRefs() []AnalyzerReference {
	out := make([]AnalyzerReference, 0, len(h.SolutionRefs)+len(h.Refs))
	out = append(out, h.SolutionRefs...)
	out = append(out, h.Refs...)
	return out
}

// DocumentScope narrows an analysis run to one document, optionally a span
// within it, for a fixed subset of analyzers. A nil scope means
// whole-project analysis.
type DocumentScope struct {
	DocumentID     DocumentID
	Span           *Span
	AnalyzerSubset []AnalyzerID
	Kind           AnalysisKind
}

// Diagnostic is an opaque finding; its structure is out of scope for this
// coordinator (spec.md §1 Non-goals) beyond the fields needed for
// partitioning.
type Diagnostic struct {
	Message  string
	Severity string
	Location Span
	Category string
	Tags     []string
}

// DiagnosticMap partitions one analyzer's diagnostics by where they came
// from, each keyed bucket grouped by document.
type DiagnosticMap struct {
	SyntaxLocal   map[DocumentID][]Diagnostic
	SemanticLocal map[DocumentID][]Diagnostic
	NonLocal      map[DocumentID][]Diagnostic
	Other         []Diagnostic
}

// TelemetryInfo is opaque per-analyzer performance/usage data, out of scope
// beyond its pass-through handling in C5.
type TelemetryInfo struct {
	Data map[string]any
}

// Request is one boundary GetDiagnostics call (spec.md §6).
type Request struct {
	Snapshot SnapshotID
	Project  ProjectHandle

	Document *DocumentID
	Span     *Span
	Kind     *AnalysisKind

	AnalyzerIDs []AnalyzerID

	Priority         Priority
	ReportSuppressed bool
	WantPerf         bool
	WantTelemetry    bool

	// IDEOptions is an opaque bag forwarded unexamined to the Host Adapter.
	IDEOptions map[string]any
}

// DocumentPresent reports whether this request names a document.
func (r Request) DocumentPresent() bool { return r.Document != nil }

// PerAnalyzerResult pairs one analyzer's id with its partitioned
// diagnostics.
type PerAnalyzerResult struct {
	AnalyzerID AnalyzerID
	Diagnostics DiagnosticMap
}

// PerAnalyzerTelemetry pairs one analyzer's id with its telemetry.
type PerAnalyzerTelemetry struct {
	AnalyzerID AnalyzerID
	Telemetry  TelemetryInfo
}

// Result is the boundary GetDiagnostics response (spec.md §6).
type Result struct {
	PerAnalyzer []PerAnalyzerResult
	Telemetry   []PerAnalyzerTelemetry
}

// Empty reports whether r carries no analyzer results at all (the
// EmptyResolve outcome of spec.md §7).
func (r Result) Empty() bool { return len(r.PerAnalyzer) == 0 }
