// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"testing"

	"golang.org/x/tools/go/analysis"

	"github.com/rdiagd/rdiag/internal/coordinator"
	"github.com/rdiagd/rdiag/internal/coordkey"
	"github.com/rdiagd/rdiag/internal/hostadapter/hostadaptertest"
)

func newHandler(host *hostadaptertest.Host, analyzers ...*analysis.Analyzer) *Handler {
	coord := coordinator.New(host, nil)
	projects := NewProjectSource(host, analyzers)
	return NewHandler(coord, projects)
}

func TestResolve_SameDirProducesSameProjectID(t *testing.T) {
	host := &hostadaptertest.Host{}
	s := NewProjectSource(host, []*analysis.Analyzer{hostadaptertest.NewAnalyzer("A")})

	snap1, p1 := s.Resolve("/work/proj")
	snap2, p2 := s.Resolve("/work/proj")

	if snap1 != snap2 {
		t.Fatalf("SnapshotID not stable for the same dir: %v vs %v", snap1, snap2)
	}
	if p1.ID != p2.ID {
		t.Fatalf("ProjectID not stable for the same dir: %v vs %v", p1.ID, p2.ID)
	}
}

func TestDiagnostics_MissingDirIsAnError(t *testing.T) {
	host := &hostadaptertest.Host{}
	h := newHandler(host, hostadaptertest.NewAnalyzer("A"))

	result, output, err := h.Diagnostics(context.Background(), nil, diagnosticsInput{})
	if err != nil {
		t.Fatalf("Diagnostics returned a Go error instead of an IsError result: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result when dir is empty")
	}
	if len(output.PerAnalyzer) != 0 {
		t.Fatalf("expected no output on error, got %v", output)
	}
}

func TestDiagnostics_DefaultsToAllKnownAnalyzerIDs(t *testing.T) {
	host := &hostadaptertest.Host{}
	h := newHandler(host, hostadaptertest.NewAnalyzer("A"), hostadaptertest.NewAnalyzer("B"))

	result, output, err := h.Diagnostics(context.Background(), nil, diagnosticsInput{Dir: "/work/proj"})
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if len(output.PerAnalyzer) != 2 {
		t.Fatalf("PerAnalyzer = %d entries, want 2 (A and B)", len(output.PerAnalyzer))
	}
}

func TestDiagnostics_RestrictsToRequestedAnalyzerIDs(t *testing.T) {
	host := &hostadaptertest.Host{}
	h := newHandler(host, hostadaptertest.NewAnalyzer("A"), hostadaptertest.NewAnalyzer("B"))

	_, output, err := h.Diagnostics(context.Background(), nil, diagnosticsInput{
		Dir:         "/work/proj",
		AnalyzerIDs: []string{"A"},
	})
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if len(output.PerAnalyzer) != 1 || output.PerAnalyzer[0].AnalyzerID != coordkey.AnalyzerID("A") {
		t.Fatalf("PerAnalyzer = %+v, want exactly analyzer A", output.PerAnalyzer)
	}
}

func TestDiagnostics_WantTelemetryFalseOmitsTelemetry(t *testing.T) {
	host := &hostadaptertest.Host{}
	h := newHandler(host, hostadaptertest.NewAnalyzer("A"))

	_, output, err := h.Diagnostics(context.Background(), nil, diagnosticsInput{Dir: "/work/proj"})
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if len(output.Telemetry) != 0 {
		t.Fatalf("Telemetry = %+v, want none when want_telemetry is false", output.Telemetry)
	}
}

func TestDiagnostics_WantTelemetryTrueIncludesTelemetry(t *testing.T) {
	host := &hostadaptertest.Host{}
	h := newHandler(host, hostadaptertest.NewAnalyzer("A"))

	_, output, err := h.Diagnostics(context.Background(), nil, diagnosticsInput{Dir: "/work/proj", WantTelemetry: true})
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if len(output.Telemetry) != 1 {
		t.Fatalf("Telemetry = %+v, want one entry for analyzer A", output.Telemetry)
	}
}

func TestParsePriority(t *testing.T) {
	if got := parsePriority("high"); got != coordkey.PriorityHigh {
		t.Fatalf("parsePriority(\"high\") = %v, want PriorityHigh", got)
	}
	if got := parsePriority(""); got != coordkey.PriorityNormal {
		t.Fatalf("parsePriority(\"\") = %v, want PriorityNormal", got)
	}
	if got := parsePriority("normal"); got != coordkey.PriorityNormal {
		t.Fatalf("parsePriority(\"normal\") = %v, want PriorityNormal", got)
	}
}
