// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package telemetry provides the optional "perf tracker" collaborator
// referenced by spec.md §4.4 step 6: when present, active, and requested,
// it receives a unit count and the raw per-analyzer telemetry for one
// compute attempt.
//
// Grounded on gopls/internal/progress.Tracker: an injectable, optional
// collaborator queried for whether a session is active before any work is
// done on its behalf.
package telemetry

import (
	"github.com/rdiagd/rdiag/internal/coordkey"
)

// Sample is what the pipeline hands to an active Tracker for one attempt.
type Sample struct {
	UnitCount int
	ForSpan   bool
	Telemetry []coordkey.PerAnalyzerTelemetry
}

// Tracker receives performance samples for requests that asked for them.
type Tracker interface {
	// Active reports whether a telemetry session is currently listening;
	// the pipeline skips all telemetry work when this is false.
	Active() bool
	// Record stores or forwards one sample.
	Record(Sample)
}

// NoopTracker is a Tracker that is never active; it is the coordinator's
// default when no collaborator is injected.
type NoopTracker struct{}

func (NoopTracker) Active() bool     { return false }
func (NoopTracker) Record(Sample) {}

// Recorder is a simple in-memory Tracker used by production callers that
// want to observe recent samples (e.g. for a debug endpoint) and by tests.
type Recorder struct {
	active  bool
	samples []Sample
}

// NewRecorder returns a Recorder. active controls the Active() result.
func NewRecorder(active bool) *Recorder {
	return &Recorder{active: active}
}

func (r *Recorder) Active() bool { return r.active }

func (r *Recorder) Record(s Sample) {
	r.samples = append(r.samples, s)
}

// Samples returns every sample recorded so far.
func (r *Recorder) Samples() []Sample {
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// SetActive flips whether future Active() calls report true.
func (r *Recorder) SetActive(active bool) { r.active = active }
