// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import "testing"

func TestDefault_NonEmptyAndStable(t *testing.T) {
	a := Default()
	b := Default()
	if len(a) == 0 {
		t.Fatal("Default() returned no analyzers")
	}
	if len(a) != len(b) {
		t.Fatalf("Default() length not stable across calls: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Default() order not stable across calls at index %d", i)
		}
	}
}

func TestLookup_KnownPreset(t *testing.T) {
	set := Lookup("default")
	if len(set) != len(Default()) {
		t.Fatalf("Lookup(\"default\") = %d analyzers, want %d", len(set), len(Default()))
	}
}

func TestLookup_UnknownPresetFallsBackToDefault(t *testing.T) {
	set := Lookup("does-not-exist")
	if len(set) != len(Default()) {
		t.Fatalf("Lookup of unknown preset = %d analyzers, want Default()'s %d", len(set), len(Default()))
	}
}

func TestLookup_EmptyPresetFallsBackToDefault(t *testing.T) {
	set := Lookup("")
	if len(set) != len(Default()) {
		t.Fatalf("Lookup(\"\") = %d analyzers, want Default()'s %d", len(set), len(Default()))
	}
}
