// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"strings"
	"testing"
)

func TestExportCSV(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	comp := namedComponent("R0402")
	comp.Description = "Thick film resistor"
	if err := lib.Add(comp); err != nil {
		t.Fatal(err)
	}
	out, err := lib.ExportCSV()
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d CSV lines, want 2", len(lines))
	}
	if lines[0] != "name,description,pads,primitives" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "R0402,Thick film resistor,1,") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestRenderFootprint(t *testing.T) {
	fp := &Footprint{Pads: []*Pad{
		testPad("1", -0.75, 0.9, 0.95, PadShapeRect),
		testPad("2", 0.75, 0.9, 0.95, PadShapeRect),
	}}
	out := fp.RenderFootprint(40, 10)
	if !strings.Contains(out, "#") {
		t.Error("render has no pad cells")
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 10 {
		t.Errorf("render has %d rows, want 10", len(lines))
	}
	for _, l := range lines {
		if len(l) != 40 {
			t.Errorf("render row width %d, want 40", len(l))
		}
	}
}

func TestRenderEmptyFootprint(t *testing.T) {
	out := (&Footprint{}).RenderFootprint(0, 0)
	if !strings.Contains(out, "empty") {
		t.Errorf("empty render = %q", out)
	}
}

func TestRenderSymbol(t *testing.T) {
	out := testSymbol().RenderSymbol(40, 12)
	if !strings.Contains(out, "=") {
		t.Error("render has no pin strokes")
	}
	if !strings.Contains(out, "|") || !strings.Contains(out, "-") {
		t.Error("render has no body rectangle")
	}
}

func TestSummary(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	if err := lib.Add(namedComponent("X")); err != nil {
		t.Fatal(err)
	}
	s := lib.Summary()
	if !strings.Contains(s, "PcbLib") || !strings.Contains(s, "X") {
		t.Errorf("summary = %q", s)
	}
}
