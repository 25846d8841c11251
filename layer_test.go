// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import "testing"

func TestLayerNames(t *testing.T) {
	tests := []struct {
		in  Layer
		out string
	}{
		{LayerTop, "TopLayer"},
		{LayerBottom, "BottomLayer"},
		{LayerMid1, "MidLayer1"},
		{LayerMid1 + 5, "MidLayer6"},
		{LayerTopOverlay, "TopOverlay"},
		{LayerKeepOut, "KeepOutLayer"},
		{LayerMechanical1, "Mechanical1"},
		{LayerMechanical16, "Mechanical16"},
		{LayerMulti, "MultiLayer"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.out {
			t.Errorf("Layer(%d).String() = %q, want %q", tt.in, got, tt.out)
		}
		if back := ParseLayer(tt.out); back != tt.in {
			t.Errorf("ParseLayer(%q) = %d, want %d", tt.out, back, tt.in)
		}
	}
}

func TestParseLayerCaseInsensitive(t *testing.T) {
	if ParseLayer("toplayer") != LayerTop {
		t.Error("layer names must match case-insensitively")
	}
	if ParseLayer("NoSuchLayer") != LayerUnknown {
		t.Error("unknown names must map to LayerUnknown")
	}
}

func TestLayerClasses(t *testing.T) {
	if !LayerTop.IsCopper() || !LayerTop.IsSignal() {
		t.Error("TopLayer classification wrong")
	}
	if LayerTopOverlay.IsCopper() {
		t.Error("overlay is not copper")
	}
	if !LayerMulti.IsCopper() || LayerMulti.IsSignal() {
		t.Error("MultiLayer classification wrong")
	}
}
