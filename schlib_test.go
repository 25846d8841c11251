// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"reflect"
	"testing"
)

func testSymbol() *Symbol {
	pin1 := NewPin()
	pin1.Designator = "1"
	pin1.Name = "A"
	pin1.X = -10
	pin1.Length = 10
	pin1.SetOrientation(PinLeft)

	pin2 := NewPin()
	pin2.Designator = "2"
	pin2.Name = "K"
	pin2.X = 10
	pin2.Length = 10
	pin2.ElectricalType = PinInput

	return &Symbol{
		DesignatorPrefix: "D",
		PartCount:        1,
		DisplayModeCount: 1,
		Pins:             []*Pin{pin1, pin2},
		Rectangles: []*SchRectangle{{
			OwnerPartID: -1, X1: -10, Y1: -5, X2: 10, Y2: 5,
			LineWidth: 1, IsSolid: true, AreaColor: 0xB0FFFF, Color: 0x000080,
		}},
		Parameters: []*SchParameter{
			{Name: "Value", Value: "LED", Hidden: false, X: 0, Y: 10},
		},
	}
}

func roundTripSchLib(t *testing.T, lib *Library) *Library {
	t.Helper()
	c, err := lib.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	raw, err := c.Bytes()
	if err != nil {
		t.Fatalf("container serialisation failed: %v", err)
	}
	back, err := NewBytes(raw, KindSchLib, &Options{})
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	return back
}

func TestSchLibSymbolRoundTrip(t *testing.T) {
	lib := NewLibrary(KindSchLib)
	if err := lib.Add(&Component{
		Name:        "LED0603",
		Description: "Chip LED",
		Symbol:      testSymbol(),
	}); err != nil {
		t.Fatal(err)
	}

	back := roundTripSchLib(t, lib)
	got, ok := back.Get("LED0603")
	if !ok {
		t.Fatal("symbol lost in round trip")
	}
	if got.Description != "Chip LED" {
		t.Errorf("description = %q", got.Description)
	}
	sym := got.Symbol
	if len(sym.Pins) != 2 {
		t.Fatalf("got %d pins, want 2", len(sym.Pins))
	}
	if sym.Pins[0].Orientation() != PinLeft {
		t.Errorf("pin 1 orientation = %v, want Left", sym.Pins[0].Orientation())
	}
	if sym.Pins[1].ElectricalType != PinInput {
		t.Errorf("pin 2 electrical type = %v", sym.Pins[1].ElectricalType)
	}
	if sym.DesignatorPrefix != "D" {
		t.Errorf("designator prefix = %q", sym.DesignatorPrefix)
	}
	if len(sym.Rectangles) != 1 || !sym.Rectangles[0].IsSolid {
		t.Error("body rectangle lost")
	}
	if len(sym.Parameters) != 1 || sym.Parameters[0].Value != "LED" {
		t.Error("parameter lost")
	}
}

func TestSchLibDecodeStability(t *testing.T) {
	lib := NewLibrary(KindSchLib)
	if err := lib.Add(&Component{Name: "OPAMP", Symbol: testSymbol()}); err != nil {
		t.Fatal(err)
	}
	first := roundTripSchLib(t, lib)
	second := roundTripSchLib(t, first)
	if !reflect.DeepEqual(first.Components, second.Components) {
		t.Error("second decode differs from first")
	}
	if !reflect.DeepEqual(first.Fonts, second.Fonts) {
		t.Error("font table is not stable")
	}
}

func TestSchLibPartCountStorage(t *testing.T) {
	lib := NewLibrary(KindSchLib)
	sym := testSymbol()
	sym.PartCount = 4
	if err := lib.Add(&Component{Name: "QUAD", Symbol: sym}); err != nil {
		t.Fatal(err)
	}

	c, err := lib.Encode()
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := c.Stream(streamFileHeader)
	blob, _, err := readLengthPrefixed(hb)
	if err != nil {
		t.Fatal(err)
	}
	hdr := ParseParameters(blob)
	// Stored as logical+1.
	if got := hdr.GetInt("PartCount0", 0); got != 5 {
		t.Errorf("stored part count = %d, want 5", got)
	}

	back := roundTripSchLib(t, lib)
	if got := back.Components[0].Symbol.PartCount; got != 4 {
		t.Errorf("decoded part count = %d, want 4", got)
	}
}

func TestSchLibDefaults(t *testing.T) {
	lib := NewLibrary(KindSchLib)
	if len(lib.Fonts) != 1 || lib.Fonts[0].Name != "Times New Roman" ||
		lib.Fonts[0].Size != 10 {
		t.Errorf("default font table = %+v", lib.Fonts)
	}
	pin := NewPin()
	if pin.ElectricalType != PinPassive || !pin.ShowName || !pin.ShowDesignator ||
		pin.Color != 0 {
		t.Errorf("pin defaults wrong: %+v", pin)
	}
}

func TestPinBinaryRoundTrip(t *testing.T) {
	tests := []*Pin{
		NewPin(),
		{
			OwnerPartID:    2,
			ElectricalType: PinPower,
			Rotated:        true,
			Flipped:        true,
			Hidden:         true,
			ShowName:       true,
			Locked:         true,
			Length:         30,
			X:              -100,
			Y:              50,
			Color:          0x0000FF,
			Name:           "VCC",
			Designator:     "8",
			Description:    "supply",
			SymbolOutside:  PinSymbolClock,
		},
	}
	for i, p := range tests {
		enc := p.encode()
		got, err := decodePin(enc)
		if err != nil {
			t.Fatalf("case %d: decodePin failed: %v", i, err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Errorf("case %d: pin round trip mismatch\n got %+v\nwant %+v", i, got, p)
		}
	}
}

func TestPinOrientation(t *testing.T) {
	tests := []struct {
		rotated, flipped bool
		want             PinOrientation
	}{
		{false, false, PinRight},
		{false, true, PinLeft},
		{true, false, PinUp},
		{true, true, PinDown},
	}
	for _, tt := range tests {
		p := &Pin{Rotated: tt.rotated, Flipped: tt.flipped}
		if got := p.Orientation(); got != tt.want {
			t.Errorf("rotated=%v flipped=%v -> %v, want %v",
				tt.rotated, tt.flipped, got, tt.want)
		}
	}
}

func TestFixedPointRadii(t *testing.T) {
	tests := []struct {
		in       float64
		intPart  string
		fracPart string
	}{
		{10.5, "10", "50000"},
		{3, "3", ""},
		// The fractional part clamps just below the scale instead of
		// overflowing into the integer part.
		{5.999999, "5", "99999"},
	}
	for _, tt := range tests {
		pl := &ParameterList{}
		setFixedPoint(pl, "RADIUS", "RADIUS_FRAC", tt.in)
		if got, _ := pl.Get("RADIUS"); got != tt.intPart {
			t.Errorf("radius(%v) int part = %q, want %q", tt.in, got, tt.intPart)
		}
		got, ok := pl.Get("RADIUS_FRAC")
		if tt.fracPart == "" {
			if ok {
				t.Errorf("radius(%v) has unexpected frac %q", tt.in, got)
			}
			continue
		}
		if got != tt.fracPart {
			t.Errorf("radius(%v) frac = %q, want %q", tt.in, got, tt.fracPart)
		}
	}
}

func TestEllipticalArcRoundTrip(t *testing.T) {
	lib := NewLibrary(KindSchLib)
	sym := testSymbol()
	sym.EllipticalArcs = []*SchEllipticalArc{{
		OwnerPartID:     -1,
		X:               5, Y: 5,
		Radius:          10.5,
		SecondaryRadius: 4.25,
		StartAngle:      0,
		EndAngle:        180,
		LineWidth:       1,
	}}
	if err := lib.Add(&Component{Name: "EA", Symbol: sym}); err != nil {
		t.Fatal(err)
	}
	back := roundTripSchLib(t, lib)
	got := back.Components[0].Symbol.EllipticalArcs[0]
	if got.Radius != 10.5 {
		t.Errorf("radius = %v, want 10.5", got.Radius)
	}
	if got.SecondaryRadius != 4.25 {
		t.Errorf("secondary radius = %v, want 4.25", got.SecondaryRadius)
	}
}
