// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"math"
	"testing"
)

func TestCoordRoundTrip(t *testing.T) {
	tests := []Coord{
		0, 1, -1, 10000, -10000, 393701, -393701,
		math.MaxInt32, math.MinInt32,
		295276, 374016,
	}
	for _, c := range tests {
		if got := MmToCoord(c.Mm()); got != c {
			t.Errorf("round trip of %d failed, got %d (mm=%v)", c, got, c.Mm())
		}
	}
}

func TestMilToMm(t *testing.T) {
	tests := []struct {
		in  float64
		out float64
	}{
		{1, 0.0254},
		{15.748, 0.4},
		{100, 2.54},
		{0, 0},
	}
	for _, tt := range tests {
		if got := MilToMm(tt.in); got != tt.out {
			t.Errorf("MilToMm(%v) = %v, want %v", tt.in, got, tt.out)
		}
	}
}

func TestParseUnitValue(t *testing.T) {
	tests := []struct {
		in      string
		out     float64
		wantErr bool
	}{
		{"0.4mm", 0.4, false},
		{"15.748mil", 0.4, false},
		{"1.5", 1.5, false},
		{" 10mil ", 0.254, false},
		{"xyzmm", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseUnitValue(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseUnitValue(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.out {
				t.Errorf("parseUnitValue(%q) = %v, want %v", tt.in, got, tt.out)
			}
		})
	}
}

func TestParameterListRoundTrip(t *testing.T) {
	pl := &ParameterList{}
	pl.Set("RECORD", "1")
	pl.Set("NAME", "R_0402")
	pl.Set("VALUE", "10k")

	enc := pl.Encode()
	if enc[len(enc)-1] != 0 {
		t.Fatal("encoded parameter list must end with a NUL")
	}
	back := ParseParameters(enc)
	if len(back.Params) != 3 {
		t.Fatalf("got %d params, want 3", len(back.Params))
	}
	if v, _ := back.Get("name"); v != "R_0402" {
		t.Errorf("case-insensitive Get failed, got %q", v)
	}
	if v := back.GetInt("RECORD", 0); v != 1 {
		t.Errorf("GetInt = %d, want 1", v)
	}
}

func TestParameterListSetPreservesOrder(t *testing.T) {
	pl := &ParameterList{}
	pl.Set("A", "1")
	pl.Set("B", "2")
	pl.Set("C", "3")
	pl.Set("B", "20")
	if pl.Params[1].Key != "B" || pl.Params[1].Value != "20" {
		t.Errorf("Set did not replace in place: %+v", pl.Params)
	}
}

func TestBlockReaderWriter(t *testing.T) {
	w := &blockWriter{}
	w.writeBlock([]byte("hello"))
	w.writeBlock(nil)
	w.writeByte(0)

	r := newBlockReader(w.bytes())
	b, err := r.readBlock()
	if err != nil || string(b) != "hello" {
		t.Fatalf("readBlock = %q, %v", b, err)
	}
	b, err = r.readBlock()
	if err != nil || len(b) != 0 {
		t.Fatalf("empty readBlock = %q, %v", b, err)
	}
	z, err := r.readByte()
	if err != nil || z != 0 {
		t.Fatalf("terminator = %d, %v", z, err)
	}
	if _, err := r.readBlock(); err == nil {
		t.Error("readBlock past end should fail")
	}
}

func TestBlockReaderOverrun(t *testing.T) {
	// Declares 100 bytes but carries 2.
	r := newBlockReader([]byte{100, 0, 0, 0, 1, 2})
	if _, err := r.readBlock(); err == nil {
		t.Error("overrunning block length must fail")
	}
}

func TestNewUniqueID(t *testing.T) {
	SeedUniqueIDs(1)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewUniqueID()
		if len(id) != UniqueIDLength {
			t.Fatalf("id %q has wrong length", id)
		}
		for _, c := range id {
			if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
				t.Fatalf("id %q has invalid character %q", id, c)
			}
		}
		seen[id] = true
	}
	if len(seen) < 90 {
		t.Errorf("ids are not diverse enough: %d unique of 100", len(seen))
	}
}

func TestUTF16RoundTrip(t *testing.T) {
	tests := []string{"", "Times New Roman", "Arial", "日本語フォント"}
	for _, s := range tests {
		enc := encodeUTF16(s)
		got, err := decodeUTF16(enc)
		if err != nil {
			t.Fatalf("decodeUTF16(%q) failed: %v", s, err)
		}
		if got != s {
			t.Errorf("UTF-16 round trip of %q gave %q", s, got)
		}
	}
}
