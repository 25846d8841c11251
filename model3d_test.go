// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"bytes"
	"strconv"
	"testing"
)

func stepPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte("ISO-10303-21;"[i%13])
	}
	return payload
}

func TestModelRegistryAttachExtract(t *testing.T) {
	SeedUniqueIDs(23)
	lib := NewLibrary(KindPcbLib)
	step := stepPayload(4096)

	m := lib.Models.Attach("m.step", step, 0, 0, 90, 0.1)
	body := NewComponentBody()
	body.UniqueID = NewUniqueID()
	body.SetModelID(m.ID)
	body.SetModelName("m.step")
	body.SetEmbedded(true)
	if err := lib.Add(&Component{Name: "QFN",
		Footprint: &Footprint{
			Pads:   []*Pad{testPad("1", 0, 1, 1, PadShapeRect)},
			Bodies: []*ComponentBody{body},
		}}); err != nil {
		t.Fatal(err)
	}

	back := roundTripPcbLib(t, lib)
	if back.Models == nil || len(back.Models.Models) != 1 {
		t.Fatal("model registry lost in round trip")
	}
	got, idx, ok := back.Models.Lookup(m.ID)
	if !ok || idx != 0 {
		t.Fatalf("model lookup failed, idx=%d ok=%v", idx, ok)
	}
	if !bytes.Equal(got.Data, step) {
		t.Error("extracted STEP payload is not byte-identical")
	}
	if got.Name != "m.step" || got.RotZ != 90 {
		t.Errorf("model metadata lost: %+v", got)
	}
	// The body still resolves.
	gb := back.Components[0].Footprint.Bodies[0]
	if _, _, ok := back.Models.Lookup(gb.ModelID()); !ok {
		t.Error("component body GUID does not resolve after round trip")
	}
}

func TestModelRegistryDetachRenumbers(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	a := lib.Models.Attach("a.step", stepPayload(100), 0, 0, 0, 0)
	b := lib.Models.Attach("b.step", stepPayload(200), 0, 0, 0, 0)
	c := lib.Models.Attach("c.step", stepPayload(300), 0, 0, 0, 0)

	if err := lib.Models.Detach(b.ID); err != nil {
		t.Fatal(err)
	}
	if _, idx, ok := lib.Models.Lookup(a.ID); !ok || idx != 0 {
		t.Errorf("model a index = %d", idx)
	}
	if _, idx, ok := lib.Models.Lookup(c.ID); !ok || idx != 1 {
		t.Errorf("model c index = %d, want 1 after renumbering", idx)
	}

	// The encoded streams must be dense 0..N-1.
	cont := NewContainer()
	if err := lib.Models.encode(cont); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if !cont.HasStream(storageLibrary, storageModels, strconv.Itoa(i)) {
			t.Errorf("stream %d missing after detach", i)
		}
	}
	if cont.HasStream(storageLibrary, storageModels, "2") {
		t.Error("stale stream 2 left after detach")
	}
}

func TestModelRegistryDetachMissing(t *testing.T) {
	reg := NewModelRegistry()
	if err := reg.Detach("00000000-0000-0000-0000-000000000000"); err == nil {
		t.Error("detaching an absent GUID must fail")
	}
}

func TestNormalizeGUID(t *testing.T) {
	tests := []struct {
		in      string
		out     string
		wantErr bool
	}{
		{"{ab69b2c9-6d0d-4a3c-9ba7-52fd6a0f1f4e}", "AB69B2C9-6D0D-4A3C-9BA7-52FD6A0F1F4E", false},
		{"AB69B2C9-6D0D-4A3C-9BA7-52FD6A0F1F4E", "AB69B2C9-6D0D-4A3C-9BA7-52FD6A0F1F4E", false},
		{"not-a-guid", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeGUID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeGUID(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.out {
			t.Errorf("NormalizeGUID(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}
