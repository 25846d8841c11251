// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestContainerRoundTrip(t *testing.T) {
	c := NewContainer()
	big := bytes.Repeat([]byte{0xAB}, 5000) // forces a regular FAT chain
	small := []byte("pipe|delimited|header")

	if err := c.SetStream(small, "FileHeader"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStream(big, "RES-0402", "Data"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStream([]byte{1, 2, 3}, "Library", "Models", "Header"); err != nil {
		t.Fatal(err)
	}

	raw, err := c.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw)%512 != 0 {
		t.Fatalf("image size %d is not sector aligned", len(raw))
	}

	back, err := ParseContainer(raw)
	if err != nil {
		t.Fatalf("ParseContainer failed: %v", err)
	}
	got, err := back.Stream("FileHeader")
	if err != nil || !bytes.Equal(got, small) {
		t.Fatalf("FileHeader stream mismatch: %v", err)
	}
	got, err = back.Stream("RES-0402", "Data")
	if err != nil || !bytes.Equal(got, big) {
		t.Fatalf("component Data stream mismatch: %v", err)
	}
	got, err = back.Stream("Library", "Models", "Header")
	if err != nil || !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("nested stream mismatch: %v", err)
	}
}

func TestContainerCaseInsensitiveLookup(t *testing.T) {
	c := NewContainer()
	if err := c.SetStream([]byte("x"), "MyPart", "Data"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Stream("MYPART", "data"); err != nil {
		t.Errorf("case-insensitive lookup failed: %v", err)
	}
	// Storage keeps the original case.
	if c.Root.Children[0].Name != "MyPart" {
		t.Errorf("storage is not case-preserving: %q", c.Root.Children[0].Name)
	}
}

func TestTruncateStorageName(t *testing.T) {
	tests := []struct {
		in       string
		outUnits int
	}{
		{"SHORT", 5},
		{strings.Repeat("A", 31), 31},
		{strings.Repeat("A", 40), 31},
		{strings.Repeat("€", 40), 31},
		// Surrogate pairs may not be split, so an astral-plane name can
		// land one unit under the cap.
		{strings.Repeat("\U0001F600", 20), 30},
	}
	for _, tt := range tests {
		got := TruncateStorageName(tt.in)
		if units := utf16Units(got); units != tt.outUnits {
			t.Errorf("TruncateStorageName(%q) has %d units, want %d",
				tt.in, units, tt.outUnits)
		}
		if !strings.HasPrefix(tt.in, got) {
			t.Errorf("truncation of %q is not a prefix: %q", tt.in, got)
		}
	}
}

func TestCreateStorageCollision(t *testing.T) {
	c := NewContainer()
	long := strings.Repeat("B", 40)
	if _, err := c.CreateStorage(long); err != nil {
		t.Fatal(err)
	}
	// A second long name truncating to the same 31 units must collide.
	if _, err := c.CreateStorage(long + "TAIL"); !errors.Is(err, ErrNameCollision) {
		t.Errorf("expected ErrNameCollision, got %v", err)
	}
}

func TestRenameStorage(t *testing.T) {
	c := NewContainer()
	if _, err := c.CreateStorage("OLD"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateStorage("TAKEN"); err != nil {
		t.Fatal(err)
	}
	if err := c.RenameStorage("taken", "OLD"); !errors.Is(err, ErrNameCollision) {
		t.Errorf("rename onto existing name should collide, got %v", err)
	}
	if err := c.RenameStorage("NEW", "OLD"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Storage("NEW"); err != nil {
		t.Errorf("renamed storage not found: %v", err)
	}
}

func TestDeleteEntry(t *testing.T) {
	c := NewContainer()
	if err := c.SetStream([]byte("x"), "A", "Data"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteEntry("A", "Data"); err != nil {
		t.Fatal(err)
	}
	if c.HasStream("A", "Data") {
		t.Error("stream survived deletion")
	}
	if err := c.DeleteEntry("A", "Data"); err == nil {
		t.Error("deleting a missing entry should fail")
	}
}

func TestContainerEmptyStream(t *testing.T) {
	c := NewContainer()
	if err := c.SetStream(nil, "Storage"); err != nil {
		t.Fatal(err)
	}
	raw, err := c.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseContainer(raw)
	if err != nil {
		t.Fatal(err)
	}
	got, err := back.Stream("Storage")
	if err != nil {
		t.Fatalf("empty stream lost: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty stream has %d bytes", len(got))
	}
}

func TestContainerManyEntries(t *testing.T) {
	// Enough components to spill the directory over several sectors.
	c := NewContainer()
	for i := 0; i < 64; i++ {
		name := strings.Repeat("C", 10) + string(rune('A'+i%26)) + string(rune('0'+i/26))
		if err := c.SetStream(bytes.Repeat([]byte{byte(i)}, 100+i), name, "Data"); err != nil {
			t.Fatal(err)
		}
	}
	raw, err := c.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseContainer(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Root.Children) != 64 {
		t.Fatalf("got %d root entries, want 64", len(back.Root.Children))
	}
}

func TestParseContainerRejectsGarbage(t *testing.T) {
	if _, err := ParseContainer([]byte("not a compound file at all")); err == nil {
		t.Error("garbage input must not parse")
	}
}
