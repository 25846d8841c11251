// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"errors"
	"reflect"
	"testing"
)

func namedComponent(name string) *Component {
	return &Component{Name: name,
		Footprint: &Footprint{Pads: []*Pad{testPad("1", 0, 1, 1, PadShapeRect)}}}
}

func TestKindForPath(t *testing.T) {
	tests := []struct {
		in  string
		out LibraryKind
	}{
		{"lib.PcbLib", KindPcbLib},
		{"lib.pcblib", KindPcbLib},
		{"lib.SchLib", KindSchLib},
		{"/a/b/c.SCHLIB", KindSchLib},
		{"lib.txt", KindUnknown},
		{"lib", KindUnknown},
	}
	for _, tt := range tests {
		if got := KindForPath(tt.in); got != tt.out {
			t.Errorf("KindForPath(%q) = %v, want %v", tt.in, got, tt.out)
		}
	}
}

func TestLibraryAddDuplicate(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	if err := lib.Add(namedComponent("R1")); err != nil {
		t.Fatal(err)
	}
	// The storage key is case-insensitive.
	if err := lib.Add(namedComponent("r1")); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestLibraryGetExactVsLookup(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	if err := lib.Add(namedComponent("CapSmall")); err != nil {
		t.Fatal(err)
	}
	if _, ok := lib.Get("CAPSMALL"); ok {
		t.Error("Get must match the exact name")
	}
	if _, ok := lib.Lookup("CAPSMALL"); !ok {
		t.Error("Lookup must match case-insensitively")
	}
}

func TestLibraryRename(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	for _, n := range []string{"A", "B", "C"} {
		if err := lib.Add(namedComponent(n)); err != nil {
			t.Fatal(err)
		}
	}
	if err := lib.Rename("B", "A"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("rename onto taken name: got %v", err)
	}
	if err := lib.Rename("MISSING", "D"); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("rename of missing component: got %v", err)
	}
	if err := lib.Rename("B", "B2"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(lib.Names(), []string{"A", "B2", "C"}) {
		t.Errorf("rename changed order: %v", lib.Names())
	}
	// Renaming only the case is allowed.
	if err := lib.Rename("C", "c"); err != nil {
		t.Errorf("case-only rename failed: %v", err)
	}
}

func TestLibraryReorder(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	for _, n := range []string{"A", "B", "C", "D", "E"} {
		if err := lib.Add(namedComponent(n)); err != nil {
			t.Fatal(err)
		}
	}
	tail := lib.Reorder([]string{"D", "B", "MISSING"})
	if !reflect.DeepEqual(lib.Names(), []string{"D", "B", "A", "C", "E"}) {
		t.Errorf("reorder = %v", lib.Names())
	}
	if !reflect.DeepEqual(tail, []string{"A", "C", "E"}) {
		t.Errorf("appended tail = %v", tail)
	}
}

func TestLibraryInsertAfter(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	for _, n := range []string{"A", "B"} {
		if err := lib.Add(namedComponent(n)); err != nil {
			t.Fatal(err)
		}
	}
	if err := lib.Insert(1, namedComponent("A2")); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(lib.Names(), []string{"A", "A2", "B"}) {
		t.Errorf("insert order = %v", lib.Names())
	}
}

func TestComponentClone(t *testing.T) {
	src := namedComponent("SRC")
	cp := src.Clone()
	cp.Footprint.Pads[0].Designator = "99"
	if src.Footprint.Pads[0].Designator == "99" {
		t.Error("clone shares pad state with the source")
	}
}

func TestHeaderCountInvariant(t *testing.T) {
	lib := NewLibrary(KindPcbLib)
	for _, n := range []string{"A", "B", "C"} {
		if err := lib.Add(namedComponent(n)); err != nil {
			t.Fatal(err)
		}
	}
	lib.Remove("B")
	lib.syncHeaderCount()
	if got := lib.Header.GetInt("COMPONENTCOUNT", -1); got != 2 {
		t.Errorf("declared count = %d, want 2", got)
	}
}
