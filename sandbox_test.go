// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestSandboxResolve(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSandbox([]string{dir})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		in     string
		denied bool
	}{
		{"inside", filepath.Join(dir, "a.PcbLib"), false},
		{"nested", filepath.Join(dir, "sub", "b.PcbLib"), false},
		{"outside", filepath.Join(os.TempDir(), "evil.PcbLib"), true},
		{"dotdot escape", filepath.Join(dir, "..", "evil.PcbLib"), true},
		{"dotdot inside", filepath.Join(dir, "sub", "..", "c.PcbLib"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.in)
			if tt.denied {
				if !errors.Is(err, ErrPathDenied) {
					t.Fatalf("Resolve(%q) = %q, %v; want PathDenied", tt.in, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.in, err)
			}
			if !strings.HasPrefix(got, dir) {
				t.Errorf("resolved %q escapes the allow-list", got)
			}
		})
	}
}

func TestSandboxSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	allowed := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(allowed, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
	s, err := NewSandbox([]string{allowed})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve(filepath.Join(link, "x.PcbLib")); !errors.Is(err, ErrPathDenied) {
		t.Errorf("symlink escape not rejected: %v", err)
	}
}

func TestSandboxDeniedErrorHidesParents(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	s, err := NewSandbox([]string{allowed})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Resolve(filepath.Join(outside, "secret", "x.PcbLib"))
	if err == nil {
		t.Fatal("expected denial")
	}
	if strings.Contains(err.Error(), outside) {
		t.Errorf("error leaks the parent directory: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "x.PcbLib") {
		t.Errorf("error should still name the file: %q", err.Error())
	}
}

func TestSandboxSanitize(t *testing.T) {
	allowed := t.TempDir()
	s, err := NewSandbox([]string{allowed})
	if err != nil {
		t.Fatal(err)
	}
	canon, err := s.Resolve(filepath.Join(allowed, "lib.PcbLib"))
	if err != nil {
		t.Fatal(err)
	}
	msg := "cannot open " + canon
	got := s.Sanitize(msg)
	if strings.Contains(got, allowed) && !strings.Contains(got, pathPlaceholder) {
		t.Errorf("Sanitize(%q) = %q still carries the allow-list prefix", msg, got)
	}
}

func TestSandboxDefaultsToCwd(t *testing.T) {
	s, err := NewSandbox(nil)
	if err != nil {
		t.Fatal(err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve(filepath.Join(cwd, "x.PcbLib")); err != nil {
		t.Errorf("cwd default not applied: %v", err)
	}
}
