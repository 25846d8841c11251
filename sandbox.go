// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// pathPlaceholder substitutes allow-listed directory prefixes in outgoing
// error text.
const pathPlaceholder = "<allowed>"

// Sandbox confines every filesystem target to an allow-list of
// directories. Paths are canonicalised before the check, so symlinks
// cannot escape.
type Sandbox struct {
	allowed []string
}

// NewSandbox canonicalises the allow-list entries. An empty list falls
// back to the process working directory.
func NewSandbox(dirs []string) (*Sandbox, error) {
	if len(dirs) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dirs = []string{cwd}
	}
	s := &Sandbox{}
	for _, d := range dirs {
		canon, err := canonicalize(d)
		if err != nil {
			return nil, fmt.Errorf("allow-list entry %s: %w", filepath.Base(d), err)
		}
		s.allowed = append(s.allowed, canon)
	}
	return s, nil
}

// canonicalize makes a path absolute and resolves every symlink in its
// deepest existing ancestor, so the containment check sees real
// locations.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	// Resolve from the deepest component that exists; the unlinked tail is
	// reattached untouched.
	dir := abs
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			parts := append([]string{resolved}, tail...)
			return filepath.Join(parts...), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
	}
}

// Resolve canonicalises path and confirms it lies under at least one
// allow-list entry. The error carries only the file name, never the
// parent directories.
func (s *Sandbox) Resolve(path string) (string, error) {
	canon, err := canonicalize(path)
	if err != nil {
		return "", opErrorf(KindPathDenied, ErrPathDenied, "cannot resolve %s",
			filepath.Base(path))
	}
	for _, a := range s.allowed {
		if canon == a || strings.HasPrefix(canon, a+string(filepath.Separator)) {
			return canon, nil
		}
	}
	return "", opErrorf(KindPathDenied, ErrPathDenied,
		"path %s is outside the allowed directories", filepath.Base(path))
}

// Sanitize strips allow-listed directory prefixes out of an error message
// so internal layout never reaches the caller.
func (s *Sandbox) Sanitize(msg string) string {
	for _, a := range s.allowed {
		msg = strings.ReplaceAll(msg, a+string(filepath.Separator), pathPlaceholder+string(filepath.Separator))
		msg = strings.ReplaceAll(msg, a, pathPlaceholder)
	}
	return msg
}

// SanitizeError rewraps err with a sanitised message, preserving its
// kind.
func (s *Sandbox) SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Kind: KindOf(err), Msg: s.Sanitize(err.Error()), Err: err}
}
