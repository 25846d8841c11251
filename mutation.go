// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/saferwall/altium/log"
)

const (
	// BackupKeep is the number of timestamped backups retained per file.
	BackupKeep = 5

	// backupTimeFormat orders backups lexically by creation time.
	backupTimeFormat = "20060102_150405"
)

// Engine drives every mutating operation through one pipeline: gate the
// path, read the container to a model, apply the operation, back the file
// up, then commit atomically. It is the only component that opens a
// library file for write.
type Engine struct {
	sandbox *Sandbox
	logger  *log.Helper

	// now is stubbed by tests that pin backup names.
	now func() time.Time
}

// NewEngine returns an engine confined to the sandbox.
func NewEngine(sandbox *Sandbox, opts *Options) *Engine {
	e := &Engine{sandbox: sandbox, now: time.Now}
	if opts != nil && opts.Logger != nil {
		e.logger = log.NewHelper(opts.Logger)
	} else {
		e.logger = log.NewHelper(log.NewFilter(log.DefaultLogger,
			log.FilterLevel(log.LevelError)))
	}
	return e
}

// Sandbox exposes the engine's path gate.
func (e *Engine) Sandbox() *Sandbox { return e.sandbox }

// MutateOptions tune one pipeline run.
type MutateOptions struct {
	// DryRun applies the operation in memory and reports what would
	// happen; the file is left untouched and no backup is made.
	DryRun bool `json:"dry_run,omitempty"`

	// NoBackup skips the timestamped backup before commit.
	NoBackup bool `json:"no_backup,omitempty"`
}

// mutate is the shared pipeline. create selects the behaviour for a
// missing target: a blank library instead of NotFound.
func (e *Engine) mutate(path string, kind LibraryKind, create bool,
	mo MutateOptions, apply func(l *Library) error) error {

	target, err := e.gate(path, kind)
	if err != nil {
		return err
	}

	lib, existed, err := e.readToModel(target, kind, create)
	if err != nil {
		return e.sandbox.SanitizeError(err)
	}

	if err := apply(lib); err != nil {
		return e.sandbox.SanitizeError(err)
	}
	lib.syncHeaderCount()

	if mo.DryRun {
		return nil
	}

	if existed && !mo.NoBackup {
		if err := e.backup(target); err != nil {
			return &OpError{Kind: KindBackupFailure,
				Msg: e.sandbox.Sanitize(err.Error()), Err: err}
		}
	}

	if err := lib.WriteFile(target); err != nil {
		failKind := KindCommitFailure
		if oe, ok := err.(*OpError); ok {
			failKind = oe.Kind
		} else if k := KindOf(err); k == KindEncode || k == KindNameCollision ||
			k == KindInvalidPrimitive {
			failKind = k
		}
		return &OpError{Kind: failKind, Msg: e.sandbox.Sanitize(err.Error()), Err: err}
	}
	e.logger.Debugf("committed %s", filepath.Base(target))
	return nil
}

// gate canonicalises the target and rejects wrong extensions for the
// expected kind.
func (e *Engine) gate(path string, kind LibraryKind) (string, error) {
	target, err := e.sandbox.Resolve(path)
	if err != nil {
		return "", err
	}
	if got := KindForPath(target); got != kind {
		return "", opErrorf(KindKindMismatch, ErrKindMismatch,
			"%s is not a %s file", filepath.Base(target), kind)
	}
	return target, nil
}

// readToModel parses the target, or hands back a blank library when the
// operation may create it.
func (e *Engine) readToModel(target string, kind LibraryKind, create bool) (*Library, bool, error) {
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) && create {
			return NewLibrary(kind), false, nil
		}
		return nil, false, opErrorf(KindNotFound, err, "file %s not found",
			filepath.Base(target))
	}
	lib, err := New(target, &Options{})
	if err != nil {
		return nil, true, err
	}
	return lib, true, nil
}

// readOnly parses a library without opening it for write.
func (e *Engine) readOnly(path string, kind LibraryKind) (*Library, error) {
	target, err := e.gate(path, kind)
	if err != nil {
		return nil, err
	}
	lib, _, err := e.readToModel(target, kind, false)
	if err != nil {
		return nil, e.sandbox.SanitizeError(err)
	}
	return lib, nil
}

// backup copies the current file bytes to a timestamped sibling and
// prunes the set down to the retention cap.
func (e *Engine) backup(target string) error {
	name := fmt.Sprintf("%s.%s.bak", target, e.now().Format(backupTimeFormat))
	if err := copyFile(target, name); err != nil {
		return err
	}
	return e.pruneBackups(target)
}

func (e *Engine) pruneBackups(target string) error {
	matches, err := filepath.Glob(target + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) <= BackupKeep {
		return nil
	}
	// The timestamp format sorts lexically, oldest first.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-BackupKeep] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
