// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure for RPC consumers.
type Kind string

// Error kinds surfaced on the tool protocol.
const (
	KindPathDenied       Kind = "PathDenied"
	KindNotFound         Kind = "NotFound"
	KindKindMismatch     Kind = "KindMismatch"
	KindDecode           Kind = "Decode"
	KindEncode           Kind = "Encode"
	KindInvalidPrimitive Kind = "InvalidPrimitive"
	KindDuplicateName    Kind = "DuplicateName"
	KindNameCollision    Kind = "NameCollision"
	KindModelNotFound    Kind = "ModelNotFound"
	KindModelMissing     Kind = "ModelMissing"
	KindBackupFailure    Kind = "BackupFailure"
	KindCommitFailure    Kind = "CommitFailure"
	KindUnknownOperation Kind = "UnknownOperation"
	KindInvalidArgument  Kind = "InvalidArgument"
)

// Errors returned by the container and record codecs.
var (
	// ErrNotCompoundFile is returned when the magic signature of an OLE
	// compound file is absent.
	ErrNotCompoundFile = errors.New("not a compound file binary container")

	// ErrStreamNotFound is returned when a named stream is absent from the
	// container.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrStorageNotFound is returned when a named storage is absent from the
	// container.
	ErrStorageNotFound = errors.New("storage not found")

	// ErrNameCollision is returned when truncating a storage name to the
	// 31 code unit limit collides with an existing sibling.
	ErrNameCollision = errors.New("storage name collides after truncation")

	// ErrBlockTooLarge is returned when a length-prefixed block overruns the
	// remaining stream bytes.
	ErrBlockTooLarge = errors.New("block length overruns stream")

	// ErrUnexpectedRecordType is returned when a primitive stream carries an
	// unknown record discriminator.
	ErrUnexpectedRecordType = errors.New("unexpected record type")

	// ErrBadFontName is returned when the UTF-16 font name of a text record
	// cannot be decoded.
	ErrBadFontName = errors.New("unreadable font name")

	// ErrBadGUID is returned when a model id does not parse as a GUID.
	ErrBadGUID = errors.New("malformed model GUID")

	// ErrCoordOverflow is returned when a coordinate does not fit a signed
	// 32-bit internal unit value.
	ErrCoordOverflow = errors.New("coordinate overflows internal units")

	// ErrCornerRadiusRange is returned when a pad corner radius percentage
	// exceeds 100.
	ErrCornerRadiusRange = errors.New("corner radius percent out of range")

	// ErrComponentEmpty is returned when writing a component that holds no
	// primitives at all.
	ErrComponentEmpty = errors.New("component has no primitives")

	// ErrDuplicateName is returned when a component name is already taken
	// under the case-insensitive storage key.
	ErrDuplicateName = errors.New("duplicate component name")

	// ErrComponentNotFound is returned when a component lookup by exact name
	// fails.
	ErrComponentNotFound = errors.New("component not found")

	// ErrModelNotFound is returned when a model GUID does not resolve in the
	// embedded model registry.
	ErrModelNotFound = errors.New("model not found in registry")

	// ErrKindMismatch is returned when a file extension or a cross-library
	// operation disagrees on the library kind.
	ErrKindMismatch = errors.New("library kind mismatch")

	// ErrPathDenied is returned when a target path escapes the sandbox
	// allow-list.
	ErrPathDenied = errors.New("path outside allowed directories")
)

// OpError is the structured failure handed back to the RPC surface. Msg is
// already sanitised: file paths are reduced to their last component and no
// stream offsets are carried.
type OpError struct {
	Kind Kind   `json:"kind"`
	Msg  string `json:"message"`
	Err  error  `json:"-"`
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the wrapped cause.
func (e *OpError) Unwrap() error { return e.Err }

func opErrorf(kind Kind, err error, format string, a ...interface{}) *OpError {
	return &OpError{Kind: kind, Msg: fmt.Sprintf(format, a...), Err: err}
}

// KindOf maps an arbitrary error to its protocol kind. Unclassified errors
// decode as a generic Decode fault, the safest statement about a file the
// engine could not make sense of.
func KindOf(err error) Kind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	switch {
	case errors.Is(err, ErrPathDenied):
		return KindPathDenied
	case errors.Is(err, ErrComponentNotFound), errors.Is(err, ErrStreamNotFound),
		errors.Is(err, ErrStorageNotFound):
		return KindNotFound
	case errors.Is(err, ErrKindMismatch):
		return KindKindMismatch
	case errors.Is(err, ErrDuplicateName):
		return KindDuplicateName
	case errors.Is(err, ErrNameCollision):
		return KindNameCollision
	case errors.Is(err, ErrModelNotFound):
		return KindModelNotFound
	case errors.Is(err, ErrCoordOverflow), errors.Is(err, ErrCornerRadiusRange):
		return KindEncode
	case errors.Is(err, ErrComponentEmpty):
		return KindInvalidPrimitive
	}
	return KindDecode
}
