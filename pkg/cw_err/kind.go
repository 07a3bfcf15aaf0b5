// pkg/cw_err/kind.go

package cw_err

import (
	"errors"
	"fmt"

	cerr "github.com/cockroachdb/errors"
)

// Kind classifies a wipe failure. The set is closed; callers switch on it to
// decide how an operator is told about the failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindPermissions - insufficient privilege for raw device access
	KindPermissions
	// KindDeviceNotFound - requested path absent from discovery
	KindDeviceNotFound
	// KindIo - read/write/flush failure on the device
	KindIo
	// KindPlatformCommand - firmware command rejected or platform API failure
	KindPlatformCommand
	// KindVerification - post-wipe check failed
	KindVerification
	// KindSigning - serialization, key load/generation or signature failure
	KindSigning
	// KindConfig - invalid operation configuration
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindPermissions:
		return "Permissions"
	case KindDeviceNotFound:
		return "DeviceNotFound"
	case KindIo:
		return "Io"
	case KindPlatformCommand:
		return "PlatformCommand"
	case KindVerification:
		return "Verification"
	case KindSigning:
		return "Signing"
	case KindConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// Error is a failure tagged with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New tags err with kind. A nil err stays nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: cerr.WithStackDepth(err, 1)}
}

// Newf builds a new tagged error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: cerr.NewWithDepthf(1, format, args...)}
}

// Wrapf wraps err with a message and tags it with kind.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: cerr.WrapWithDepthf(1, err, format, args...)}
}

// KindOf returns the outermost Kind attached to err.
func KindOf(err error) (Kind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return KindUnknown, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// StageError is the terminal Failed(stage, error) outcome of a wipe run.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed [%s]: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage attaches stage context to err. The kind already carried by err wins;
// fallback is used for untagged errors.
func AtStage(stage string, fallback Kind, err error) *StageError {
	kind := fallback
	var ke *Error
	if errors.As(err, &ke) {
		kind = ke.Kind
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
