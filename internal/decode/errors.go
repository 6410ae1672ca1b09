// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
)

// LoadErrorKind classifies why a file could not be turned into a SampleBuffer.
type LoadErrorKind int

const (
	Unreadable LoadErrorKind = iota
	Empty
	UnsupportedFormat
)

var (
	ErrUnreadable        = errors.New("audio file unreadable")
	ErrEmpty             = errors.New("audio file contains no samples")
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// errNotApplicable is returned by a strategy that cannot even attempt
	// the file (unknown container, missing ffmpeg, ...).
	errNotApplicable = errors.New("strategy not applicable")
)

func (k LoadErrorKind) String() string {
	switch k {
	case Unreadable:
		return "unreadable"
	case Empty:
		return "empty"
	case UnsupportedFormat:
		return "unsupported format"
	default:
		return "unknown"
	}
}

func (k LoadErrorKind) sentinel() error {
	switch k {
	case Empty:
		return ErrEmpty
	case UnsupportedFormat:
		return ErrUnsupportedFormat
	default:
		return ErrUnreadable
	}
}

// LoadError is returned by Load. It matches the Err* sentinels with errors.Is
// and unwraps to the underlying decoder failure, if any.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Kind)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this error's kind.
func (e *LoadError) Is(target error) bool {
	return target == e.Kind.sentinel()
}
