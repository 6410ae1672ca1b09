// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
)

// PlaybackErrorKind classifies a failure to start output.
type PlaybackErrorKind int

const (
	DeviceUnavailable PlaybackErrorKind = iota
	StreamOpenFailed
)

var (
	ErrDeviceUnavailable = errors.New("output device unavailable")
	ErrStreamOpenFailed  = errors.New("failed to open output stream")

	ErrAlreadyRecording = errors.New("already recording")
	ErrNothingLoaded    = errors.New("no audio loaded")
	ErrUnknownBackend   = errors.New("unknown output backend")
	ErrNoDeviceChoice   = errors.New("output backend has no device selection")
)

func (k PlaybackErrorKind) String() string {
	switch k {
	case DeviceUnavailable:
		return "device unavailable"
	case StreamOpenFailed:
		return "stream open failed"
	default:
		return "unknown"
	}
}

// PlaybackError is returned by Play when no stream could be started. The
// engine is left Stopped.
type PlaybackError struct {
	Kind PlaybackErrorKind
	Err  error
}

func (e *PlaybackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("playback: %s: %v", e.Kind, e.Err)
	}
	return "playback: " + e.Kind.String()
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *PlaybackError) Is(target error) bool {
	switch e.Kind {
	case DeviceUnavailable:
		return target == ErrDeviceUnavailable
	case StreamOpenFailed:
		return target == ErrStreamOpenFailed
	}
	return false
}
