// Package faults defines the error kinds shared by the positioning pipeline.
//
// Every error returned by the core packages wraps exactly one of the sentinel
// kinds below, so callers can branch with errors.Is without parsing messages:
//
//   - ErrInvalidInput: malformed corner sets or malformed persisted files.
//     The current operation is aborted; the process keeps running.
//   - ErrResource: camera or file-system failures reported by an external
//     collaborator. The core never retries these.
//   - ErrDegenerateGeometry: corners that cannot produce a usable
//     perspective transform (collapsed width/height, zero area, singular
//     system), or a zero-sized rectified shape.
//
// "Not found" is not an error. A frame without detections yields an empty
// slice and a nil error.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed caller input or persisted content.
	ErrInvalidInput = errors.New("invalid input")

	// ErrResource marks capture or I/O failures from an external collaborator.
	ErrResource = errors.New("resource error")

	// ErrDegenerateGeometry marks corner geometry that cannot be rectified.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
)

// Invalid returns an ErrInvalidInput error with a formatted description.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Degenerate returns an ErrDegenerateGeometry error with a formatted description.
func Degenerate(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDegenerateGeometry, fmt.Sprintf(format, args...))
}

// Resource wraps err as an ErrResource error. The original error stays
// reachable through errors.Is / errors.As.
func Resource(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrResource, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrResource, msg, err)
}

// Kind reports the name of the error kind err belongs to, or "internal" when
// it carries none of the known kinds. Used for log attributes.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDegenerateGeometry):
		return "degenerate_geometry"
	case errors.Is(err, ErrResource):
		return "resource"
	default:
		return "internal"
	}
}
