package engine

// errors.go defines the upload error taxonomy.
//
// Only ErrInvalidUpload aborts an upload. Everything else is a Diagnostic:
// collected per upload, reported alongside a successful partial apply, and
// never fatal. Eviction and catalog lookups are total by construction and
// have no error paths.

import (
	"errors"
	"fmt"
)

// ErrInvalidUpload is returned when no identity field resolves to a
// VehicleKey and no default key is configured. The upload is rejected as a
// whole; no state is mutated.
var ErrInvalidUpload = errors.New("upload carries no resolvable vehicle identity")

// DiagnosticKind classifies per-field upload conditions.
type DiagnosticKind string

const (
	// DiagUnknownCode marks a code the catalog resolved via the generic
	// fallback. Informational: the reading still materializes.
	DiagUnknownCode DiagnosticKind = "unknown_code"

	// DiagMalformedValue marks a value that could not be interpreted for
	// its definition. That single channel update is skipped.
	DiagMalformedValue DiagnosticKind = "malformed_value"

	// DiagIncompletePosition marks an upload with only one of
	// latitude/longitude. The position update is suppressed entirely.
	DiagIncompletePosition DiagnosticKind = "incomplete_position"
)

// Diagnostic is one non-fatal per-field condition.
type Diagnostic struct {
	Kind  DiagnosticKind `json:"kind"`
	Code  string         `json:"code,omitempty"`
	Value string         `json:"value,omitempty"`
	Note  string         `json:"note,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Code != "" {
		return fmt.Sprintf("%s: code %s (%s)", d.Kind, d.Code, d.Note)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Note)
}
