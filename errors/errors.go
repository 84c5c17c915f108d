// Package errors provides error handling for gauntlet.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for operators
//
// It also defines the sentinels used across the pipeline and the RPC
// boundary. A unit's own failure never surfaces as one of these; it is
// captured into a Result instead. The sentinels describe call-level
// conditions: an identifier that could not be resolved, a repair that is
// not permitted, an aborted run, a broken transport.
//
// Usage:
//
//	if _, err := registry.Resolve(ref); errors.Is(err, errors.ErrResolution) {
//	    // the instance is gone
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Assertions
var (
	AssertionFailedf    = crdb.AssertionFailedf
	HasAssertionFailure = crdb.HasAssertionFailure
)

// Sentinels for the pipeline error taxonomy.
// Use these with errors.Is(); wrap them with errors.Wrap() to add context.
var (
	// ErrUnitFailure marks a plugin that reported failure from its own logic.
	ErrUnitFailure = New("unit failure")

	// ErrUnexpectedUnit marks a plugin that panicked.
	ErrUnexpectedUnit = New("unexpected unit error")

	// ErrAbort is the internal halt signal; it stops a run immediately.
	ErrAbort = New("pipeline aborted")

	// ErrResolution indicates an identifier could not be resolved to a live object.
	ErrResolution = New("unresolved identifier")

	// ErrCapability indicates a repair that the plugin or its history does not permit.
	ErrCapability = New("capability error")

	// ErrTransport indicates the RPC round-trip itself failed.
	ErrTransport = New("transport error")

	// ErrCallback indicates an event callback returned an error.
	ErrCallback = New("callback failed")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates a resource conflict (e.g., duplicate plugin id)
	ErrConflict = New("resource conflict")

	// ErrIncompatible indicates a plugin requires a framework version we are not
	ErrIncompatible = New("incompatible plugin")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// IsResolutionError checks if an error is or wraps ErrResolution
func IsResolutionError(err error) bool {
	return err != nil && Is(err, ErrResolution)
}

// IsCapabilityError checks if an error is or wraps ErrCapability
func IsCapabilityError(err error) bool {
	return err != nil && Is(err, ErrCapability)
}

// IsAbort checks if an error is or wraps ErrAbort
func IsAbort(err error) bool {
	return err != nil && Is(err, ErrAbort)
}

// IsTransportError checks if an error is or wraps ErrTransport
func IsTransportError(err error) bool {
	return err != nil && Is(err, ErrTransport)
}

// NewResolutionError creates a resolution error with a formatted message
func NewResolutionError(format string, args ...interface{}) error {
	return Wrap(ErrResolution, Newf(format, args...).Error())
}

// NewCapabilityError creates a capability error with a formatted message
func NewCapabilityError(format string, args ...interface{}) error {
	return Wrap(ErrCapability, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// Abort returns an error that halts the current run when returned by a unit.
func Abort(reason string) error {
	return Wrap(ErrAbort, reason)
}
