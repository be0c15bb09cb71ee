// Package errors provides error handling for nrps.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints
//   - Marking errors with a category so errors.Is works across wrapping
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := loadTable(); err != nil {
//	    return errors.Wrap(err, "failed to build signature table")
//	}
//
//	// Classify into the engine taxonomy
//	return errors.Mark(err, errors.ErrArtifactLoad)
//
//	// Check errors
//	if errors.Is(err, errors.ErrArtifactLoad) {
//	    // skip that scheme
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
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Engine error taxonomy. Concrete errors are marked with one of these so that
// callers can decide whether a failure is per-input, per-scheme or fatal.
var (
	// ErrInputValidation marks a malformed identifier or signature. Only that input is rejected.
	ErrInputValidation = New("invalid input")

	// ErrArtifactLoad marks a corrupt or incompatible classifier artifact. Only that scheme is skipped.
	ErrArtifactLoad = New("artifact load failed")

	// ErrEncoding marks a signature/descriptor mismatch during feature encoding.
	ErrEncoding = New("encoding failed")

	// ErrTableBuild marks a malformed reference dataset. Fatal for a run.
	ErrTableBuild = New("signature table build failed")
)

// Common sentinel errors
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// IsInputValidationError checks if an error is or wraps ErrInputValidation
func IsInputValidationError(err error) bool {
	return err != nil && Is(err, ErrInputValidation)
}

// IsArtifactLoadError checks if an error is or wraps ErrArtifactLoad
func IsArtifactLoadError(err error) bool {
	return err != nil && Is(err, ErrArtifactLoad)
}

// IsEncodingError checks if an error is or wraps ErrEncoding
func IsEncodingError(err error) bool {
	return err != nil && Is(err, ErrEncoding)
}

// IsTableBuildError checks if an error is or wraps ErrTableBuild
func IsTableBuildError(err error) bool {
	return err != nil && Is(err, ErrTableBuild)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}
