// Package applyalter provides the public API for the applyalter database
// migration tool. It offers a clean, ergonomic interface for loading alter
// files and applying them to one or more database instances with
// idempotency checks and batched data migrations.
package applyalter

import (
	"errors"

	"github.com/hlop3z/applyalter/internal/alerr"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
var (
	// ErrMissingInstances is returned when neither an instances file nor an
	// explicit instance list is provided.
	ErrMissingInstances = errors.New("applyalter: database instances required")

	// ErrNoAlters is returned when no alter files could be loaded from the
	// given paths.
	ErrNoAlters = errors.New("applyalter: no alter files found")
)

// IsConfigurationError reports whether err is a configuration problem with
// the alter files or instances rather than an execution failure. A run that
// failed with a configuration error did not alter any database.
func IsConfigurationError(err error) bool {
	return alerr.IsConfiguration(err)
}

// Failures unpacks the individual failures of a run that finished under the
// ignore-failures policy. For any other error it returns the error itself
// as a single-element slice; for nil it returns nil.
func Failures(err error) []error {
	if err == nil {
		return nil
	}
	var agg *alerr.Aggregate
	if errors.As(err, &agg) {
		failures := agg.Failures()
		out := make([]error, len(failures))
		for i, f := range failures {
			out[i] = f
		}
		return out
	}
	return []error{err}
}
