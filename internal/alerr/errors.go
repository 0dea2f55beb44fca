// Package alerr provides standardized error handling for applyalter.
// All errors have stable, machine-readable codes, structured context, and proper wrapping.
package alerr

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number} where category is 1-9 and number is 001-999.
type Code string

// Error codes organized by category.
const (
	// Alterscript errors (E1xxx) - problems with alter definitions
	ErrAlterInvalid  Code = "E1001" // Alter document is malformed or invalid
	ErrAlterNotFound Code = "E1002" // Alter file or package entry does not exist
	ErrAlterPackage  Code = "E1003" // Alter package (zip) cannot be read

	// Configuration errors (E2xxx) - invalid statement/unit parameters
	ErrMissingStatement   Code = "E2001" // Migration is missing its main statement
	ErrMissingIDQuery     Code = "E2002" // ID-list migration is missing idquery
	ErrMissingIDColumn    Code = "E2003" // ID-list migration is missing idcolumn
	ErrInvalidStep        Code = "E2004" // Migration step is missing or < 1
	ErrMissingPlaceholder Code = "E2005" // Main statement lacks the placeholder token
	ErrInvalidRange       Code = "E2006" // Range migration bounds are invalid
	ErrInstanceConfig     Code = "E2007" // Instance configuration is invalid

	// Run errors (E3xxx) - problems during alter application
	ErrCheckFailed     Code = "E3001" // Idempotency probe itself errored
	ErrStatementFailed Code = "E3002" // A plain SQL statement failed
	ErrMigrationFailed Code = "E3003" // A migration step failed
	ErrRunFailed       Code = "E3004" // Aggregate of deferred run failures

	// SQL errors (E4xxx) - problems with database operations
	ErrSQLExecution   Code = "E4001" // SQL statement failed to execute
	ErrSQLConnection  Code = "E4002" // Database connection failed
	ErrSQLTransaction Code = "E4003" // Commit or transaction operation failed

	// Internal errors (E9xxx) - unexpected internal errors
	EInternalError Code = "E9001" // Internal error
)

// Error is the standard error type for applyalter.
// It provides structured error information with codes, context, and wrapping support.
type Error struct {
	code    Code           // Machine-readable error code
	message string         // Human-readable error message
	context map[string]any // Structured context data
	cause   error          // Wrapped underlying error
	stack   string         // Stack trace for debugging
}

// Error returns the formatted error string.
// Format:
//
//	[E3002] alter statement failed
//	  alter: 2024-07_add_audit.yaml
//	  instance: prod-42
//	  sql: update t set ...
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.code, e.message))

	// Write context in sorted order for deterministic output
	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n  %s: %v", k, e.context[k]))
		}
	}

	if e.cause != nil {
		b.WriteString(fmt.Sprintf("\n  cause: %v", e.cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error for errors.Unwrap compatibility.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether the target error matches this error.
// It matches if target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.code == targetErr.code
	}

	return false
}

// GetCode returns the error code.
func (e *Error) GetCode() Code {
	return e.code
}

// GetMessage returns the error message.
func (e *Error) GetMessage() string {
	return e.message
}

// GetContext returns the error context map.
func (e *Error) GetContext() map[string]any {
	return e.context
}

// GetCause returns the underlying cause error.
func (e *Error) GetCause() error {
	return e.cause
}

// GetStack returns the stack trace.
func (e *Error) GetStack() string {
	return e.stack
}

// With adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

// WithInstance adds database instance context to the error.
func (e *Error) WithInstance(id string) *Error {
	return e.With("instance", id)
}

// WithAlter adds alter unit context to the error.
func (e *Error) WithAlter(id string) *Error {
	return e.With("alter", id)
}

// WithSQL adds SQL statement context to the error.
func (e *Error) WithSQL(sql string) *Error {
	return e.With("sql", sql)
}

// WithTable adds table context to the error.
// Format: "schema.table" or just "table" if schema is empty.
func (e *Error) WithTable(schema, table string) *Error {
	if schema != "" {
		return e.With("table", schema+"."+table)
	}
	return e.With("table", table)
}

// Instance returns the instance id attached to this error, if any.
func (e *Error) Instance() string {
	id, _ := e.context["instance"].(string)
	return id
}

// Alter returns the alter id attached to this error, if any.
func (e *Error) Alter() string {
	id, _ := e.context["alter"].(string)
	return id
}

// captureStack captures a stack trace for debugging.
func captureStack(skip int) string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		// Skip runtime internals
		if strings.Contains(frame.File, "runtime/") {
			if !more {
				break
			}
			continue
		}
		b.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return b.String()
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		stack:   captureStack(3),
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		code:    code,
		message: fmt.Sprintf(format, args...),
		context: make(map[string]any),
		stack:   captureStack(3),
	}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(code Code, err error, msg string) *Error {
	if err == nil {
		return New(code, msg)
	}
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		cause:   err,
		stack:   captureStack(3),
	}
}

// Wrapf creates a new Error that wraps an existing error with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// GetErrorCode extracts the error code from an error chain.
// Returns empty string if no code is found.
func GetErrorCode(err error) Code {
	if err == nil {
		return ""
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae.code
	}

	return ""
}

// Is checks if an error has the specified code.
func Is(err error, code Code) bool {
	return GetErrorCode(err) == code
}

// IsConfiguration reports whether the error is a configuration error (E2xxx).
// Configuration errors always abort the run regardless of the failure policy.
func IsConfiguration(err error) bool {
	code := GetErrorCode(err)
	return strings.HasPrefix(string(code), "E2")
}
