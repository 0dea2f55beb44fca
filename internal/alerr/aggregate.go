package alerr

import (
	"fmt"
	"strings"
)

// Aggregate collects individual run failures under the ignore-failures policy
// and presents them as one composite error at the end of the run.
// The zero value is ready to use.
type Aggregate struct {
	failures []*Error
}

// Add appends a failure to the aggregate.
func (a *Aggregate) Add(err *Error) {
	if err == nil {
		return
	}
	a.failures = append(a.failures, err)
}

// Empty reports whether no failure has been recorded yet.
func (a *Aggregate) Empty() bool {
	return len(a.failures) == 0
}

// Len returns the number of recorded failures.
func (a *Aggregate) Len() int {
	return len(a.failures)
}

// Failures returns the recorded failures in the order they occurred.
func (a *Aggregate) Failures() []*Error {
	return a.failures
}

// Err returns the aggregate as a single composite error, or nil if empty.
func (a *Aggregate) Err() error {
	if a.Empty() {
		return nil
	}
	return New(ErrRunFailed, fmt.Sprintf("%d failure(s) during run", len(a.failures))).
		With("failures", a.summary())
}

// Error formats every captured failure with its alter/instance context.
func (a *Aggregate) Error() string {
	if a.Empty() {
		return "no failures"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d failure(s) during run", ErrRunFailed, len(a.failures))
	for i, f := range a.failures {
		fmt.Fprintf(&b, "\n%d. %s", i+1, indent(f.Error()))
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is / errors.As.
func (a *Aggregate) Unwrap() []error {
	errs := make([]error, len(a.failures))
	for i, f := range a.failures {
		errs[i] = f
	}
	return errs
}

func (a *Aggregate) summary() string {
	parts := make([]string, len(a.failures))
	for i, f := range a.failures {
		loc := f.Alter()
		if inst := f.Instance(); inst != "" {
			loc += "@" + inst
		}
		parts[i] = fmt.Sprintf("%s (%s)", f.GetCode(), loc)
	}
	return strings.Join(parts, ", ")
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = "   " + lines[i]
	}
	return strings.Join(lines, "\n")
}
