package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hlop3z/applyalter/internal/alerr"
)

// FormatError formats an error for CLI display in Cargo/rustc style.
// If the error is an *alerr.Error, it extracts structured information.
// An *alerr.Aggregate is rendered as a numbered failure list. Anything
// else formats as a generic error.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	switch e := err.(type) {
	case *alerr.Aggregate:
		return formatAggregate(e)
	case *alerr.Error:
		return formatAlterError(e, false)
	default:
		return formatGenericError(err)
	}
}

// FormatErrorTrace is FormatError with the captured stack trace appended.
// Used for --trace.
func FormatErrorTrace(err error) string {
	if err == nil {
		return ""
	}

	switch e := err.(type) {
	case *alerr.Aggregate:
		var b strings.Builder
		b.WriteString(formatAggregate(e))
		for _, f := range e.Failures() {
			if stack := f.GetStack(); stack != "" {
				b.WriteString("\n")
				b.WriteString(Dim(stack))
				b.WriteString("\n")
			}
		}
		return b.String()
	case *alerr.Error:
		return formatAlterError(e, true)
	default:
		return formatGenericError(err)
	}
}

// formatAlterError formats an *alerr.Error in Cargo style.
func formatAlterError(err *alerr.Error, trace bool) string {
	var b strings.Builder

	code := string(err.GetCode())
	ctx := err.GetContext()

	// First line: error[E3002]: message
	b.WriteString(Error("error"))
	b.WriteString("[")
	b.WriteString(Code(code))
	b.WriteString("]: ")
	b.WriteString(err.GetMessage())
	b.WriteString("\n")

	// Run location if available: --> alter @ instance
	alterID, _ := ctx["alter"].(string)
	instanceID, _ := ctx["instance"].(string)
	if alterID != "" || instanceID != "" {
		b.WriteString("  ")
		b.WriteString(stylePipe.Render("-->"))
		b.WriteString(" ")
		loc := alterID
		if instanceID != "" {
			if loc != "" {
				loc += " @ " + instanceID
			} else {
				loc = instanceID
			}
		}
		b.WriteString(Info(loc))
		b.WriteString("\n")
	}

	// The offending SQL, pipe-framed like a source excerpt.
	if sql, ok := ctx["sql"].(string); ok && sql != "" {
		b.WriteString("   ")
		b.WriteString(Pipe())
		b.WriteString("\n")
		for _, line := range strings.Split(strings.TrimRight(sql, "\n"), "\n") {
			b.WriteString("   ")
			b.WriteString(Pipe())
			b.WriteString(" ")
			b.WriteString(SQL(line))
			b.WriteString("\n")
		}
	}

	// Remaining context details, sorted for stable output.
	excludeKeys := map[string]bool{"alter": true, "instance": true, "sql": true}
	var details []string
	for k, v := range ctx {
		if excludeKeys[k] {
			continue
		}
		details = append(details, fmt.Sprintf("%s: %v", k, v))
	}
	sort.Strings(details)
	for _, detail := range details {
		b.WriteString("   ")
		b.WriteString(Pipe())
		b.WriteString(" ")
		b.WriteString(detail)
		b.WriteString("\n")
	}

	// Cause if present
	if cause := err.GetCause(); cause != nil {
		b.WriteString(Note("cause"))
		b.WriteString(": ")
		b.WriteString(cause.Error())
		b.WriteString("\n")
	}

	if trace {
		if stack := err.GetStack(); stack != "" {
			b.WriteString(Dim(stack))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// formatAggregate renders the run's captured failures as a numbered list.
func formatAggregate(agg *alerr.Aggregate) string {
	failures := agg.Failures()

	var b strings.Builder
	b.WriteString(Error("error"))
	b.WriteString(fmt.Sprintf(": run finished with %d failure(s)\n", len(failures)))

	for i, f := range failures {
		b.WriteString("\n")
		b.WriteString(Dim(fmt.Sprintf("--- failure %d of %d ---", i+1, len(failures))))
		b.WriteString("\n")
		b.WriteString(formatAlterError(f, false))
	}
	return b.String()
}

// formatGenericError formats a non-structured error.
func formatGenericError(err error) string {
	return Error("error") + ": " + err.Error() + "\n"
}
