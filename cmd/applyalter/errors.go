package main

import (
	"fmt"
	"os"

	"github.com/hlop3z/applyalter/internal/alerr"
	"github.com/hlop3z/applyalter/internal/cli"
)

// Exit codes. Configuration problems get their own code so wrappers can
// distinguish "fix the alter files" from "a database run failed".
const (
	exitRunFailed = 1
	exitBadConfig = 2
)

// fail prints the error in diagnostic form and exits.
// With --trace the full chain including stack traces is shown.
func fail(err error) {
	if trace {
		fmt.Fprint(os.Stderr, cli.FormatErrorTrace(err))
	} else {
		fmt.Fprint(os.Stderr, cli.FormatError(err))
	}

	if alerr.IsConfiguration(err) {
		os.Exit(exitBadConfig)
	}
	os.Exit(exitRunFailed)
}
