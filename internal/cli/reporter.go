package cli

import (
	"fmt"
	"io"

	"github.com/hlop3z/applyalter/internal/engine"
)

// Reporter renders engine progress to the terminal, one line per message,
// with styling graded by report level.
type Reporter struct {
	w io.Writer
}

// NewReporter creates a reporter writing to the config's writer.
func NewReporter(cfg *Config) *Reporter {
	if cfg == nil {
		cfg = Default()
	}
	return &Reporter{w: cfg.Writer}
}

func (r *Reporter) Report(level engine.ReportLevel, msg string) {
	switch level {
	case engine.LevelMain:
		msg = Header(msg)
	case engine.LevelAlter:
		// run-to-run progress stays unstyled
	case engine.LevelStatement:
		msg = Info(msg)
	default:
		msg = Dim(msg)
	}
	fmt.Fprintln(r.w, msg)
}
