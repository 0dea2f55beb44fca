package engine

import (
	"fmt"
	"io"
	"log/slog"
)

// ReportLevel grades report messages from run-level down to per-batch detail.
type ReportLevel int

const (
	// LevelMain covers run start/end and summaries.
	LevelMain ReportLevel = iota
	// LevelAlter covers per-alter, per-instance progress and timing.
	LevelAlter
	// LevelStatement covers each prepared statement and check.
	LevelStatement
	// LevelStep covers migration phases (table creation, staging, queries).
	LevelStep
	// LevelDetail covers per-batch progress.
	LevelDetail
)

func (l ReportLevel) String() string {
	switch l {
	case LevelMain:
		return "main"
	case LevelAlter:
		return "alter"
	case LevelStatement:
		return "statement"
	case LevelStep:
		return "step"
	case LevelDetail:
		return "detail"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Reporter receives progress messages from a run. Rendering is up to the
// implementation.
type Reporter interface {
	Report(level ReportLevel, msg string)
}

// RunContext carries the report sink and its level filter through a run.
// It holds no per-unit state.
type RunContext struct {
	reporter Reporter
	max      ReportLevel
}

// NewRunContext creates a run context reporting up to the given level.
func NewRunContext(r Reporter, max ReportLevel) *RunContext {
	if r == nil {
		r = NopReporter{}
	}
	return &RunContext{reporter: r, max: max}
}

// Report formats and forwards a message when its level passes the filter.
func (c *RunContext) Report(level ReportLevel, format string, args ...any) {
	if level > c.max {
		return
	}
	c.reporter.Report(level, fmt.Sprintf(format, args...))
}

// NopReporter discards all messages.
type NopReporter struct{}

func (NopReporter) Report(ReportLevel, string) {}

// WriterReporter writes one line per message to w.
type WriterReporter struct {
	W io.Writer
}

func (r WriterReporter) Report(_ ReportLevel, msg string) {
	fmt.Fprintln(r.W, msg)
}

// SlogReporter forwards messages to a structured logger.
type SlogReporter struct {
	Logger *slog.Logger
}

func (r SlogReporter) Report(level ReportLevel, msg string) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if level >= LevelStep {
		logger.Debug(msg, "level", level.String())
		return
	}
	logger.Info(msg, "level", level.String())
}
