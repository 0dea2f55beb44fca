// Package alter defines the alter-unit data model: one versioned schema/data
// change targeting one or more database instances, loaded from YAML documents
// (optionally packaged in zip archives).
package alter

import (
	"fmt"
	"strings"

	"github.com/hlop3z/applyalter/internal/alerr"
)

// CheckOK is the sentinel value a custom check query must return (single row,
// single column, case-insensitive match) to mark an alter as already applied.
const CheckOK = "OK"

// Alter is one versioned change unit. It is immutable once loaded.
type Alter struct {
	// ID identifies the alter; derived from the source file name.
	ID string `yaml:"-"`

	// Schema is the target schema set on the connection before applying.
	Schema string `yaml:"schema"`

	// Instances restricts the alter to instances of the listed types.
	// Empty means all instances.
	Instances []string `yaml:"instances"`

	// CheckOK is an optional custom already-applied query. It must return a
	// single row with a single string column; CheckOK sentinel means applied.
	CheckOK string `yaml:"check_ok"`

	// Checks are structural existence probes evaluated before applying.
	Checks []Check `yaml:"checks"`

	// Statements execute in declaration order.
	Statements []Statement `yaml:"-"`

	// Description is free text for operators.
	Description string `yaml:"description"`
}

// AppliesTo reports whether this alter targets instances of the given type.
func (a *Alter) AppliesTo(instanceType string) bool {
	if len(a.Instances) == 0 {
		return true
	}
	for _, t := range a.Instances {
		if t == instanceType {
			return true
		}
	}
	return false
}

// Validate checks every statement's parameters. Configuration errors are
// raised here, before any database interaction.
func (a *Alter) Validate() error {
	if a.Schema == "" {
		return alerr.New(alerr.ErrAlterInvalid, "missing schema").WithAlter(a.ID)
	}
	if len(a.Statements) == 0 {
		return alerr.New(alerr.ErrAlterInvalid, "no statements").WithAlter(a.ID)
	}
	for _, c := range a.Checks {
		if err := c.Validate(); err != nil {
			return err.WithAlter(a.ID)
		}
	}
	for i, s := range a.Statements {
		if err := s.Validate(); err != nil {
			return err.WithAlter(a.ID).With("statement_index", i)
		}
	}
	return nil
}

// CheckKind identifies the catalog object a structural check probes for.
type CheckKind string

const (
	CheckTable   CheckKind = "table"
	CheckColumn  CheckKind = "column"
	CheckIndex   CheckKind = "index"
	CheckView    CheckKind = "view"
	CheckTrigger CheckKind = "trigger"
)

// Check is a structural existence probe: the named object existing in the
// target schema means the alter was applied already.
type Check struct {
	Kind  CheckKind `yaml:"kind"`
	Table string    `yaml:"table"`
	Name  string    `yaml:"name"`
}

// Validate verifies the check is complete for its kind.
func (c Check) Validate() *alerr.Error {
	switch c.Kind {
	case CheckTable, CheckView:
		// table/view checks carry the object name in Name; Table stays empty
	case CheckColumn, CheckIndex, CheckTrigger:
		if c.Table == "" {
			return alerr.Newf(alerr.ErrAlterInvalid, "%s check requires a table", c.Kind)
		}
	default:
		return alerr.Newf(alerr.ErrAlterInvalid, "unknown check kind %q", c.Kind)
	}
	if c.Name == "" {
		return alerr.Newf(alerr.ErrAlterInvalid, "%s check requires a name", c.Kind)
	}
	return nil
}

func (c Check) String() string {
	if c.Table != "" {
		return fmt.Sprintf("%s %s on %s", c.Kind, c.Name, c.Table)
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Name)
}

// Kind discriminates Statement variants.
type Kind string

const (
	KindComment Kind = "comment"
	KindSQL     Kind = "sql"
	KindRange   Kind = "range"
	KindIDList  Kind = "id_list"
)

// Statement is one executable step of an alter. It is a closed tagged variant:
// the orchestrator switches on the concrete type rather than calling through.
type Statement interface {
	Kind() Kind
	// Validate raises a configuration error for missing/invalid parameters.
	Validate() *alerr.Error
	fmt.Stringer
}

// Comment performs no database operation; it is only reported.
type Comment struct {
	Text string `yaml:"comment"`
}

func (c *Comment) Kind() Kind             { return KindComment }
func (c *Comment) Validate() *alerr.Error { return nil }
func (c *Comment) String() string         { return "-- " + c.Text }

// SQL is a single raw statement. CanFail statements log their execution error
// and continue instead of aborting the unit.
type SQL struct {
	Statement string `yaml:"statement"`
	CanFail   bool   `yaml:"can_fail"`
}

func (s *SQL) Kind() Kind { return KindSQL }

func (s *SQL) Validate() *alerr.Error {
	if strings.TrimSpace(s.Statement) == "" {
		return alerr.New(alerr.ErrMissingStatement, "sql statement is empty")
	}
	return nil
}

func (s *SQL) String() string {
	if s.CanFail {
		return s.Statement + " (can fail)"
	}
	return s.Statement
}

// Default placeholder tokens substituted into migration statements.
const (
	DefaultIDListPlaceholder = "ID_LIST"
	DefaultFromPlaceholder   = "FROM_ID"
	DefaultToPlaceholder     = "TO_ID"
)

// IDList is the general batched migration: a source query stages candidate
// keys (possibly composite, possibly non-numeric) into a temporary table and
// the main statement processes them in committed batches of Step rows.
type IDList struct {
	// IDQuery is a SELECT producing the candidate key set.
	IDQuery string `yaml:"idquery"`
	// IDColumn names the key column(s); composite keys are comma-separated.
	IDColumn string `yaml:"idcolumn"`
	// Step is the batch size; every batch is its own transaction.
	Step int64 `yaml:"step"`
	// Statement is the main DML; it must contain Placeholder at least once.
	Statement string `yaml:"statement"`
	// Placeholder overrides the token replaced by the batch subquery.
	Placeholder string `yaml:"placeholder"`
}

func (m *IDList) Kind() Kind { return KindIDList }

// EffectivePlaceholder returns the placeholder token in use.
func (m *IDList) EffectivePlaceholder() string {
	if m.Placeholder != "" {
		return m.Placeholder
	}
	return DefaultIDListPlaceholder
}

func (m *IDList) Validate() *alerr.Error {
	if strings.TrimSpace(m.Statement) == "" {
		return alerr.New(alerr.ErrMissingStatement, "id_list migration requires a statement")
	}
	if strings.TrimSpace(m.IDQuery) == "" {
		return alerr.New(alerr.ErrMissingIDQuery, "id_list migration requires an idquery")
	}
	if strings.TrimSpace(m.IDColumn) == "" {
		return alerr.New(alerr.ErrMissingIDColumn, "id_list migration requires an idcolumn")
	}
	if m.Step < 1 {
		return alerr.Newf(alerr.ErrInvalidStep, "id_list migration step must be >= 1, got %d", m.Step)
	}
	if !strings.Contains(m.Statement, m.EffectivePlaceholder()) {
		return alerr.Newf(alerr.ErrMissingPlaceholder,
			"no %s placeholder in migration statement", m.EffectivePlaceholder())
	}
	return nil
}

func (m *IDList) String() string {
	return fmt.Sprintf("id_list migration (step %d): %s", m.Step, m.Statement)
}

// Range is the range-split migration: the main statement runs once per
// [lo, hi] chunk of width Step between From and To, committing per chunk.
// It only works for a dense numeric key; IDList covers everything else.
type Range struct {
	From      int64  `yaml:"from"`
	To        int64  `yaml:"to"`
	Step      int64  `yaml:"step"`
	Statement string `yaml:"statement"`
	// FromPlaceholder/ToPlaceholder override the bound tokens.
	FromPlaceholder string `yaml:"from_placeholder"`
	ToPlaceholder   string `yaml:"to_placeholder"`
}

func (m *Range) Kind() Kind { return KindRange }

// Placeholders returns the bound tokens in use.
func (m *Range) Placeholders() (from, to string) {
	from, to = m.FromPlaceholder, m.ToPlaceholder
	if from == "" {
		from = DefaultFromPlaceholder
	}
	if to == "" {
		to = DefaultToPlaceholder
	}
	return from, to
}

func (m *Range) Validate() *alerr.Error {
	if strings.TrimSpace(m.Statement) == "" {
		return alerr.New(alerr.ErrMissingStatement, "range migration requires a statement")
	}
	if m.Step < 1 {
		return alerr.Newf(alerr.ErrInvalidStep, "range migration step must be >= 1, got %d", m.Step)
	}
	if m.From > m.To {
		return alerr.Newf(alerr.ErrInvalidRange, "range migration from %d > to %d", m.From, m.To)
	}
	from, to := m.Placeholders()
	if !strings.Contains(m.Statement, from) {
		return alerr.Newf(alerr.ErrMissingPlaceholder, "no %s placeholder in migration statement", from)
	}
	if !strings.Contains(m.Statement, to) {
		return alerr.Newf(alerr.ErrMissingPlaceholder, "no %s placeholder in migration statement", to)
	}
	return nil
}

func (m *Range) String() string {
	return fmt.Sprintf("range migration [%d..%d] (step %d): %s", m.From, m.To, m.Step, m.Statement)
}
