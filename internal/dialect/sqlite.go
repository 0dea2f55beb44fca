package dialect

import (
	"fmt"
	"strings"

	"github.com/hlop3z/applyalter/internal/alerr"
	"github.com/hlop3z/applyalter/internal/alter"
)

// sqlite implements the Dialect interface for SQLite.
type sqlite struct{}

// SQLite returns the SQLite dialect implementation.
func SQLite() Dialect {
	return &sqlite{}
}

func (d *sqlite) Name() string {
	return "sqlite"
}

func (d *sqlite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *sqlite) Placeholder(index int) string {
	return "?"
}

// NormalizeIdent is the identity: SQLite catalog lookups on sqlite_master
// match names case-insensitively via collation, not folding.
func (d *sqlite) NormalizeIdent(name string) string {
	return name
}

// SetSchemaSQL reports no schema support; a SQLite database file is itself
// the namespace.
func (d *sqlite) SetSchemaSQL(schema string) (string, bool) {
	return "", false
}

func (d *sqlite) TemporaryTableName(base string) string {
	return strings.ToLower(base)
}

func (d *sqlite) CreateTemporaryTableAsSQL(table, query string) string {
	// CTAS with an always-false predicate copies structure only; SQLite has
	// no WITH NO DATA.
	return fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT * FROM (%s) WHERE 0",
		table, strings.TrimSpace(query))
}

func (d *sqlite) LimitClause(n int64) string {
	return fmt.Sprintf("limit %d", n)
}

func (d *sqlite) CheckQuery(kind alter.CheckKind, schema, table, name string) (string, []any, error) {
	// schema is ignored: the attached database file is the namespace.
	switch kind {
	case alter.CheckTable:
		return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE",
			[]any{name}, nil
	case alter.CheckView:
		return "SELECT 1 FROM sqlite_master WHERE type = 'view' AND name = ? COLLATE NOCASE",
			[]any{name}, nil
	case alter.CheckColumn:
		return "SELECT 1 FROM pragma_table_info(?) WHERE name = ? COLLATE NOCASE",
			[]any{table, name}, nil
	case alter.CheckIndex:
		return "SELECT 1 FROM sqlite_master WHERE type = 'index' AND tbl_name = ? COLLATE NOCASE AND name = ? COLLATE NOCASE",
			[]any{table, name}, nil
	case alter.CheckTrigger:
		return "SELECT 1 FROM sqlite_master WHERE type = 'trigger' AND tbl_name = ? COLLATE NOCASE AND name = ? COLLATE NOCASE",
			[]any{table, name}, nil
	default:
		return "", nil, alerr.Newf(alerr.ErrAlterInvalid, "unsupported check kind %q for sqlite", kind)
	}
}
