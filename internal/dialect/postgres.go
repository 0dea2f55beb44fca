package dialect

import (
	"fmt"
	"strings"

	"github.com/hlop3z/applyalter/internal/alerr"
	"github.com/hlop3z/applyalter/internal/alter"
)

// postgres implements the Dialect interface for PostgreSQL.
type postgres struct{}

// Postgres returns the PostgreSQL dialect implementation.
func Postgres() Dialect {
	return &postgres{}
}

func (d *postgres) Name() string {
	return "postgres"
}

func (d *postgres) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *postgres) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// NormalizeIdent folds to lower case, matching PostgreSQL's folding of
// unquoted identifiers on create.
func (d *postgres) NormalizeIdent(name string) string {
	return strings.ToLower(name)
}

func (d *postgres) SetSchemaSQL(schema string) (string, bool) {
	return "SET search_path TO " + d.QuoteIdent(schema), true
}

func (d *postgres) TemporaryTableName(base string) string {
	// Temporary tables live in the session's pg_temp schema; the bare name
	// resolves there first.
	return strings.ToLower(base)
}

func (d *postgres) CreateTemporaryTableAsSQL(table, query string) string {
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s AS SELECT * FROM (%s) AS src WITH NO DATA",
		table, strings.TrimSpace(query))
}

func (d *postgres) LimitClause(n int64) string {
	return fmt.Sprintf("limit %d", n)
}

func (d *postgres) CheckQuery(kind alter.CheckKind, schema, table, name string) (string, []any, error) {
	schema = d.NormalizeIdent(schema)
	table = d.NormalizeIdent(table)
	name = d.NormalizeIdent(name)

	switch kind {
	case alter.CheckTable:
		return "SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2",
			[]any{schema, name}, nil
	case alter.CheckView:
		return "SELECT 1 FROM information_schema.views WHERE table_schema = $1 AND table_name = $2",
			[]any{schema, name}, nil
	case alter.CheckColumn:
		return "SELECT 1 FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 AND column_name = $3",
			[]any{schema, table, name}, nil
	case alter.CheckIndex:
		return "SELECT 1 FROM pg_indexes WHERE schemaname = $1 AND tablename = $2 AND indexname = $3",
			[]any{schema, table, name}, nil
	case alter.CheckTrigger:
		return "SELECT 1 FROM information_schema.triggers WHERE trigger_schema = $1 AND event_object_table = $2 AND trigger_name = $3",
			[]any{schema, table, name}, nil
	default:
		return "", nil, alerr.Newf(alerr.ErrAlterInvalid, "unsupported check kind %q for postgres", kind)
	}
}
