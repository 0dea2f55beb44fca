// Package dialect provides database-specific SQL generation.
// Each dialect implements identifier quoting, catalog existence probes,
// and the temporary-table capability used by batched migrations.
package dialect

import (
	"github.com/hlop3z/applyalter/internal/alter"
)

// Dialect defines the interface for database-specific SQL generation.
// Implementations exist for PostgreSQL and SQLite.
type Dialect interface {
	// Name returns the dialect name (postgres, sqlite).
	Name() string

	// QuoteIdent quotes an identifier (table/column name) for the dialect.
	// PostgreSQL/SQLite: "name"
	QuoteIdent(name string) string

	// Placeholder returns a parameter placeholder for the given index (1-based).
	// PostgreSQL: $1, $2, $3, ...
	// SQLite: ?, ?, ?, ...
	Placeholder(index int) string

	// NormalizeIdent case-normalizes an identifier for catalog lookups.
	// Catalogs store identifiers case-sensitively; unquoted identifiers are
	// folded on create, so probe parameters must fold the same way.
	// PostgreSQL: lower case. SQLite: unchanged (catalog matching handles case).
	NormalizeIdent(name string) string

	// SetSchemaSQL returns the statement that switches the connection to the
	// given schema, or ok=false when the dialect has no schema concept.
	// PostgreSQL: SET search_path TO <schema>
	// SQLite: none
	SetSchemaSQL(schema string) (sql string, ok bool)

	// TemporaryTableName maps a base name to the session-scoped table name
	// used to create and reference a temporary table.
	TemporaryTableName(base string) string

	// CreateTemporaryTableAsSQL returns DDL creating an empty session-scoped
	// temporary table whose structure is derived from the query's result set.
	// PostgreSQL: CREATE TEMPORARY TABLE t AS SELECT * FROM (q) AS src WITH NO DATA
	// SQLite: CREATE TEMP TABLE t AS SELECT * FROM (q) WHERE 0
	CreateTemporaryTableAsSQL(table, query string) string

	// LimitClause returns the row-limiting clause appended to the batch copy
	// select. Row order within the limit is whatever the engine returns.
	LimitClause(n int64) string

	// CheckQuery returns the parameterized catalog probe for a structural
	// check, with its ordered arguments already case-normalized. Any result
	// row means the probed object exists.
	CheckQuery(kind alter.CheckKind, schema, table, name string) (sql string, args []any, err error)
}

// Get returns the dialect implementation for the given name.
// Valid names: "postgres", "postgresql", "sqlite", "sqlite3".
// Returns nil if the dialect is not supported.
func Get(name string) Dialect {
	switch name {
	case "postgres", "postgresql":
		return Postgres()
	case "sqlite", "sqlite3":
		return SQLite()
	default:
		return nil
	}
}

// Names returns the list of supported dialect names.
func Names() []string {
	return []string{"postgres", "sqlite"}
}
