// Package instance models the configured database instances an alter run
// targets, and the run-scoped connection handle each one owns.
package instance

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hlop3z/applyalter/internal/alerr"
	"github.com/hlop3z/applyalter/internal/dialect"
)

// Config describes one database instance.
type Config struct {
	// ID identifies the instance in reports and failure context.
	ID string `yaml:"id"`
	// Type tags the instance for alter applicability filtering.
	Type string `yaml:"type"`
	// URL is the connection string. The dialect is auto-detected from it
	// unless Dialect is set.
	URL string `yaml:"url"`
	// Dialect overrides auto-detection (postgres, sqlite).
	Dialect string `yaml:"dialect"`
}

// Validate checks the config is complete.
func (c Config) Validate() error {
	if c.ID == "" {
		return alerr.New(alerr.ErrInstanceConfig, "instance requires an id")
	}
	if c.URL == "" {
		return alerr.Newf(alerr.ErrInstanceConfig, "instance %s requires a url", c.ID)
	}
	name := c.Dialect
	if name == "" {
		name = DetectDialect(c.URL)
	}
	if dialect.Get(name) == nil {
		return alerr.Newf(alerr.ErrInstanceConfig, "instance %s has unsupported dialect %q", c.ID, name).
			With("supported", strings.Join(dialect.Names(), ", "))
	}
	return nil
}

// DetectDialect guesses the dialect from a connection URL.
func DetectDialect(url string) string {
	url = strings.ToLower(url)

	switch {
	case strings.HasPrefix(url, "postgres://"),
		strings.HasPrefix(url, "postgresql://"):
		return "postgres"

	case strings.HasPrefix(url, "sqlite://"),
		strings.HasPrefix(url, "sqlite3://"),
		strings.HasPrefix(url, "file:"):
		return "sqlite"

	case strings.HasSuffix(url, ".db"),
		strings.HasSuffix(url, ".sqlite"),
		strings.HasSuffix(url, ".sqlite3"):
		return "sqlite"
	}

	return "postgres"
}

// handleState tracks the connection lifecycle of a Handle.
type handleState int

const (
	stateUnopened handleState = iota
	stateOpenClean
	stateOpenDirty
)

// Handle owns one lazily-created connection to one database instance for the
// lifetime of a run. The handle pins a single *sql.Conn and drives explicit
// BEGIN/COMMIT on it: work stays pending until Commit, and Close rolls back
// whatever was never committed.
type Handle struct {
	cfg     Config
	dialect dialect.Dialect

	db    *sql.DB
	conn  *sql.Conn
	state handleState
	inTx  bool

	openDB func(driver, dsn string) (*sql.DB, error) // test seam
}

// NewHandle creates an unopened handle for the instance.
// The connection is established on first use.
func NewHandle(cfg Config) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := cfg.Dialect
	if name == "" {
		name = DetectDialect(cfg.URL)
	}
	return &Handle{
		cfg:     cfg,
		dialect: dialect.Get(name),
		openDB:  sql.Open,
	}, nil
}

// NewHandleDB creates a handle over an already-open database, bypassing URL
// opening. Used by tests and embedders that manage the pool themselves.
func NewHandleDB(cfg Config, db *sql.DB, d dialect.Dialect) *Handle {
	return &Handle{cfg: cfg, dialect: d, db: db}
}

// ID returns the instance identifier.
func (h *Handle) ID() string { return h.cfg.ID }

// Type returns the instance type tag.
func (h *Handle) Type() string { return h.cfg.Type }

// URL returns the configured connection URL.
func (h *Handle) URL() string { return h.cfg.URL }

// Dialect returns the instance's SQL dialect.
func (h *Handle) Dialect() dialect.Dialect { return h.dialect }

// Dirty reports whether uncommitted mutating work is pending.
func (h *Handle) Dirty() bool { return h.state == stateOpenDirty }

// MarkDirty records that mutating work is pending on the connection.
// The flag stays set until Commit or the end of the run.
func (h *Handle) MarkDirty() {
	if h.state == stateOpenClean {
		h.state = stateOpenDirty
	}
}

// Opened reports whether the connection has been established.
func (h *Handle) Opened() bool { return h.state != stateUnopened }

// Conn returns the instance's single run-scoped connection, establishing it
// on first call. Acquisition is idempotent.
func (h *Handle) Conn(ctx context.Context) (*sql.Conn, error) {
	if h.conn != nil {
		return h.conn, nil
	}

	if h.db == nil {
		driver, dsn := h.driverDSN()
		db, err := h.openDB(driver, dsn)
		if err != nil {
			return nil, alerr.Wrapf(alerr.ErrSQLConnection, err, "cannot open %s", h.cfg.ID).
				WithInstance(h.cfg.ID)
		}
		// One connection for the whole run; the handle is the only user.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		h.db = db
	}

	conn, err := h.db.Conn(ctx)
	if err != nil {
		return nil, alerr.Wrapf(alerr.ErrSQLConnection, err, "cannot connect to %s", h.cfg.ID).
			WithInstance(h.cfg.ID)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, alerr.Wrapf(alerr.ErrSQLConnection, err, "cannot reach %s", h.cfg.ID).
			WithInstance(h.cfg.ID)
	}
	h.conn = conn
	h.state = stateOpenClean
	return h.conn, nil
}

func (h *Handle) driverDSN() (driver, dsn string) {
	switch h.dialect.Name() {
	case "sqlite":
		dsn = h.cfg.URL
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		dsn = strings.TrimPrefix(dsn, "sqlite3://")
		return "sqlite", dsn
	default:
		return "postgres", h.cfg.URL
	}
}

// SetSchema switches the connection to the alter's target schema, when the
// dialect has schemas.
func (h *Handle) SetSchema(ctx context.Context, schema string) error {
	stmt, ok := h.dialect.SetSchemaSQL(schema)
	if !ok {
		return nil
	}
	_, err := h.Exec(ctx, stmt)
	if err != nil {
		return alerr.Wrapf(alerr.ErrSQLExecution, err, "cannot set schema %s", schema).
			WithInstance(h.cfg.ID)
	}
	return nil
}

// ensureTx begins a transaction if one is not already open. All statements on
// the handle run inside an explicit transaction so that nothing persists
// before a deliberate Commit.
func (h *Handle) ensureTx(ctx context.Context) error {
	if h.inTx {
		return nil
	}
	conn, err := h.Conn(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "BEGIN"); err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "cannot begin transaction").
			WithInstance(h.cfg.ID)
	}
	h.inTx = true
	return nil
}

// Exec runs a statement on the run connection and returns the affected row
// count (0 when the driver cannot report one).
func (h *Handle) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if err := h.ensureTx(ctx); err != nil {
		return 0, err
	}
	res, err := h.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Query runs a query on the run connection.
func (h *Handle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := h.ensureTx(ctx); err != nil {
		return nil, err
	}
	return h.conn.QueryContext(ctx, query, args...)
}

// QueryRow runs a single-row query on the run connection.
func (h *Handle) QueryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	if err := h.ensureTx(ctx); err != nil {
		return nil, err
	}
	return h.conn.QueryRowContext(ctx, query, args...), nil
}

// Savepoint marks a rollback point inside the open transaction, beginning
// one when necessary. PostgreSQL aborts the whole transaction on any
// statement error (SQLSTATE 25P02), so a statement whose failure must be
// tolerated has to be fenced by a savepoint.
func (h *Handle) Savepoint(ctx context.Context, name string) error {
	if err := h.ensureTx(ctx); err != nil {
		return err
	}
	if _, err := h.conn.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return alerr.Wrapf(alerr.ErrSQLTransaction, err, "cannot create savepoint %s", name).
			WithInstance(h.cfg.ID)
	}
	return nil
}

// ReleaseSavepoint discards a savepoint, keeping the work done since it.
func (h *Handle) ReleaseSavepoint(ctx context.Context, name string) error {
	if !h.inTx {
		return nil
	}
	if _, err := h.conn.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return alerr.Wrapf(alerr.ErrSQLTransaction, err, "cannot release savepoint %s", name).
			WithInstance(h.cfg.ID)
	}
	return nil
}

// RollbackToSavepoint undoes everything since the savepoint, clears the
// aborted-transaction state a failed statement left behind, and discards the
// savepoint. The enclosing transaction stays open and usable.
func (h *Handle) RollbackToSavepoint(ctx context.Context, name string) error {
	if !h.inTx {
		return nil
	}
	if _, err := h.conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return alerr.Wrapf(alerr.ErrSQLTransaction, err, "cannot roll back to savepoint %s", name).
			WithInstance(h.cfg.ID)
	}
	return h.ReleaseSavepoint(ctx, name)
}

// Rollback discards all pending work and returns the connection to a clean
// open state. It is a no-op when no transaction is open.
func (h *Handle) Rollback(ctx context.Context) error {
	if !h.inTx {
		return nil
	}
	if _, err := h.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "rollback failed").
			WithInstance(h.cfg.ID)
	}
	h.inTx = false
	if h.state == stateOpenDirty {
		h.state = stateOpenClean
	}
	return nil
}

// Commit makes all pending work durable and clears the dirty flag.
// It is a no-op when no transaction is open.
func (h *Handle) Commit(ctx context.Context) error {
	if !h.inTx {
		return nil
	}
	if _, err := h.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "commit failed").
			WithInstance(h.cfg.ID)
	}
	h.inTx = false
	if h.state == stateOpenDirty {
		h.state = stateOpenClean
	}
	return nil
}

// Close rolls back pending work and releases the connection. Safe to call on
// an unopened handle and safe to call more than once.
func (h *Handle) Close() error {
	var firstErr error
	if h.conn != nil {
		// Uncommitted work is discarded.
		if err := h.Rollback(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := h.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.conn = nil
	}
	if h.db != nil && h.openDB != nil {
		// Only close pools this handle opened itself.
		if err := h.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.db = nil
	}
	h.state = stateUnopened
	return firstErr
}
