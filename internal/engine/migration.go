package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hlop3z/applyalter/internal/alerr"
	"github.com/hlop3z/applyalter/internal/alter"
	"github.com/hlop3z/applyalter/internal/instance"
)

// Base names for the two staging tables of an ID-list migration. A per-run
// sequence number is appended so that one unit/instance execution never
// shares a table with another.
const (
	tempTableMain  = "mgr_ids"
	tempTableBatch = "mig_batch"
)

// ProcessedStatement is a statement template after placeholder substitution.
// Replacements below 1 for a migration's main statement is a configuration
// error.
type ProcessedStatement struct {
	Statement    string
	Replacements int
}

// processStatement substitutes every occurrence of token with replacement.
func processStatement(statement, token, replacement string) ProcessedStatement {
	count := strings.Count(statement, token)
	return ProcessedStatement{
		Statement:    strings.ReplaceAll(statement, token, replacement),
		Replacements: count,
	}
}

// migrationResult accumulates the running totals of a batched migration.
// Processed (rows copied) and affected (rows the main statement reported)
// are tracked independently: the main statement's own predicate may exclude
// candidates, and that is not an error.
type migrationResult struct {
	Batches   int
	Processed int64
	Affected  int64
}

// runIDList executes the general ID-list migration against one instance:
// stage the candidate key set in a temporary table, then process it in
// committed batches of step rows. Each batch is its own transaction, which
// bounds transaction size and makes the migration resumable: a crash after a
// commit never re-processes a batch, because processed keys are already
// deleted from the staging table.
func (e *Engine) runIDList(ctx context.Context, h *instance.Handle, m *alter.IDList, alterID string) error {
	if err := m.Validate(); err != nil {
		return err.WithAlter(alterID).WithInstance(h.ID())
	}
	rc := e.rc

	// Isolate this migration's transactions from unrelated preceding work.
	if err := h.Commit(ctx); err != nil {
		return e.migErr(err, h, alterID, "commit before migration failed")
	}

	e.migSeq++
	tableMain, err := e.createStagingTable(ctx, h, fmt.Sprintf("%s_%d", tempTableMain, e.migSeq), m, alterID)
	if err != nil {
		return err
	}
	tableBatch, err := e.createStagingTable(ctx, h, fmt.Sprintf("%s_%d", tempTableBatch, e.migSeq), m, alterID)
	if err != nil {
		return err
	}
	// Always commit the temporary tables.
	if err := h.Commit(ctx); err != nil {
		return e.migErr(err, h, alterID, "commit of staging tables failed")
	}

	// Materialize the main statement now, before any data movement, so a
	// malformed template is caught while there is nothing to clean up.
	main := processStatement(m.Statement, m.EffectivePlaceholder(),
		fmt.Sprintf("(select * from %s)", tableBatch))
	if main.Replacements < 1 {
		return alerr.Newf(alerr.ErrMissingPlaceholder, "no %s in the migration statement",
			m.EffectivePlaceholder()).WithAlter(alterID).WithInstance(h.ID()).WithSQL(m.Statement)
	}

	// Stage the full candidate key set.
	fillSQL := fmt.Sprintf("insert into %s %s", tableMain, strings.TrimSpace(m.IDQuery))
	rc.Report(LevelStep, "staging source keys: %s", fillSQL)
	total, err := h.Exec(ctx, fillSQL)
	if err != nil {
		return e.migErr(err, h, alterID, "failed to stage the candidate key set").WithSQL(fillSQL)
	}
	rc.Report(LevelStatement, "total %d rows to be migrated", total)

	copySQL := fmt.Sprintf("insert into %s select * from %s %s",
		tableBatch, tableMain, h.Dialect().LimitClause(m.Step))
	deleteSQL := fmt.Sprintf("delete from %s where (%s) in (select %s from %s)",
		tableMain, m.IDColumn, m.IDColumn, tableBatch)
	cleanSQL := fmt.Sprintf("delete from %s", tableBatch)

	rc.Report(LevelStep, "migration query 1: %s", copySQL)
	rc.Report(LevelStep, "migration query 2: %s", main.Statement)
	rc.Report(LevelStep, "migration query 3: %s", deleteSQL)

	// Best-effort batch estimate, for progress reporting only.
	estimate := (total + m.Step - 1) / m.Step

	var res migrationResult
	for {
		copied, err := h.Exec(ctx, copySQL)
		if err != nil {
			return e.migErr(err, h, alterID, "batch copy failed").WithSQL(copySQL)
		}
		if copied < 1 {
			break
		}
		res.Batches++

		affected, err := h.Exec(ctx, main.Statement)
		if err != nil {
			return e.migErr(err, h, alterID, "main migration statement failed").WithSQL(main.Statement)
		}
		res.Affected += affected
		res.Processed += copied

		rc.Report(LevelDetail, "  batch %d/%d: %d of %d affected",
			res.Batches, estimate, affected, copied)

		if _, err := h.Exec(ctx, deleteSQL); err != nil {
			return e.migErr(err, h, alterID, "batch delete failed").WithSQL(deleteSQL)
		}
		if _, err := h.Exec(ctx, cleanSQL); err != nil {
			return e.migErr(err, h, alterID, "batch cleanup failed").WithSQL(cleanSQL)
		}

		// The most important thing: commit. Every batch is its own
		// transaction.
		if err := h.Commit(ctx); err != nil {
			return e.migErr(err, h, alterID, "batch commit failed")
		}
	}

	// Staging tables must not outlive this execution.
	for _, tbl := range []string{tableMain, tableBatch} {
		if _, err := h.Exec(ctx, "drop table "+tbl); err != nil {
			return e.migErr(err, h, alterID, "failed to drop staging table").With("table", tbl)
		}
	}
	if err := h.Commit(ctx); err != nil {
		return e.migErr(err, h, alterID, "final migration commit failed")
	}

	rc.Report(LevelStep, "migration finished, total %d rows affected in %d batches (%d rows processed)",
		res.Affected, res.Batches, res.Processed)
	return nil
}

// createStagingTable creates one empty session-scoped table shaped like the
// source query's result set, with a secondary index on the key column(s).
// The index matters: both staging tables are repeatedly filtered by that key.
func (e *Engine) createStagingTable(ctx context.Context, h *instance.Handle, base string, m *alter.IDList, alterID string) (string, error) {
	d := h.Dialect()
	name := d.TemporaryTableName(base)
	e.rc.Report(LevelStep, "creating temporary table %s", name)

	createSQL := d.CreateTemporaryTableAsSQL(name, m.IDQuery)
	e.rc.Report(LevelDetail, "  %s", createSQL)
	if _, err := h.Exec(ctx, createSQL); err != nil {
		return "", e.migErr(err, h, alterID, "failed to create temporary table").WithSQL(createSQL)
	}

	indexSQL := fmt.Sprintf("create index %s_idx on %s (%s)", name, name, m.IDColumn)
	e.rc.Report(LevelDetail, "  %s", indexSQL)
	if _, err := h.Exec(ctx, indexSQL); err != nil {
		return "", e.migErr(err, h, alterID, "failed to index temporary table").WithSQL(indexSQL)
	}
	return name, nil
}

// runRange executes the range-split migration: the main statement runs once
// per step-sized chunk of [From, To], committing per chunk.
func (e *Engine) runRange(ctx context.Context, h *instance.Handle, m *alter.Range, alterID string) error {
	if err := m.Validate(); err != nil {
		return err.WithAlter(alterID).WithInstance(h.ID())
	}
	rc := e.rc

	if err := h.Commit(ctx); err != nil {
		return e.migErr(err, h, alterID, "commit before migration failed")
	}

	fromTok, toTok := m.Placeholders()
	var res migrationResult
	for lo := m.From; ; {
		// Clamp the last chunk; the addition can also wrap past MaxInt64
		// when To sits near it, so a wrapped bound is clamped the same way.
		hi := lo + m.Step - 1
		if hi < lo || hi > m.To {
			hi = m.To
		}
		stmt := processStatement(m.Statement, fromTok, strconv.FormatInt(lo, 10)).Statement
		stmt = processStatement(stmt, toTok, strconv.FormatInt(hi, 10)).Statement

		affected, err := h.Exec(ctx, stmt)
		if err != nil {
			return e.migErr(err, h, alterID, "range migration statement failed").WithSQL(stmt)
		}
		res.Batches++
		res.Affected += affected
		rc.Report(LevelDetail, "  range [%d..%d]: %d affected", lo, hi, affected)

		if err := h.Commit(ctx); err != nil {
			return e.migErr(err, h, alterID, "range commit failed")
		}

		if hi == m.To {
			break
		}
		lo = hi + 1
	}

	rc.Report(LevelStep, "migration finished, total %d rows affected in %d ranges",
		res.Affected, res.Batches)
	return nil
}

// migErr wraps a migration step failure with its run context.
func (e *Engine) migErr(err error, h *instance.Handle, alterID, msg string) *alerr.Error {
	var ae *alerr.Error
	if x, ok := err.(*alerr.Error); ok {
		ae = x
	} else {
		ae = alerr.Wrap(alerr.ErrMigrationFailed, err, msg)
	}
	return ae.WithAlter(alterID).WithInstance(h.ID())
}
