package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/hlop3z/applyalter/internal/alerr"
	"github.com/hlop3z/applyalter/internal/alter"
	"github.com/hlop3z/applyalter/internal/instance"
)

// alreadyApplied evaluates the alter's idempotency checks against one
// instance: the custom check query first, then each structural check. The
// first positive result short-circuits. A probe that itself errors is a hard
// error, not "not applied".
func alreadyApplied(ctx context.Context, h *instance.Handle, a *alter.Alter, rc *RunContext) (bool, error) {
	ok, err := checkCustom(ctx, h, a.CheckOK, rc)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	for _, c := range a.Checks {
		ok, err := checkStructural(ctx, h, c, a.Schema, rc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// checkCustom runs the alter's custom already-applied query. The query must
// return a single row with a single string column; a case-insensitive match
// against the CheckOK sentinel means applied. No row, or any other value,
// means not applied.
func checkCustom(ctx context.Context, h *instance.Handle, query string, rc *RunContext) (bool, error) {
	if query == "" {
		return false, nil
	}
	rc.Report(LevelStatement, "check: %s", query)

	row, err := h.QueryRow(ctx, query)
	if err != nil {
		return false, alerr.Wrapf(alerr.ErrCheckFailed, err, "cannot check %s", query).
			WithInstance(h.ID())
	}
	var result string
	if err := row.Scan(&result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, alerr.Wrapf(alerr.ErrCheckFailed, err, "cannot check %s", query).
			WithInstance(h.ID())
	}
	return strings.EqualFold(result, alter.CheckOK), nil
}

// checkStructural probes the catalog for the checked object's existence.
// Any result row means the alter was applied already.
func checkStructural(ctx context.Context, h *instance.Handle, c alter.Check, schema string, rc *RunContext) (bool, error) {
	query, args, err := h.Dialect().CheckQuery(c.Kind, schema, c.Table, c.Name)
	if err != nil {
		return false, alerr.Wrapf(alerr.ErrCheckFailed, err, "cannot check %s", c).
			WithInstance(h.ID())
	}
	rc.Report(LevelStatement, "check: %s %v", query, args)

	rows, err := h.Query(ctx, query, args...)
	if err != nil {
		return false, alerr.Wrapf(alerr.ErrCheckFailed, err, "cannot check %s", c).
			WithInstance(h.ID())
	}
	defer rows.Close()

	exists := rows.Next()
	if err := rows.Err(); err != nil {
		return false, alerr.Wrapf(alerr.ErrCheckFailed, err, "cannot check %s", c).
			WithInstance(h.ID())
	}
	return exists, nil
}
