// Package engine applies ordered alter units to configured database
// instances: idempotency checks, statement execution, batched data
// migrations, failure aggregation, and the run's commit discipline.
package engine

import (
	"context"
	"time"

	"github.com/hlop3z/applyalter/internal/alerr"
	"github.com/hlop3z/applyalter/internal/alter"
	"github.com/hlop3z/applyalter/internal/instance"
)

// RunMode selects between previewing and committing a run.
type RunMode string

const (
	// ModePreview displays plain SQL statements without executing them and
	// never commits.
	ModePreview RunMode = "preview"
	// ModeCommit executes everything and commits after each clean unit.
	ModeCommit RunMode = "commit"
)

// ParseRunMode validates a run mode string.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case ModePreview, ModeCommit:
		return RunMode(s), nil
	default:
		return "", alerr.Newf(alerr.ErrInstanceConfig, "unknown run mode %q (preview, commit)", s)
	}
}

// Options configure a run.
type Options struct {
	// Mode selects preview or commit behavior. Default is commit.
	Mode RunMode

	// IgnoreFailures defers failures to the end of the run instead of
	// aborting on the first one. Once any failure has been deferred, no
	// further commits are issued for the remainder of the run.
	IgnoreFailures bool

	// ExecuteMigrationsInPreview makes preview runs execute (and commit)
	// batched migrations the way historical versions did. Off by default:
	// a preview that mutates data defeats its purpose.
	ExecuteMigrationsInPreview bool
}

// Engine is the apply orchestrator. It owns the instance handles for the
// duration of one run and processes units, instances, and batches strictly
// sequentially; the commit discipline depends on that ordering.
type Engine struct {
	handles  []*instance.Handle
	opts     Options
	rc       *RunContext
	failures *FailureSet
	migSeq   int
}

// New creates an engine over the given instance handles.
func New(handles []*instance.Handle, opts Options, rc *RunContext) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeCommit
	}
	if rc == nil {
		rc = NewRunContext(nil, LevelDetail)
	}
	return &Engine{
		handles:  handles,
		opts:     opts,
		rc:       rc,
		failures: NewFailureSet(opts.IgnoreFailures),
	}
}

// Apply applies every alter unit, in order, to every instance it targets.
// All opened connections are closed on every exit path. Under the
// ignore-failures policy the error is the composite of every captured
// failure; under the abort policy it is the first failure.
func (e *Engine) Apply(ctx context.Context, alters []*alter.Alter) (err error) {
	defer func() {
		for _, h := range e.handles {
			if cerr := h.Close(); cerr != nil && err == nil {
				err = alerr.Wrap(alerr.ErrSQLConnection, cerr, "closing connections failed")
			}
		}
	}()

	e.rc.Report(LevelMain, "applying %d alter(s) to %d instance(s) in %s mode",
		len(alters), len(e.handles), e.opts.Mode)

	for _, a := range alters {
		for _, h := range e.handles {
			if !a.AppliesTo(h.Type()) {
				continue
			}
			if aerr := e.applyOne(ctx, a, h); aerr != nil {
				if raise := e.failures.AddOrRaise(aerr); raise != nil {
					return raise
				}
				// The failed statement may have left the session unusable
				// (postgres aborts the whole transaction on any error).
				// Discard the unit's pending work so later units still
				// execute on this instance.
				if rerr := h.Rollback(ctx); rerr != nil {
					if raise := e.failures.AddOrRaise(asAlterErr(rerr, a.ID, h.ID())); raise != nil {
						return raise
					}
				}
			}
		}

		// Commit the unit on every dirty instance, but only when the whole
		// run is still clean: one ignored failure anywhere suppresses all
		// further commits for the remainder of the run.
		if e.opts.Mode == ModeCommit && e.failures.Empty() {
			if cerr := e.commitDirty(ctx, a.ID); cerr != nil {
				if raise := e.failures.AddOrRaise(cerr); raise != nil {
					return raise
				}
			}
		}
	}

	return e.failures.Err()
}

// commitDirty commits every instance connection currently marked dirty.
func (e *Engine) commitDirty(ctx context.Context, alterID string) *alerr.Error {
	for _, h := range e.handles {
		if !h.Dirty() {
			continue
		}
		e.rc.Report(LevelAlter, "committing %s on %s", alterID, h.ID())
		if err := h.Commit(ctx); err != nil {
			var ae *alerr.Error
			if x, ok := err.(*alerr.Error); ok {
				ae = x
			} else {
				ae = alerr.Wrap(alerr.ErrSQLTransaction, err, "commit failed")
			}
			return ae.WithAlter(alterID).WithInstance(h.ID())
		}
	}
	return nil
}

// applyOne applies a single alter to a single instance.
func (e *Engine) applyOne(ctx context.Context, a *alter.Alter, h *instance.Handle) *alerr.Error {
	start := time.Now()
	e.rc.Report(LevelAlter, "instance %s %s, schema %s", h.ID(), h.URL(), a.Schema)

	if _, err := h.Conn(ctx); err != nil {
		return asAlterErr(err, a.ID, h.ID())
	}
	if err := h.SetSchema(ctx, a.Schema); err != nil {
		return asAlterErr(err, a.ID, h.ID())
	}

	applied, err := alreadyApplied(ctx, h, a, e.rc)
	if err != nil {
		return asAlterErr(err, a.ID, h.ID())
	}
	if applied {
		e.rc.Report(LevelAlter, "alter %s applied already on %s, skipping", a.ID, h.ID())
		return nil
	}

	h.MarkDirty()
	for _, s := range a.Statements {
		if err := e.execStatement(ctx, a, h, s); err != nil {
			// A failed statement aborts the remainder of this unit for this
			// instance only.
			return err
		}
	}

	e.rc.Report(LevelAlter, "alter %s on %s took %s", a.ID, h.ID(), time.Since(start).Round(time.Millisecond))
	return nil
}

// execStatement dispatches one statement by its variant.
func (e *Engine) execStatement(ctx context.Context, a *alter.Alter, h *instance.Handle, s alter.Statement) *alerr.Error {
	e.rc.Report(LevelStatement, "%s", s)

	switch st := s.(type) {
	case *alter.Comment:
		return nil

	case *alter.SQL:
		if e.opts.Mode == ModePreview {
			return nil
		}
		h.MarkDirty()
		if st.CanFail {
			return e.execCanFail(ctx, a, h, st)
		}
		if _, err := h.Exec(ctx, st.Statement); err != nil {
			return alerr.Wrap(alerr.ErrStatementFailed, err, "cannot execute alter statement").
				WithAlter(a.ID).WithInstance(h.ID()).WithSQL(st.Statement)
		}
		return nil

	case *alter.IDList:
		if e.skipMigration() {
			e.rc.Report(LevelStatement, "preview: skipping id_list migration")
			return nil
		}
		h.MarkDirty()
		if err := e.runIDList(ctx, h, st, a.ID); err != nil {
			return asAlterErr(err, a.ID, h.ID())
		}
		return nil

	case *alter.Range:
		if e.skipMigration() {
			e.rc.Report(LevelStatement, "preview: skipping range migration")
			return nil
		}
		h.MarkDirty()
		if err := e.runRange(ctx, h, st, a.ID); err != nil {
			return asAlterErr(err, a.ID, h.ID())
		}
		return nil

	default:
		return alerr.Newf(alerr.EInternalError, "unknown statement kind %q", s.Kind()).
			WithAlter(a.ID).WithInstance(h.ID())
	}
}

// canFailSavepoint fences statements that are allowed to fail.
const canFailSavepoint = "stmt_can_fail"

// execCanFail runs a failure-tolerant statement inside a savepoint. A
// statement error aborts the whole transaction on postgres, so swallowing
// one requires rolling back to a point just before it; the rest of the unit
// then proceeds on a usable transaction.
func (e *Engine) execCanFail(ctx context.Context, a *alter.Alter, h *instance.Handle, st *alter.SQL) *alerr.Error {
	if err := h.Savepoint(ctx, canFailSavepoint); err != nil {
		return asAlterErr(err, a.ID, h.ID())
	}
	if _, err := h.Exec(ctx, st.Statement); err != nil {
		if rerr := h.RollbackToSavepoint(ctx, canFailSavepoint); rerr != nil {
			return asAlterErr(rerr, a.ID, h.ID())
		}
		e.rc.Report(LevelStatement, "  %v\n  but continuing as this is allowed to fail", err)
		return nil
	}
	if err := h.ReleaseSavepoint(ctx, canFailSavepoint); err != nil {
		return asAlterErr(err, a.ID, h.ID())
	}
	return nil
}

// skipMigration reports whether migrations are skipped in the current mode.
func (e *Engine) skipMigration() bool {
	return e.opts.Mode == ModePreview && !e.opts.ExecuteMigrationsInPreview
}

// asAlterErr coerces an error to *alerr.Error and stamps run context on it.
func asAlterErr(err error, alterID, instanceID string) *alerr.Error {
	if err == nil {
		return nil
	}
	ae, ok := err.(*alerr.Error)
	if !ok {
		ae = alerr.Wrap(alerr.EInternalError, err, "unexpected failure")
	}
	if ae.Alter() == "" {
		ae.WithAlter(alterID)
	}
	if ae.Instance() == "" {
		ae.WithInstance(instanceID)
	}
	return ae
}
