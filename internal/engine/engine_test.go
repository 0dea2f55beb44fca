package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/hlop3z/applyalter/internal/alerr"
	"github.com/hlop3z/applyalter/internal/alter"
	"github.com/hlop3z/applyalter/internal/instance"
	"github.com/hlop3z/applyalter/internal/testutil"
)

// recordingReporter captures every report line for assertions.
type recordingReporter struct {
	msgs []string
}

func (r *recordingReporter) Report(_ ReportLevel, msg string) {
	r.msgs = append(r.msgs, msg)
}

func (r *recordingReporter) contains(substr string) bool {
	for _, m := range r.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func (r *recordingReporter) countContaining(substr string) int {
	n := 0
	for _, m := range r.msgs {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

func sqlAlter(id string, statements ...alter.Statement) *alter.Alter {
	return &alter.Alter{
		ID:         id,
		Schema:     "main",
		Statements: statements,
	}
}

func TestParseRunMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RunMode
		wantErr bool
	}{
		{in: "preview", want: ModePreview},
		{in: "commit", want: ModeCommit},
		{in: "sharp", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRunMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRunMode(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRunMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRunMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyCommitsPlainSQL(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	alters := []*alter.Alter{
		sqlAlter("a_010.yaml",
			&alter.SQL{Statement: "create table widgets (id integer primary key, name text)"},
			&alter.SQL{Statement: "insert into widgets (name) values ('first')"},
		),
	}

	e := New([]*instance.Handle{h}, Options{Mode: ModeCommit}, nil)
	if err := e.Apply(context.Background(), alters); err != nil {
		t.Fatalf("apply: %v", err)
	}

	db := testutil.Open(t, path)
	if got := testutil.Count(t, db, "select count(*) from widgets"); got != 1 {
		t.Errorf("expected 1 committed row, got %d", got)
	}
}

func TestApplySkipsAlreadyApplied(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	a := sqlAlter("a_010.yaml",
		&alter.SQL{Statement: "create table widgets (id integer primary key)"},
		&alter.SQL{Statement: "insert into widgets default values"},
	)
	a.Checks = []alter.Check{{Kind: alter.CheckTable, Name: "widgets"}}

	e := New([]*instance.Handle{h}, Options{}, nil)
	if err := e.Apply(context.Background(), []*alter.Alter{a}); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	// The handle is closed by Apply; the second run needs a fresh one over
	// the same database.
	h2, err := instance.NewHandle(instance.Config{ID: "db1", Type: "x", URL: path, Dialect: "sqlite"})
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	rep := &recordingReporter{}
	e2 := New([]*instance.Handle{h2}, Options{}, NewRunContext(rep, LevelDetail))
	if err := e2.Apply(context.Background(), []*alter.Alter{a}); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if !rep.contains("applied already") {
		t.Errorf("expected the second run to skip, got reports:\n%s", strings.Join(rep.msgs, "\n"))
	}
	db := testutil.Open(t, path)
	if got := testutil.Count(t, db, "select count(*) from widgets"); got != 1 {
		t.Errorf("expected the insert to run exactly once, got %d rows", got)
	}
}

func TestApplyCustomCheckMatchIsCaseInsensitive(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	a := sqlAlter("a_010.yaml",
		&alter.SQL{Statement: "create table should_not_exist (id integer)"},
	)
	a.CheckOK = "select 'ok'"

	e := New([]*instance.Handle{h}, Options{}, nil)
	if err := e.Apply(context.Background(), []*alter.Alter{a}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	db := testutil.Open(t, path)
	got := testutil.Count(t, db,
		"select count(*) from sqlite_master where type = 'table' and name = 'should_not_exist'")
	if got != 0 {
		t.Error("custom check returned OK but the statement still ran")
	}
}

func TestApplyFiltersByInstanceType(t *testing.T) {
	hx, pathX := testutil.NewSQLiteHandle(t, "prod", "x")
	hy, pathY := testutil.NewSQLiteHandle(t, "reporting", "y")

	a := sqlAlter("a_010.yaml",
		&alter.SQL{Statement: "create table only_x (id integer)"},
	)
	a.Instances = []string{"x"}

	e := New([]*instance.Handle{hx, hy}, Options{}, nil)
	if err := e.Apply(context.Background(), []*alter.Alter{a}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	dbX := testutil.Open(t, pathX)
	if got := testutil.Count(t, dbX, "select count(*) from sqlite_master where name = 'only_x'"); got != 1 {
		t.Error("targeted instance was not altered")
	}
	dbY := testutil.Open(t, pathY)
	if got := testutil.Count(t, dbY, "select count(*) from sqlite_master"); got != 0 {
		t.Error("non-targeted instance was altered")
	}
}

func TestApplyAbortsAndRollsBackOnFailure(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	alters := []*alter.Alter{
		sqlAlter("a_010.yaml",
			&alter.SQL{Statement: "create table t1 (id integer)"},
			&alter.SQL{Statement: "this is not sql"},
			&alter.SQL{Statement: "create table never_reached (id integer)"},
		),
		sqlAlter("a_020.yaml",
			&alter.SQL{Statement: "create table t2 (id integer)"},
		),
	}

	e := New([]*instance.Handle{h}, Options{Mode: ModeCommit}, nil)
	err := e.Apply(context.Background(), alters)
	if err == nil {
		t.Fatal("expected the run to fail")
	}
	if !alerr.Is(err, alerr.ErrStatementFailed) {
		t.Errorf("expected statement failure, got %v", err)
	}

	// Nothing was committed: the failing unit's earlier work is rolled back
	// on close and the following unit never ran.
	db := testutil.Open(t, path)
	if got := testutil.Count(t, db, "select count(*) from sqlite_master"); got != 0 {
		t.Errorf("expected an empty database after the aborted run, found %d objects", got)
	}
}

func TestApplyToleratesCanFailStatement(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	alters := []*alter.Alter{
		sqlAlter("a_010.yaml",
			&alter.SQL{Statement: "drop table does_not_exist", CanFail: true},
			&alter.SQL{Statement: "create table survivor (id integer)"},
		),
	}

	rep := &recordingReporter{}
	e := New([]*instance.Handle{h}, Options{}, NewRunContext(rep, LevelDetail))
	if err := e.Apply(context.Background(), alters); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if !rep.contains("allowed to fail") {
		t.Error("expected the tolerated failure to be reported")
	}
	db := testutil.Open(t, path)
	if got := testutil.Count(t, db, "select count(*) from sqlite_master where name = 'survivor'"); got != 1 {
		t.Error("statement after the tolerated failure did not run")
	}
}

func TestApplyIgnoredFailureSuppressesLaterCommits(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	alters := []*alter.Alter{
		sqlAlter("a_010.yaml",
			&alter.SQL{Statement: "this is not sql"},
		),
		// This unit succeeds on its own, but it must not be committed: the
		// run already carries a failure.
		sqlAlter("a_020.yaml",
			&alter.SQL{Statement: "create table clean_unit (id integer)"},
		),
	}

	e := New([]*instance.Handle{h}, Options{Mode: ModeCommit, IgnoreFailures: true}, nil)
	err := e.Apply(context.Background(), alters)
	if err == nil {
		t.Fatal("expected the deferred failure to surface at run end")
	}
	if !strings.Contains(err.Error(), "a_010.yaml") {
		t.Errorf("composite error should name the failing alter: %v", err)
	}

	db := testutil.Open(t, path)
	if got := testutil.Count(t, db, "select count(*) from sqlite_master"); got != 0 {
		t.Error("a unit was committed after a failure was recorded")
	}
}

func TestApplyContinuesAcrossUnitsUnderIgnorePolicy(t *testing.T) {
	h, _ := testutil.NewSQLiteHandle(t, "db1", "x")

	alters := []*alter.Alter{
		sqlAlter("a_010.yaml", &alter.SQL{Statement: "bad one"}),
		sqlAlter("a_020.yaml", &alter.SQL{Statement: "bad two"}),
	}

	rep := &recordingReporter{}
	e := New([]*instance.Handle{h}, Options{IgnoreFailures: true}, NewRunContext(rep, LevelDetail))
	err := e.Apply(context.Background(), alters)
	if err == nil {
		t.Fatal("expected a composite error")
	}
	for _, id := range []string{"a_010.yaml", "a_020.yaml"} {
		if !strings.Contains(err.Error(), id) {
			t.Errorf("composite error should include the failure from %s:\n%v", id, err)
		}
	}
}

func TestApplyPreviewExecutesNothing(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	alters := []*alter.Alter{
		sqlAlter("a_010.yaml",
			&alter.Comment{Text: "adds the widgets table"},
			&alter.SQL{Statement: "create table widgets (id integer)"},
			&alter.IDList{
				IDQuery:   "select id from widgets",
				IDColumn:  "id",
				Step:      100,
				Statement: "delete from widgets where id in ID_LIST",
			},
		),
	}

	rep := &recordingReporter{}
	e := New([]*instance.Handle{h}, Options{Mode: ModePreview}, NewRunContext(rep, LevelDetail))
	if err := e.Apply(context.Background(), alters); err != nil {
		t.Fatalf("preview: %v", err)
	}

	if !rep.contains("skipping id_list migration") {
		t.Error("expected the migration to be skipped in preview mode")
	}
	db := testutil.Open(t, path)
	if got := testutil.Count(t, db, "select count(*) from sqlite_master"); got != 0 {
		t.Error("preview mode executed SQL")
	}
}

func TestApplyPreviewRunsMigrationsWhenEnabled(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	seed := testutil.Open(t, path)
	testutil.MustExec(t, seed, "create table items (id integer primary key, flag integer default 0)")
	testutil.MustExec(t, seed, "insert into items (id) values (1), (2), (3)")

	alters := []*alter.Alter{
		sqlAlter("a_010.yaml",
			&alter.IDList{
				IDQuery:   "select id from items where flag = 0",
				IDColumn:  "id",
				Step:      10,
				Statement: "update items set flag = 1 where id in ID_LIST",
			},
		),
	}

	e := New([]*instance.Handle{h}, Options{Mode: ModePreview, ExecuteMigrationsInPreview: true}, nil)
	if err := e.Apply(context.Background(), alters); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := testutil.Count(t, seed, "select count(*) from items where flag = 1"); got != 3 {
		t.Errorf("expected the migration to run and commit in preview, got %d migrated rows", got)
	}
}

func TestApplyIgnoredFailureDiscardsPartialWork(t *testing.T) {
	h, path := testutil.NewSQLiteHandle(t, "db1", "x")

	db := testutil.Open(t, path)
	testutil.MustExec(t, db, "create table audit (id integer)")
	testutil.MustExec(t, db, "create table items (id integer primary key, flag integer default 0)")
	testutil.MustExec(t, db, "insert into items (id) values (1), (2), (3)")

	alters := []*alter.Alter{
		sqlAlter("a_010.yaml",
			&alter.SQL{Statement: "insert into audit values (1)"},
			&alter.SQL{Statement: "this is not sql"},
		),
		sqlAlter("a_020.yaml", &alter.IDList{
			IDQuery:   "select id from items where flag = 0",
			IDColumn:  "id",
			Step:      2,
			Statement: "update items set flag = 1 where id in ID_LIST",
		}),
	}

	rep := &recordingReporter{}
	e := New([]*instance.Handle{h}, Options{IgnoreFailures: true}, NewRunContext(rep, LevelDetail))
	if err := e.Apply(context.Background(), alters); err == nil {
		t.Fatal("expected the deferred failure to surface at run end")
	}

	// The later migration commits per batch; those commits must not drag
	// the failed unit's pending insert along with them.
	if got := testutil.Count(t, db, "select count(*) from audit"); got != 0 {
		t.Errorf("rows from the failed unit were committed: %d", got)
	}
	if got := testutil.Count(t, db, "select count(*) from items where flag = 1"); got != 3 {
		t.Errorf("migrated rows = %d, want 3", got)
	}
}
