package applyalter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hlop3z/applyalter/internal/alerr"
)

// memoLogger captures progress lines.
type memoLogger struct {
	lines []string
}

func (l *memoLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNewRequiresInstances(t *testing.T) {
	_, err := New()
	if !errors.Is(err, ErrMissingInstances) {
		t.Errorf("expected ErrMissingInstances, got %v", err)
	}
}

func TestNewWithExplicitInstances(t *testing.T) {
	c, err := New(WithInstances(Instance{ID: "db1", Type: "x", URL: "./x.db"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := c.Instances()
	if len(got) != 1 || got[0].ID != "db1" {
		t.Fatalf("unexpected instances %v", got)
	}
	if got[0].Dialect != "sqlite" {
		t.Errorf("dialect not auto-detected: %q", got[0].Dialect)
	}
}

func TestNewWithInstancesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "instances.yaml", `
ignore_failures: true
instances:
  - id: db1
    type: x
    url: ./db1.db
`)

	c, err := New(WithInstancesFile(path))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.config.IgnoreFailures {
		t.Error("ignore_failures from the file should carry over")
	}
}

func TestApplyEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")

	alterPath := writeFile(t, dir, "alter_010.yaml", `
schema: main
checks:
  - kind: table
    name: widgets
statements:
  - comment: create the widgets table
  - sql:
      statement: create table widgets (id integer primary key, name text)
  - sql:
      statement: insert into widgets (name) values ('first')
`)

	log := &memoLogger{}
	c, err := New(
		WithInstances(Instance{ID: "db1", Type: "x", URL: dbPath}),
		WithLogger(log),
		WithVerbosity(4),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Apply(context.Background(), alterPath); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("select count(*) from widgets").Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 committed row, got %d", n)
	}

	// Second run is a no-op thanks to the table check.
	if err := c.Apply(context.Background(), alterPath); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if err := db.QueryRow("select count(*) from widgets").Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 1 {
		t.Errorf("expected the second run to skip, got %d rows", n)
	}

	if len(log.lines) == 0 {
		t.Error("expected progress to be logged")
	}
}

func TestApplyPreviewDoesNotTouchDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")

	alterPath := writeFile(t, dir, "alter_010.yaml", `
schema: main
statements:
  - sql:
      statement: create table widgets (id integer)
`)

	c, err := New(
		WithInstances(Instance{ID: "db1", Type: "x", URL: dbPath}),
		WithPreview(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Apply(context.Background(), alterPath); err != nil {
		t.Fatalf("preview Apply: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("select count(*) from sqlite_master").Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 0 {
		t.Error("preview run created database objects")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	a1 := writeFile(t, dir, "alter_010.yaml", `
schema: app
instances: [x]
check_ok: select 'OK'
description: first alter
statements:
  - sql:
      statement: create table t1 (id integer)
`)
	a2 := writeFile(t, dir, "alter_020.yaml", `
schema: app
checks:
  - kind: table
    name: t2
statements:
  - comment: second
  - sql:
      statement: create table t2 (id integer)
`)

	c, err := New(WithInstances(Instance{ID: "db1", Type: "x", URL: "./x.db"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	infos, err := c.Validate(a1, a2)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 alters, got %d", len(infos))
	}
	if infos[0].ID != "alter_010.yaml" || infos[0].Checks != 1 || infos[0].Statements != 1 {
		t.Errorf("unexpected first summary %+v", infos[0])
	}
	if infos[1].Checks != 1 || infos[1].Statements != 2 {
		t.Errorf("unexpected second summary %+v", infos[1])
	}
}

func TestValidateRejectsBrokenAlter(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.yaml", `
schema: app
statements:
  - id_list:
      idquery: select id from t
      idcolumn: id
      step: 100
      statement: update t set v = 1
`)

	c, err := New(WithInstances(Instance{ID: "db1", Type: "x", URL: "./x.db"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Validate(broken)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if !IsConfigurationError(err) {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestFailuresUnpacksAggregate(t *testing.T) {
	var agg alerr.Aggregate
	agg.Add(alerr.New(alerr.ErrStatementFailed, "one"))
	agg.Add(alerr.New(alerr.ErrStatementFailed, "two"))

	got := Failures(&agg)
	if len(got) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(got))
	}
	if !strings.Contains(got[1].Error(), "two") {
		t.Errorf("unexpected second failure %v", got[1])
	}

	single := errors.New("plain")
	if got := Failures(single); len(got) != 1 || got[0] != single {
		t.Errorf("single error should pass through, got %v", got)
	}
	if got := Failures(nil); got != nil {
		t.Errorf("nil should yield nil, got %v", got)
	}
}
