package alter

import (
	"strings"
	"testing"

	"github.com/hlop3z/applyalter/internal/alerr"
)

func TestAppliesTo(t *testing.T) {
	tests := []struct {
		name      string
		instances []string
		instType  string
		want      bool
	}{
		{"all instances when empty", nil, "anything", true},
		{"matching type", []string{"x", "y"}, "x", true},
		{"non-matching type", []string{"x"}, "y", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Alter{Instances: tt.instances}
			if got := a.AppliesTo(tt.instType); got != tt.want {
				t.Errorf("AppliesTo(%q) = %v, want %v", tt.instType, got, tt.want)
			}
		})
	}
}

func TestIDListValidate(t *testing.T) {
	valid := func() *IDList {
		return &IDList{
			IDQuery:   "select id from t",
			IDColumn:  "id",
			Step:      100,
			Statement: "delete from t where id in ID_LIST",
		}
	}

	tests := []struct {
		name   string
		mutate func(*IDList)
		code   alerr.Code
	}{
		{"valid", func(m *IDList) {}, ""},
		{"missing statement", func(m *IDList) { m.Statement = "" }, alerr.ErrMissingStatement},
		{"missing idquery", func(m *IDList) { m.IDQuery = " " }, alerr.ErrMissingIDQuery},
		{"missing idcolumn", func(m *IDList) { m.IDColumn = "" }, alerr.ErrMissingIDColumn},
		{"zero step", func(m *IDList) { m.Step = 0 }, alerr.ErrInvalidStep},
		{"negative step", func(m *IDList) { m.Step = -5 }, alerr.ErrInvalidStep},
		{
			"missing placeholder",
			func(m *IDList) { m.Statement = "delete from t" },
			alerr.ErrMissingPlaceholder,
		},
		{
			"custom placeholder honored",
			func(m *IDList) {
				m.Placeholder = "KEYS"
				m.Statement = "delete from t where id in KEYS"
			},
			"",
		},
		{
			"custom placeholder missing",
			func(m *IDList) { m.Placeholder = "KEYS" },
			alerr.ErrMissingPlaceholder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := m.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.GetCode() != tt.code {
				t.Fatalf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestRangeValidate(t *testing.T) {
	valid := func() *Range {
		return &Range{
			From:      1,
			To:        1000,
			Step:      100,
			Statement: "update t set x = 1 where id between FROM_ID and TO_ID",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Range)
		code   alerr.Code
	}{
		{"valid", func(m *Range) {}, ""},
		{"missing statement", func(m *Range) { m.Statement = "" }, alerr.ErrMissingStatement},
		{"invalid step", func(m *Range) { m.Step = 0 }, alerr.ErrInvalidStep},
		{"inverted bounds", func(m *Range) { m.From, m.To = 10, 1 }, alerr.ErrInvalidRange},
		{
			"missing from placeholder",
			func(m *Range) { m.Statement = "update t set x = 1 where id <= TO_ID" },
			alerr.ErrMissingPlaceholder,
		},
		{
			"missing to placeholder",
			func(m *Range) { m.Statement = "update t set x = 1 where id >= FROM_ID" },
			alerr.ErrMissingPlaceholder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := m.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.GetCode() != tt.code {
				t.Fatalf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestCheckValidate(t *testing.T) {
	tests := []struct {
		name  string
		check Check
		ok    bool
	}{
		{"table check", Check{Kind: CheckTable, Name: "audit_log"}, true},
		{"column check", Check{Kind: CheckColumn, Table: "audit_log", Name: "actor"}, true},
		{"index check without table", Check{Kind: CheckIndex, Name: "idx"}, false},
		{"unknown kind", Check{Kind: "sequence", Name: "s"}, false},
		{"missing name", Check{Kind: CheckTable}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAlterValidate(t *testing.T) {
	a := &Alter{
		ID:     "001_init.yaml",
		Schema: "app",
		Statements: []Statement{
			&Comment{Text: "setup"},
			&SQL{Statement: "create table t (id integer)"},
		},
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := &Alter{
		ID:     "002_bad.yaml",
		Schema: "app",
		Statements: []Statement{
			&IDList{IDQuery: "select id from t", IDColumn: "id", Step: 10, Statement: "no placeholder"},
		},
	}
	err := bad.Validate()
	if err == nil || !alerr.Is(err, alerr.ErrMissingPlaceholder) {
		t.Fatalf("error = %v, want ErrMissingPlaceholder", err)
	}
	if !strings.Contains(err.Error(), "002_bad.yaml") {
		t.Errorf("error should carry the alter id: %v", err)
	}
}
