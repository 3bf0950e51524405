package sqlguard

import (
	"errors"
	"testing"
)

func TestNormalizeStatement_StripsTrailingSemicolon(t *testing.T) {
	got, err := NormalizeStatement("SELECT 1;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("got %q, want %q", got, "SELECT 1")
	}
}

func TestNormalizeStatement_RejectsMultipleStatements(t *testing.T) {
	queries := []string{
		"SELECT 1; SELECT 2",
		"SELECT 1;;",
		"SELECT 1 ; SELECT 2 ;",
	}
	for _, q := range queries {
		if _, err := NormalizeStatement(q); !errors.Is(err, ErrMultipleStatements) {
			t.Errorf("NormalizeStatement(%q) err = %v, want ErrMultipleStatements", q, err)
		}
	}
}

func TestNormalizeStatement_SemicolonsInsideLiterals(t *testing.T) {
	queries := []string{
		`SELECT ';' AS sep`,
		`SELECT 'a;b;c' FROM t`,
		`SELECT ";" FROM t`,
		`SELECT 'it''s; fine' FROM t`,
	}
	for _, q := range queries {
		got, err := NormalizeStatement(q)
		if err != nil {
			t.Errorf("NormalizeStatement(%q) err = %v, want nil", q, err)
			continue
		}
		if got != q {
			t.Errorf("NormalizeStatement(%q) = %q, want unchanged", q, got)
		}
	}
}

func TestNormalizeStatement_Empty(t *testing.T) {
	got, err := NormalizeStatement("   ")
	if err != nil || got != "" {
		t.Errorf("got (%q, %v), want empty and nil", got, err)
	}
}

func TestIsSelectStatement(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"select 1", true},
		{"  WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"WITH gone AS (DELETE FROM t) SELECT 1", false},
		{"SHOW TABLES", false},
		{"EXPLAIN SELECT 1", false},
	}
	for _, tt := range tests {
		if got := isSelectStatement(tt.query); got != tt.want {
			t.Errorf("isSelectStatement(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
