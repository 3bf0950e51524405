// Package sqlguard screens generated SQL before execution. It is a
// denylist-based defense-in-depth layer plus automatic row-limit injection,
// not a full SQL parser: a legitimate SELECT containing a denylisted word
// inside a string literal may be rejected, which is an accepted tradeoff.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

// DefaultRowLimit caps result sizes when the caller does not supply a limit.
const DefaultRowLimit = 1000

// ErrEmptyQuery is returned when the statement is blank after trimming.
var ErrEmptyQuery = errors.New("empty SQL statement")

// denylist covers data/schema mutation commands and file-system export
// primitives across the supported dialects.
var denylist = []string{
	"insert", "update", "delete", "drop", "create", "alter", "truncate",
	"grant", "revoke", "exec", "execute", "merge", "call", "replace",
	"copy", "outfile", "dumpfile", "load_file", "attach", "detach",
	"pragma", "vacuum", "shutdown",
}

var denyPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(denylist))
	for _, kw := range denylist {
		patterns[kw] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return patterns
}()

var (
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentPattern  = regexp.MustCompile(`--[^\n]*`)
)

// stripComments removes block and line comments so the screening passes
// see the statement the way the backend parser will.
func stripComments(sqlQuery string) string {
	out := blockCommentPattern.ReplaceAllString(sqlQuery, " ")
	return lineCommentPattern.ReplaceAllString(out, " ")
}

// Sanitize rejects statements that are not a single read-only SELECT.
// The checks, in order:
//  1. non-empty after trimming
//  2. no denylisted keyword anywhere (comments stripped first)
//  3. single statement (no semicolons outside string literals)
//  4. statement type is SELECT, including WITH whose CTEs do not modify data
//
// Violations return *apperrors.UnsafeQueryError naming the matched pattern.
func Sanitize(sqlQuery string) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return ErrEmptyQuery
	}

	stripped := stripComments(trimmed)
	for _, kw := range denylist {
		if denyPatterns[kw].MatchString(stripped) {
			return &apperrors.UnsafeQueryError{Pattern: kw}
		}
	}

	normalized, err := NormalizeStatement(stripped)
	if err != nil {
		return &apperrors.UnsafeQueryError{Pattern: "multiple statements"}
	}

	if !isSelectStatement(normalized) {
		return &apperrors.UnsafeQueryError{Pattern: firstKeyword(normalized)}
	}

	return nil
}

var (
	topPrefixPattern = regexp.MustCompile(`(?is)^\s*select\s+top\s*\(`)
	ctePrefixPattern = regexp.MustCompile(`(?is)^\s*with\b`)
	limitTailPattern = regexp.MustCompile(`(?is)\blimit\s+\d+(\s+offset\s+\d+)?\s*$`)
)

// ApplySafeguards bounds the statement's result size. Statements that
// already bound their results are returned unchanged (idempotent), so
// applying twice equals applying once. The dialect selects LIMIT wrapping
// or SQL Server's TOP clause. Comments are stripped before wrapping; a
// trailing line comment would otherwise swallow the injected tail.
func ApplySafeguards(sqlQuery string, rowLimit int, dialect string) string {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	trimmed, err := NormalizeStatement(stripComments(sqlQuery))
	if err != nil || trimmed == "" {
		return strings.TrimSpace(sqlQuery)
	}

	switch dialect {
	case "sqlserver", "mssql":
		if topPrefixPattern.MatchString(trimmed) {
			return trimmed
		}
		// T-SQL does not allow a CTE inside a derived table, so a WITH
		// statement cannot be wrapped and runs with its own bounds.
		if ctePrefixPattern.MatchString(trimmed) {
			return trimmed
		}
		return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _bounded", rowLimit, trimmed)
	default:
		if limitTailPattern.MatchString(trimmed) {
			return trimmed
		}
		return fmt.Sprintf("SELECT * FROM (%s) AS _bounded LIMIT %d", trimmed, rowLimit)
	}
}

func firstKeyword(sqlQuery string) string {
	fields := strings.Fields(strings.ToLower(sqlQuery))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
