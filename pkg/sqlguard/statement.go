package sqlguard

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMultipleStatements indicates the query contains more than one statement.
var ErrMultipleStatements = errors.New("multiple SQL statements not allowed")

// modifyingCTEPattern matches CTEs that contain data-modifying operations,
// e.g. WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted.
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

// NormalizeStatement trims whitespace, strips one trailing semicolon, and
// rejects any remaining semicolon outside string literals as a second
// statement.
func NormalizeStatement(sqlQuery string) (string, error) {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return "", nil
	}

	normalized := stripTrailingSemicolon(sqlQuery)
	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

// isSelectStatement reports whether the statement is a plain SELECT or a
// WITH clause whose CTEs are all read-only.
func isSelectStatement(sqlQuery string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sqlQuery))
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return true
	case strings.HasPrefix(upper, "WITH"):
		return !modifyingCTEPattern.MatchString(sqlQuery)
	default:
		return false
	}
}

// hasSemicolonOutsideStrings scans the SQL with a small state machine so
// semicolons inside quoted literals do not count as statement separators.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// SQL standard doubled quotes ('') exit and immediately
			// re-enter on the next quote, which keeps us in the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}
