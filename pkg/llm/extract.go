package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// sqlFencePattern matches a ```sql fenced block (or a bare ``` fence) and
// captures its body.
var sqlFencePattern = regexp.MustCompile("(?s)```(?:sql)?\\s*\\n?(.*?)```")

// ExtractSQL pulls the SQL statement and any surrounding explanation out of
// raw model output. Models are prompted to fence the statement in ```sql
// blocks; when no fence is present the whole trimmed content is treated as
// SQL.
func ExtractSQL(content string) (sqlQuery, explanation string, err error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", "", fmt.Errorf("empty completion content")
	}

	match := sqlFencePattern.FindStringSubmatchIndex(trimmed)
	if match == nil {
		return trimmed, "", nil
	}

	sqlQuery = strings.TrimSpace(trimmed[match[2]:match[3]])
	if sqlQuery == "" {
		return "", "", fmt.Errorf("empty SQL block in completion")
	}

	// Everything outside the fence is explanation prose.
	before := strings.TrimSpace(trimmed[:match[0]])
	after := strings.TrimSpace(trimmed[match[1]:])
	switch {
	case before != "" && after != "":
		explanation = before + "\n" + after
	case before != "":
		explanation = before
	default:
		explanation = after
	}

	return sqlQuery, explanation, nil
}
