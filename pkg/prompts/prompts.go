// Package prompts builds the system and user prompts for SQL generation.
// Prompts are deterministic for a given schema context so cache keys and
// test assertions stay stable.
package prompts

import (
	"fmt"
	"strings"

	"github.com/querysmith/querysmith-engine/pkg/introspect"
)

// dialectNames maps safeguard dialect tags to the names models know.
var dialectNames = map[string]string{
	"postgres":  "PostgreSQL",
	"mysql":     "MySQL",
	"sqlserver": "Microsoft SQL Server (T-SQL)",
	"sqlite":    "SQLite",
}

// BuildSystemPrompt returns the system message for SQL generation against
// the given dialect.
func BuildSystemPrompt(dialect string) string {
	name, ok := dialectNames[dialect]
	if !ok {
		name = "ANSI SQL"
	}

	return fmt.Sprintf(`You are an expert %s analyst. Given a database schema and a question, you write a single read-only SQL query that answers it.

Rules:
- Produce exactly one SELECT statement (WITH clauses are allowed). Never modify data.
- Use only the tables and columns shown in the schema.
- Qualify table names with their schema where one is shown.
- Return the SQL inside a `+"```sql"+` fenced block. A short explanation outside the block is welcome.`, name)
}

// BuildGeneratePrompt returns the first-attempt user prompt.
func BuildGeneratePrompt(question string, schemaCtx *introspect.SchemaContext) string {
	var b strings.Builder

	b.WriteString("Database schema:\n\n")
	b.WriteString(schemaCtx.Render())
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nWrite the SQL query.")

	return b.String()
}

// BuildRetryPrompt returns the prompt for a regeneration attempt. The
// previous statement and the failure it produced are included so the model
// can correct rather than repeat itself.
func BuildRetryPrompt(question string, schemaCtx *introspect.SchemaContext, prevSQL, errorMessage string) string {
	var b strings.Builder

	b.WriteString("Database schema:\n\n")
	b.WriteString(schemaCtx.Render())
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nA previous attempt failed.\n\nPrevious SQL:\n```sql\n")
	b.WriteString(prevSQL)
	b.WriteString("\n```\n\nError:\n")
	b.WriteString(errorMessage)
	b.WriteString("\n\nWrite a corrected SQL query that avoids this error.")

	return b.String()
}
