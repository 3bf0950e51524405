package introspect

import (
	"fmt"
	"strings"

	"github.com/querysmith/querysmith-engine/pkg/models"
)

// maxSampleValueLength bounds individual sample values in the rendered
// context so one wide text column cannot blow up the prompt.
const maxSampleValueLength = 80

// Render formats the schema context as the plain-text block embedded in
// generation prompts. The output is deterministic for a given context.
func (s *SchemaContext) Render() string {
	var b strings.Builder

	for _, table := range s.Tables {
		fmt.Fprintf(&b, "Table: %s", table.QualifiedName())
		if table.RowCount != nil {
			fmt.Fprintf(&b, " (~%d rows)", *table.RowCount)
		}
		b.WriteString("\nColumns:\n")

		for _, col := range table.Columns {
			fmt.Fprintf(&b, "  - %s %s", col.Name, col.DataType)
			var flags []string
			if col.IsPrimaryKey {
				flags = append(flags, "primary key")
			}
			if col.IsForeignKey {
				flags = append(flags, "foreign key")
			}
			if !col.IsNullable {
				flags = append(flags, "not null")
			}
			if len(flags) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(flags, ", "))
			}
			b.WriteString("\n")
		}

		if len(table.SampleRows) > 0 {
			b.WriteString("Sample rows:\n")
			for _, row := range table.SampleRows {
				b.WriteString("  ")
				b.WriteString(renderSampleRow(table, row))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// renderSampleRow formats one sample row in column order so renders are
// stable across runs.
func renderSampleRow(table models.TableInfo, row map[string]any) string {
	parts := make([]string, 0, len(row))
	for _, col := range table.Columns {
		value, ok := row[col.Name]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", col.Name, renderSampleValue(value)))
	}
	return strings.Join(parts, ", ")
}

func renderSampleValue(value any) string {
	if value == nil {
		return "NULL"
	}
	s := fmt.Sprintf("%v", value)
	if len(s) > maxSampleValueLength {
		s = s[:maxSampleValueLength] + "..."
	}
	return s
}
