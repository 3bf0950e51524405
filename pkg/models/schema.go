package models

// ColumnInfo describes a single column of a table.
type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	IsForeignKey bool   `json:"is_foreign_key"`
	Description  string `json:"description,omitempty"`
}

// TableInfo is an immutable snapshot of a table's structure, optionally
// enriched with row counts and a bounded sample of rows.
type TableInfo struct {
	SchemaName  string           `json:"schema_name"`
	TableName   string           `json:"table_name"`
	Columns     []ColumnInfo     `json:"columns"`
	RowCount    *int64           `json:"row_count,omitempty"`
	SampleRows  []map[string]any `json:"sample_rows,omitempty"`
	Description string           `json:"description,omitempty"`
}

// QualifiedName returns the schema-qualified table name ("schema.table"),
// or the bare table name when the backend has no schema concept.
func (t *TableInfo) QualifiedName() string {
	if t.SchemaName == "" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}
