package datasource

import (
	"database/sql"
	"fmt"
)

// CollectRows drains a database/sql result set into the backend-agnostic
// shape used by every database/sql-backed adapter. []byte values for string
// column types are converted to string so JSON encoding stays readable.
func CollectRows(rows *sql.Rows) ([]FieldDescriptor, []map[string]any, error) {
	columnNames, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("get columns: %w", err)
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("get column types: %w", err)
	}

	columns := make([]FieldDescriptor, len(columnNames))
	for i, name := range columnNames {
		nullable, _ := columnTypes[i].Nullable()
		columns[i] = FieldDescriptor{
			Name:     name,
			Type:     columnTypes[i].DatabaseTypeName(),
			Nullable: nullable,
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, name := range columnNames {
			val := values[i]
			if b, ok := val.([]byte); ok && isTextualType(columns[i].Type) {
				val = string(b)
			}
			rowMap[name] = val
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}

	return columns, resultRows, nil
}

// isTextualType reports whether a driver type name holds character data.
// Drivers that report no type name (e.g. SQLite expressions) are treated as
// textual so bytes never leak into JSON as base64.
func isTextualType(dbType string) bool {
	switch dbType {
	case "CHAR", "VARCHAR", "NCHAR", "NVARCHAR", "TEXT", "NTEXT",
		"LONGTEXT", "MEDIUMTEXT", "TINYTEXT", "JSON", "ENUM", "SET",
		"DECIMAL", "NUMERIC", "":
		return true
	default:
		return false
	}
}
