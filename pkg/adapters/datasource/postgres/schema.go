package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/querysmith/querysmith-engine/pkg/models"
)

// groupColumns folds the flat (schema, table, column, ...) rows of
// columnQuery into per-table TableInfo snapshots, preserving column order.
func groupColumns(rows pgx.Rows) ([]models.TableInfo, error) {
	var tables []models.TableInfo
	index := make(map[string]int)

	for rows.Next() {
		var schemaName, tableName string
		var col models.ColumnInfo
		if err := rows.Scan(&schemaName, &tableName, &col.Name, &col.DataType,
			&col.IsNullable, &col.IsPrimaryKey, &col.IsForeignKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}

		key := schemaName + "." + tableName
		i, ok := index[key]
		if !ok {
			i = len(tables)
			index[key] = i
			tables = append(tables, models.TableInfo{
				SchemaName: schemaName,
				TableName:  tableName,
			})
		}
		tables[i].Columns = append(tables[i].Columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return tables, nil
}
