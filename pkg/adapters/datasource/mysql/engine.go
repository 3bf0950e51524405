package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/logging"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// Engine provides MySQL connectivity, introspection, and execution.
type Engine struct {
	cfg *Config
	db  *sql.DB
}

// NewEngine creates a MySQL engine. The engine is not connected until
// Connect is called.
func NewEngine(cfg *Config) *Engine {
	return &Engine{cfg: cfg}
}

// buildDSN builds the driver DSN via the driver's own formatter, which
// handles special characters in passwords.
func buildDSN(cfg *Config) string {
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// Connect establishes the connection pool. Calling Connect while already
// connected is a no-op.
func (e *Engine) Connect(ctx context.Context) error {
	if e.db != nil {
		return nil
	}

	db, err := sql.Open("mysql", buildDSN(e.cfg))
	if err != nil {
		return &apperrors.ConnectionError{Backend: "mysql", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &apperrors.ConnectionError{Backend: "mysql", Err: err}
	}

	e.db = db
	return nil
}

// Disconnect releases the pool. Safe to call at any time.
func (e *Engine) Disconnect() error {
	if e.db != nil {
		err := e.db.Close()
		e.db = nil
		return err
	}
	return nil
}

// TestConnection probes the server and reports version metadata. It never
// returns an error; failures land in the result value.
func (e *Engine) TestConnection(ctx context.Context) *datasource.ConnectionTestResult {
	start := time.Now()

	if e.db == nil {
		if err := e.Connect(ctx); err != nil {
			return &datasource.ConnectionTestResult{
				Success: false,
				Message: logging.SanitizeError(err),
			}
		}
	}

	var version string
	if err := e.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return &datasource.ConnectionTestResult{
			Success: false,
			Message: logging.SanitizeError(err),
			Latency: time.Since(start),
		}
	}

	return &datasource.ConnectionTestResult{
		Success:       true,
		ServerVersion: version,
		Latency:       time.Since(start),
	}
}

// columnQuery lists every column of the configured database. MySQL treats
// schema and database as the same thing, so introspection is scoped to
// DATABASE() rather than all schemas the credentials can see.
const columnQuery = `
	SELECT
		c.table_schema,
		c.table_name,
		c.column_name,
		c.data_type,
		c.is_nullable = 'YES' AS is_nullable,
		c.column_key = 'PRI' AS is_primary_key,
		fk.column_name IS NOT NULL AS is_foreign_key
	FROM information_schema.columns c
	JOIN information_schema.tables t
		ON t.table_schema = c.table_schema
		AND t.table_name = c.table_name
		AND t.table_type = 'BASE TABLE'
	LEFT JOIN (
		SELECT DISTINCT table_schema, table_name, column_name
		FROM information_schema.key_column_usage
		WHERE referenced_table_name IS NOT NULL
	) fk ON fk.table_schema = c.table_schema
		AND fk.table_name = c.table_name
		AND fk.column_name = c.column_name
	WHERE c.table_schema = DATABASE()
`

// GetSchema returns the configured database's tables with column detail.
func (e *Engine) GetSchema(ctx context.Context) (*datasource.SchemaInfo, error) {
	rows, err := e.db.QueryContext(ctx, columnQuery+" ORDER BY c.table_name, c.ordinal_position")
	if err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	defer rows.Close()

	tables, err := groupColumns(rows)
	if err != nil {
		return nil, err
	}

	return &datasource.SchemaInfo{Schemas: []string{e.cfg.Database}, Tables: tables}, nil
}

// GetTableSchema returns full column detail for one table. Qualified names
// may carry the database as the schema part; it must match the configured
// database because the pool is bound to it.
func (e *Engine) GetTableSchema(ctx context.Context, qualifiedName string) (*models.TableInfo, error) {
	_, table := datasource.SplitQualifiedName(qualifiedName, e.cfg.Database)

	rows, err := e.db.QueryContext(ctx,
		columnQuery+" AND c.table_name = ? ORDER BY c.ordinal_position", table)
	if err != nil {
		return nil, fmt.Errorf("query table schema: %w", err)
	}
	defer rows.Close()

	tables, err := groupColumns(rows)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("table %s: %w", qualifiedName, apperrors.ErrNotFound)
	}

	info := tables[0]
	if rowCount, err := e.estimateRowCount(ctx, table); err == nil {
		info.RowCount = &rowCount
	}
	return &info, nil
}

// estimateRowCount reads the statistics row estimate, which is cheap and
// good enough for diagnostics.
func (e *Engine) estimateRowCount(ctx context.Context, table string) (int64, error) {
	const query = `
		SELECT COALESCE(table_rows, 0)
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?
	`
	var count int64
	err := e.db.QueryRowContext(ctx, query, table).Scan(&count)
	return count, err
}

// GetSampleData returns up to limit rows as a best-effort preview.
func (e *Engine) GetSampleData(ctx context.Context, qualifiedName string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = datasource.DefaultSampleLimit
	}
	_, table := datasource.SplitQualifiedName(qualifiedName, e.cfg.Database)

	rows, err := e.db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdentifier(table), limit))
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", qualifiedName, err)
	}
	defer rows.Close()

	_, sample, err := datasource.CollectRows(rows)
	return sample, err
}

// ExecuteQuery runs already-screened SQL and returns the result set.
func (e *Engine) ExecuteQuery(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, &apperrors.ExecutionError{SQL: sqlQuery, Err: err}
	}
	defer rows.Close()

	columns, resultRows, err := datasource.CollectRows(rows)
	if err != nil {
		return nil, &apperrors.ExecutionError{SQL: sqlQuery, Err: err}
	}

	return &datasource.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

// ValidateQuery uses EXPLAIN to validate syntax and referenced objects
// without executing.
func (e *Engine) ValidateQuery(ctx context.Context, sqlQuery string) *datasource.ValidationResult {
	rows, err := e.db.QueryContext(ctx, "EXPLAIN "+sqlQuery)
	if err != nil {
		return &datasource.ValidationResult{Valid: false, Error: err.Error()}
	}
	rows.Close()
	return &datasource.ValidationResult{Valid: true}
}

// Dialect returns the safeguard dialect tag.
func (e *Engine) Dialect() string { return "mysql" }

// quoteIdentifier backtick-quotes one identifier, escaping embedded backticks.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// groupColumns folds the flat (schema, table, column, ...) rows of
// columnQuery into per-table TableInfo snapshots, preserving column order.
func groupColumns(rows *sql.Rows) ([]models.TableInfo, error) {
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

// Ensure Engine implements datasource.Engine at compile time.
var _ datasource.Engine = (*Engine)(nil)
