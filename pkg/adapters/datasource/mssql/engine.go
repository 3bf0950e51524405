package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/logging"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// Engine provides SQL Server connectivity, introspection, and execution.
type Engine struct {
	cfg *Config
	db  *sql.DB
}

// NewEngine creates a SQL Server engine. The engine is not connected until
// Connect is called.
func NewEngine(cfg *Config) *Engine {
	return &Engine{cfg: cfg}
}

// buildConnectionString builds a sqlserver:// URL. url.URL handles the
// escaping of credentials with special characters.
func buildConnectionString(cfg *Config) string {
	encrypt := cfg.Encrypt
	if encrypt == "" {
		encrypt = DefaultEncrypt()
	}

	query := url.Values{}
	query.Set("database", cfg.Database)
	query.Set("encrypt", encrypt)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Connect establishes the connection pool. Calling Connect while already
// connected is a no-op.
func (e *Engine) Connect(ctx context.Context) error {
	if e.db != nil {
		return nil
	}

	db, err := sql.Open("sqlserver", buildConnectionString(e.cfg))
	if err != nil {
		return &apperrors.ConnectionError{Backend: "mssql", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &apperrors.ConnectionError{Backend: "mssql", Err: err}
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
	if err := e.db.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&version); err != nil {
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

// columnQuery lists every user-visible column with key flags. SQL Server
// has no boolean type in scalar expressions, so flags are cast to BIT.
const columnQuery = `
	SELECT
		c.TABLE_SCHEMA,
		c.TABLE_NAME,
		c.COLUMN_NAME,
		c.DATA_TYPE,
		CAST(CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS BIT),
		CAST(CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END AS BIT),
		CAST(CASE WHEN fk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END AS BIT)
	FROM INFORMATION_SCHEMA.COLUMNS c
	JOIN INFORMATION_SCHEMA.TABLES t
		ON t.TABLE_SCHEMA = c.TABLE_SCHEMA
		AND t.TABLE_NAME = c.TABLE_NAME
		AND t.TABLE_TYPE = 'BASE TABLE'
	LEFT JOIN (
		SELECT kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
	) pk ON pk.TABLE_SCHEMA = c.TABLE_SCHEMA
		AND pk.TABLE_NAME = c.TABLE_NAME
		AND pk.COLUMN_NAME = c.COLUMN_NAME
	LEFT JOIN (
		SELECT kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'FOREIGN KEY'
	) fk ON fk.TABLE_SCHEMA = c.TABLE_SCHEMA
		AND fk.TABLE_NAME = c.TABLE_NAME
		AND fk.COLUMN_NAME = c.COLUMN_NAME
	WHERE c.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
`

// GetSchema returns all accessible schemas and tables with column detail.
func (e *Engine) GetSchema(ctx context.Context) (*datasource.SchemaInfo, error) {
	rows, err := e.db.QueryContext(ctx,
		columnQuery+" ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION")
	if err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	defer rows.Close()

	tables, err := groupColumns(rows)
	if err != nil {
		return nil, err
	}

	schemaSet := make(map[string]bool)
	schemas := make([]string, 0)
	for _, t := range tables {
		if !schemaSet[t.SchemaName] {
			schemaSet[t.SchemaName] = true
			schemas = append(schemas, t.SchemaName)
		}
	}

	return &datasource.SchemaInfo{Schemas: schemas, Tables: tables}, nil
}

// GetTableSchema returns full column detail for one table.
func (e *Engine) GetTableSchema(ctx context.Context, qualifiedName string) (*models.TableInfo, error) {
	schema, table := datasource.SplitQualifiedName(qualifiedName, "dbo")

	rows, err := e.db.QueryContext(ctx,
		columnQuery+" AND c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2 ORDER BY c.ORDINAL_POSITION",
		schema, table)
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
	if rowCount, err := e.estimateRowCount(ctx, schema, table); err == nil {
		info.RowCount = &rowCount
	}
	return &info, nil
}

// estimateRowCount reads the partition stats row estimate, which is cheap
// and good enough for diagnostics.
func (e *Engine) estimateRowCount(ctx context.Context, schema, table string) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(p.rows), 0)
		FROM sys.partitions p
		JOIN sys.tables t ON t.object_id = p.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1 AND t.name = @p2 AND p.index_id IN (0, 1)
	`
	var count int64
	err := e.db.QueryRowContext(ctx, query, schema, table).Scan(&count)
	return count, err
}

// GetSampleData returns up to limit rows as a best-effort preview.
func (e *Engine) GetSampleData(ctx context.Context, qualifiedName string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = datasource.DefaultSampleLimit
	}
	schema, table := datasource.SplitQualifiedName(qualifiedName, "dbo")
	target := quoteIdentifier(schema) + "." + quoteIdentifier(table)

	rows, err := e.db.QueryContext(ctx,
		fmt.Sprintf("SELECT TOP (%d) * FROM %s", limit, target))
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

// ValidateQuery prepares the statement without executing. SQL Server parses
// and binds on prepare, which catches syntax errors and missing objects.
func (e *Engine) ValidateQuery(ctx context.Context, sqlQuery string) *datasource.ValidationResult {
	stmt, err := e.db.PrepareContext(ctx, sqlQuery)
	if err != nil {
		return &datasource.ValidationResult{Valid: false, Error: err.Error()}
	}
	stmt.Close()
	return &datasource.ValidationResult{Valid: true}
}

// Dialect returns the safeguard dialect tag.
func (e *Engine) Dialect() string { return "sqlserver" }

// quoteIdentifier bracket-quotes one identifier, escaping embedded brackets.
func quoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
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
