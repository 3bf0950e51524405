package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/logging"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// Engine provides PostgreSQL connectivity, introspection, and execution.
type Engine struct {
	cfg  *Config
	pool *pgxpool.Pool
}

// NewEngine creates a PostgreSQL engine. The engine is not connected until
// Connect is called.
func NewEngine(cfg *Config) *Engine {
	return &Engine{cfg: cfg}
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields must be URL-escaped to handle special characters
// in passwords (e.g., @, /, #, ?) that would otherwise break URL parsing.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}

// Connect establishes the connection pool. Calling Connect while already
// connected is a no-op.
func (e *Engine) Connect(ctx context.Context) error {
	if e.pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, buildConnectionString(e.cfg))
	if err != nil {
		return &apperrors.ConnectionError{Backend: "postgres", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return &apperrors.ConnectionError{Backend: "postgres", Err: err}
	}

	e.pool = pool
	return nil
}

// Disconnect releases the pool. Safe to call at any time.
func (e *Engine) Disconnect() error {
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	return nil
}

// TestConnection probes the server and reports version metadata. It never
// returns an error; failures land in the result value.
func (e *Engine) TestConnection(ctx context.Context) *datasource.ConnectionTestResult {
	start := time.Now()

	connected := e.pool != nil
	if !connected {
		if err := e.Connect(ctx); err != nil {
			return &datasource.ConnectionTestResult{
				Success: false,
				Message: logging.SanitizeError(err),
			}
		}
	}

	var version string
	if err := e.pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
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

const columnQuery = `
	SELECT
		c.table_schema,
		c.table_name,
		c.column_name,
		c.data_type,
		c.is_nullable = 'YES' AS is_nullable,
		COALESCE(pk.is_pk, false) AS is_primary_key,
		COALESCE(fk.is_fk, false) AS is_foreign_key
	FROM information_schema.columns c
	JOIN information_schema.tables t
		ON t.table_schema = c.table_schema
		AND t.table_name = c.table_name
		AND t.table_type = 'BASE TABLE'
	LEFT JOIN (
		SELECT kcu.table_schema, kcu.table_name, kcu.column_name, true AS is_pk
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
	) pk ON pk.table_schema = c.table_schema
		AND pk.table_name = c.table_name
		AND pk.column_name = c.column_name
	LEFT JOIN (
		SELECT kcu.table_schema, kcu.table_name, kcu.column_name, true AS is_fk
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
	) fk ON fk.table_schema = c.table_schema
		AND fk.table_name = c.table_name
		AND fk.column_name = c.column_name
	WHERE c.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
`

// GetSchema returns all accessible schemas and tables with column detail.
func (e *Engine) GetSchema(ctx context.Context) (*datasource.SchemaInfo, error) {
	rows, err := e.pool.Query(ctx, columnQuery+" ORDER BY c.table_schema, c.table_name, c.ordinal_position")
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
	schema, table := datasource.SplitQualifiedName(qualifiedName, "public")

	rows, err := e.pool.Query(ctx,
		columnQuery+" AND c.table_schema = $1 AND c.table_name = $2 ORDER BY c.ordinal_position",
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

// estimateRowCount reads the planner's row estimate, which is cheap and
// good enough for diagnostics.
func (e *Engine) estimateRowCount(ctx context.Context, schema, table string) (int64, error) {
	const query = `
		SELECT COALESCE(c.reltuples::bigint, 0)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
	`
	var count int64
	err := e.pool.QueryRow(ctx, query, schema, table).Scan(&count)
	return count, err
}

// GetSampleData returns up to limit rows as a best-effort preview.
func (e *Engine) GetSampleData(ctx context.Context, qualifiedName string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = datasource.DefaultSampleLimit
	}
	schema, table := datasource.SplitQualifiedName(qualifiedName, "public")
	target := pgx.Identifier{schema, table}.Sanitize()

	rows, err := e.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", target, limit))
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", qualifiedName, err)
	}
	defer rows.Close()

	_, sample, err := collectPgxRows(rows)
	return sample, err
}

// ExecuteQuery runs already-screened SQL and returns the result set.
func (e *Engine) ExecuteQuery(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	start := time.Now()

	rows, err := e.pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, &apperrors.ExecutionError{SQL: sqlQuery, Err: err}
	}
	defer rows.Close()

	columns, resultRows, err := collectPgxRows(rows)
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
	if _, err := e.pool.Exec(ctx, "EXPLAIN "+sqlQuery); err != nil {
		return &datasource.ValidationResult{Valid: false, Error: err.Error()}
	}
	return &datasource.ValidationResult{Valid: true}
}

// Dialect returns the safeguard dialect tag.
func (e *Engine) Dialect() string { return "postgres" }

// collectPgxRows drains a pgx result set into the backend-agnostic shape.
func collectPgxRows(rows pgx.Rows) ([]datasource.FieldDescriptor, []map[string]any, error) {
	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.FieldDescriptor, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.FieldDescriptor{
			Name: string(fd.Name),
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}

	return columns, resultRows, nil
}

// pgTypeNameFromOID maps common PostgreSQL type OIDs to readable names.
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 17:
		return "BYTEA"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 114:
		return "JSON"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1186:
		return "INTERVAL"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	default:
		return "UNKNOWN"
	}
}

// Ensure Engine implements datasource.Engine at compile time.
var _ datasource.Engine = (*Engine)(nil)
