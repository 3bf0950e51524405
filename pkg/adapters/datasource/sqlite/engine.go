package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/logging"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// defaultSchema is the only schema a single-file SQLite database exposes.
const defaultSchema = "main"

// Engine provides SQLite connectivity, introspection, and execution over a
// local database file.
type Engine struct {
	cfg *Config
	db  *sql.DB
}

// NewEngine creates a SQLite engine. The engine is not connected until
// Connect is called.
func NewEngine(cfg *Config) *Engine {
	return &Engine{cfg: cfg}
}

// Connect opens the database file. Calling Connect while already connected
// is a no-op.
func (e *Engine) Connect(ctx context.Context) error {
	if e.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", e.cfg.Path)
	if err != nil {
		return &apperrors.ConnectionError{Backend: "sqlite", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &apperrors.ConnectionError{Backend: "sqlite", Err: err}
	}

	e.db = db
	return nil
}

// Disconnect closes the database. Safe to call at any time.
func (e *Engine) Disconnect() error {
	if e.db != nil {
		err := e.db.Close()
		e.db = nil
		return err
	}
	return nil
}

// TestConnection probes the database and reports version metadata. It never
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
	if err := e.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return &datasource.ConnectionTestResult{
			Success: false,
			Message: logging.SanitizeError(err),
			Latency: time.Since(start),
		}
	}

	return &datasource.ConnectionTestResult{
		Success:       true,
		ServerVersion: "SQLite " + version,
		Latency:       time.Since(start),
	}
}

// GetSchema returns all user tables with column detail. SQLite has no
// information_schema; tables come from sqlite_master and columns from the
// table_info pragma.
func (e *Engine) GetSchema(ctx context.Context) (*datasource.SchemaInfo, error) {
	names, err := e.listTables(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]models.TableInfo, 0, len(names))
	for _, name := range names {
		info, err := e.tableInfo(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *info)
	}

	return &datasource.SchemaInfo{Schemas: []string{defaultSchema}, Tables: tables}, nil
}

// listTables returns user table names, skipping SQLite's internal tables.
func (e *Engine) listTables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// tableInfo reads column detail for one table via pragmas.
func (e *Engine) tableInfo(ctx context.Context, table string) (*models.TableInfo, error) {
	rows, err := e.db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	fkColumns, err := e.foreignKeyColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	info := &models.TableInfo{SchemaName: defaultSchema, TableName: table}
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info: %w", err)
		}
		info.Columns = append(info.Columns, models.ColumnInfo{
			Name:         name,
			DataType:     dataType,
			IsNullable:   notNull == 0,
			IsPrimaryKey: pk > 0,
			IsForeignKey: fkColumns[name],
		})
	}
	return info, rows.Err()
}

// foreignKeyColumns returns the set of column names that participate in a
// foreign key of the given table.
func (e *Engine) foreignKeyColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := e.db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var id, seq int
		var refTable, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign_key_list: %w", err)
		}
		columns[from] = true
	}
	return columns, rows.Err()
}

// GetTableSchema returns full column detail for one table.
func (e *Engine) GetTableSchema(ctx context.Context, qualifiedName string) (*models.TableInfo, error) {
	_, table := datasource.SplitQualifiedName(qualifiedName, defaultSchema)

	var exists int
	err := e.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query table schema: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("table %s: %w", qualifiedName, apperrors.ErrNotFound)
	}

	info, err := e.tableInfo(ctx, table)
	if err != nil {
		return nil, err
	}

	var rowCount int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(table))
	if err := e.db.QueryRowContext(ctx, countQuery).Scan(&rowCount); err == nil {
		info.RowCount = &rowCount
	}
	return info, nil
}

// GetSampleData returns up to limit rows as a best-effort preview.
func (e *Engine) GetSampleData(ctx context.Context, qualifiedName string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = datasource.DefaultSampleLimit
	}
	_, table := datasource.SplitQualifiedName(qualifiedName, defaultSchema)

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

// ValidateQuery prepares the statement without executing, which catches
// syntax errors and missing objects.
func (e *Engine) ValidateQuery(ctx context.Context, sqlQuery string) *datasource.ValidationResult {
	stmt, err := e.db.PrepareContext(ctx, sqlQuery)
	if err != nil {
		return &datasource.ValidationResult{Valid: false, Error: err.Error()}
	}
	stmt.Close()
	return &datasource.ValidationResult{Valid: true}
}

// Dialect returns the safeguard dialect tag.
func (e *Engine) Dialect() string { return "sqlite" }

// quoteIdentifier double-quotes one identifier, escaping embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Ensure Engine implements datasource.Engine at compile time.
var _ datasource.Engine = (*Engine)(nil)
