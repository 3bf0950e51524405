// Package datasource defines the uniform engine contract implemented once
// per backend family, plus the registry and factory that select an adapter
// from a datasource type tag.
package datasource

import (
	"context"
	"strings"
	"time"

	"github.com/querysmith/querysmith-engine/pkg/models"
)

// DefaultSampleLimit bounds sample-data previews when the caller passes no limit.
const DefaultSampleLimit = 5

// Engine is the uniform contract over one backend. The orchestrator is
// backend-agnostic; identifier quoting, schema-qualification rules, and
// pagination syntax are fully contained inside each adapter.
//
// Connections are scoped to a single request: Connect at the start,
// Disconnect on every exit path.
type Engine interface {
	// Connect establishes a live connection. Calling it again while
	// connected is a no-op. Transport or auth failures are reported as
	// *apperrors.ConnectionError.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. Always safe to call, including
	// after a failed Connect.
	Disconnect() error

	// TestConnection performs a lightweight round-trip without requiring a
	// prior explicit Connect. It never returns an error; failures are
	// reported in the result value.
	TestConnection(ctx context.Context) *ConnectionTestResult

	// GetSchema returns the accessible schema names and all visible tables
	// with column detail (no sample rows).
	GetSchema(ctx context.Context) (*SchemaInfo, error)

	// GetTableSchema returns full column detail for one table. Returns an
	// error wrapping apperrors.ErrNotFound when the table does not exist or
	// is not visible.
	GetTableSchema(ctx context.Context, qualifiedName string) (*models.TableInfo, error)

	// GetSampleData returns up to limit rows as a best-effort preview.
	GetSampleData(ctx context.Context, qualifiedName string, limit int) ([]map[string]any, error)

	// ExecuteQuery runs already-screened SQL. Failures are reported as
	// *apperrors.ExecutionError carrying the backend's native message.
	ExecuteQuery(ctx context.Context, sqlQuery string) (*QueryResult, error)

	// ValidateQuery performs a cheap pre-check (EXPLAIN-style where the
	// backend supports it) without materializing results.
	ValidateQuery(ctx context.Context, sqlQuery string) *ValidationResult

	// Dialect returns the SQL dialect tag used for safeguard injection
	// ("postgres", "mysql", "sqlserver", "sqlite").
	Dialect() string
}

// ConnectionTestResult reports the outcome of a connectivity probe.
type ConnectionTestResult struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message,omitempty"`
	ServerVersion string        `json:"server_version,omitempty"`
	Latency       time.Duration `json:"latency_ms,omitempty"`
}

// SchemaInfo is the full schema surface visible to the configured credentials.
type SchemaInfo struct {
	Schemas []string           `json:"schemas"`
	Tables  []models.TableInfo `json:"tables"`
}

// FieldDescriptor describes one result column.
type FieldDescriptor struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // backend type name ("TEXT", "INT4", "VARCHAR")
	Nullable bool   `json:"nullable"`
}

// QueryResult holds the rows of one successful execution. Immutable once
// returned.
type QueryResult struct {
	Columns  []FieldDescriptor `json:"columns"`
	Rows     []map[string]any  `json:"rows"`
	RowCount int               `json:"row_count"`
	Duration time.Duration     `json:"duration"`
}

// ValidationResult is the outcome of a syntactic pre-check.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// SplitQualifiedName splits "schema.table" into its parts. A bare table
// name yields defaultSchema. Extra dots stay in the table part so quoting
// happens on exactly two identifiers.
func SplitQualifiedName(qualifiedName, defaultSchema string) (schema, table string) {
	parts := strings.SplitN(qualifiedName, ".", 2)
	if len(parts) == 1 {
		return defaultSchema, parts[0]
	}
	return parts[0], parts[1]
}
