package introspect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// fakeEngine serves canned schema and sample data for introspection tests.
type fakeEngine struct {
	sampleErr error
}

func (e *fakeEngine) Connect(ctx context.Context) error { return nil }
func (e *fakeEngine) Disconnect() error                 { return nil }

func (e *fakeEngine) TestConnection(ctx context.Context) *datasource.ConnectionTestResult {
	return &datasource.ConnectionTestResult{Success: true}
}

func (e *fakeEngine) GetSchema(ctx context.Context) (*datasource.SchemaInfo, error) {
	return &datasource.SchemaInfo{}, nil
}

func (e *fakeEngine) GetTableSchema(ctx context.Context, qualifiedName string) (*models.TableInfo, error) {
	if strings.HasSuffix(qualifiedName, "missing") {
		return nil, fmt.Errorf("table %s: %w", qualifiedName, apperrors.ErrNotFound)
	}
	rowCount := int64(250)
	return &models.TableInfo{
		SchemaName: "public",
		TableName:  strings.TrimPrefix(qualifiedName, "public."),
		RowCount:   &rowCount,
		Columns: []models.ColumnInfo{
			{Name: "id", DataType: "integer", IsPrimaryKey: true},
			{Name: "email", DataType: "text", IsNullable: true},
			{Name: "org_id", DataType: "integer", IsForeignKey: true},
		},
	}, nil
}

func (e *fakeEngine) GetSampleData(ctx context.Context, qualifiedName string, limit int) ([]map[string]any, error) {
	if e.sampleErr != nil {
		return nil, e.sampleErr
	}
	return []map[string]any{
		{"id": 1, "email": "a@example.com", "org_id": 7},
	}, nil
}

func (e *fakeEngine) ExecuteQuery(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	return nil, nil
}

func (e *fakeEngine) ValidateQuery(ctx context.Context, sqlQuery string) *datasource.ValidationResult {
	return &datasource.ValidationResult{Valid: true}
}

func (e *fakeEngine) Dialect() string { return "postgres" }

func TestBuildContext(t *testing.T) {
	intro := NewIntrospector(5, zap.NewNop())

	schemaCtx, err := intro.BuildContext(context.Background(), &fakeEngine{}, []string{"public.users"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(schemaCtx.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(schemaCtx.Tables))
	}
	if len(schemaCtx.Tables[0].SampleRows) != 1 {
		t.Errorf("sample rows = %d, want 1", len(schemaCtx.Tables[0].SampleRows))
	}
	if len(schemaCtx.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", schemaCtx.Warnings)
	}
}

func TestBuildContext_NoTablesIsFatal(t *testing.T) {
	intro := NewIntrospector(5, zap.NewNop())

	var contextErr *apperrors.ContextError
	if _, err := intro.BuildContext(context.Background(), &fakeEngine{}, nil); !errors.As(err, &contextErr) {
		t.Errorf("err = %v, want ContextError", err)
	}
}

func TestBuildContext_MissingTableIsFatal(t *testing.T) {
	intro := NewIntrospector(5, zap.NewNop())

	_, err := intro.BuildContext(context.Background(), &fakeEngine{}, []string{"public.users", "public.missing"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want wrapped ErrNotFound", err)
	}
}

func TestBuildContext_SampleFailureDegradesToWarning(t *testing.T) {
	intro := NewIntrospector(5, zap.NewNop())
	engine := &fakeEngine{sampleErr: errors.New("permission denied")}

	schemaCtx, err := intro.BuildContext(context.Background(), engine, []string{"public.users"})
	if err != nil {
		t.Fatalf("sample failure aborted the build: %v", err)
	}

	if len(schemaCtx.Tables) != 1 || schemaCtx.Tables[0].SampleRows != nil {
		t.Errorf("table should be present without samples: %+v", schemaCtx.Tables)
	}
	if len(schemaCtx.Warnings) != 1 || !strings.Contains(schemaCtx.Warnings[0], "public.users") {
		t.Errorf("warnings = %v, want one naming the table", schemaCtx.Warnings)
	}
}

func TestRender(t *testing.T) {
	intro := NewIntrospector(5, zap.NewNop())
	schemaCtx, err := intro.BuildContext(context.Background(), &fakeEngine{}, []string{"public.users"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rendered := schemaCtx.Render()

	for _, want := range []string{
		"Table: public.users",
		"(~250 rows)",
		"id integer (primary key, not null)",
		"org_id integer (foreign key, not null)",
		"email text",
		"Sample rows:",
		"email=a@example.com",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("render missing %q:\n%s", want, rendered)
		}
	}

	// Deterministic output for identical context.
	if rendered != schemaCtx.Render() {
		t.Error("render is not deterministic")
	}
}

func TestRenderTruncatesWideValues(t *testing.T) {
	long := strings.Repeat("x", 500)
	schemaCtx := &SchemaContext{Tables: []models.TableInfo{{
		SchemaName: "public",
		TableName:  "notes",
		Columns:    []models.ColumnInfo{{Name: "body", DataType: "text"}},
		SampleRows: []map[string]any{{"body": long}},
	}}}

	rendered := schemaCtx.Render()
	if strings.Contains(rendered, long) {
		t.Error("wide value not truncated")
	}
	if !strings.Contains(rendered, "...") {
		t.Error("truncation marker missing")
	}
}
