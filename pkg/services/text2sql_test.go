package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/cache"
	"github.com/querysmith/querysmith-engine/pkg/config"
	"github.com/querysmith/querysmith-engine/pkg/introspect"
	"github.com/querysmith/querysmith-engine/pkg/llm"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// stubEngine is a scriptable datasource.Engine for pipeline tests.
type stubEngine struct {
	executeFunc  func(sqlQuery string) (*datasource.QueryResult, error)
	validateFunc func(sqlQuery string) *datasource.ValidationResult
	executed     []string
	connected    bool
	disconnects  int
}

func (e *stubEngine) Connect(ctx context.Context) error {
	e.connected = true
	return nil
}

func (e *stubEngine) Disconnect() error {
	e.disconnects++
	e.connected = false
	return nil
}

func (e *stubEngine) TestConnection(ctx context.Context) *datasource.ConnectionTestResult {
	return &datasource.ConnectionTestResult{Success: true}
}

func (e *stubEngine) GetSchema(ctx context.Context) (*datasource.SchemaInfo, error) {
	return &datasource.SchemaInfo{}, nil
}

func (e *stubEngine) GetTableSchema(ctx context.Context, qualifiedName string) (*models.TableInfo, error) {
	if qualifiedName == "public.missing" {
		return nil, fmt.Errorf("table %s: %w", qualifiedName, apperrors.ErrNotFound)
	}
	return &models.TableInfo{
		SchemaName: "public",
		TableName:  strings.TrimPrefix(qualifiedName, "public."),
		Columns: []models.ColumnInfo{
			{Name: "id", DataType: "integer", IsPrimaryKey: true},
			{Name: "total", DataType: "numeric", IsNullable: true},
		},
	}, nil
}

func (e *stubEngine) GetSampleData(ctx context.Context, qualifiedName string, limit int) ([]map[string]any, error) {
	return []map[string]any{{"id": 1, "total": 9.5}}, nil
}

func (e *stubEngine) ExecuteQuery(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	e.executed = append(e.executed, sqlQuery)
	if e.executeFunc != nil {
		return e.executeFunc(sqlQuery)
	}
	rows := make([]map[string]any, 12)
	for i := range rows {
		rows[i] = map[string]any{"id": i}
	}
	return &datasource.QueryResult{
		Columns:  []datasource.FieldDescriptor{{Name: "id", Type: "INT4"}},
		Rows:     rows,
		RowCount: len(rows),
		Duration: 5 * time.Millisecond,
	}, nil
}

func (e *stubEngine) ValidateQuery(ctx context.Context, sqlQuery string) *datasource.ValidationResult {
	if e.validateFunc != nil {
		return e.validateFunc(sqlQuery)
	}
	return &datasource.ValidationResult{Valid: true}
}

func (e *stubEngine) Dialect() string { return "postgres" }

// stubDatasourceService hands out a fixed engine.
type stubDatasourceService struct {
	engine datasource.Engine
	err    error
}

func (s *stubDatasourceService) ResolveConfig(ds *models.Datasource) (map[string]any, error) {
	return ds.Config, nil
}

func (s *stubDatasourceService) CreateEngine(ds *models.Datasource) (datasource.Engine, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.engine, nil
}

func (s *stubDatasourceService) TestConnection(ctx context.Context, ds *models.Datasource) *datasource.ConnectionTestResult {
	return &datasource.ConnectionTestResult{Success: true}
}

func (s *stubDatasourceService) ListAdapterTypes() []datasource.AdapterInfo { return nil }

// stubProvider returns one fixed client.
type stubProvider struct {
	client llm.CompletionClient
	err    error
}

func (p *stubProvider) Client(provider string) (llm.CompletionClient, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.client, nil
}

func completion(sqlQuery string) *llm.CompletionResult {
	return &llm.CompletionResult{
		Content: "Here is the query:\n```sql\n" + sqlQuery + "\n```\nIt counts rows.",
	}
}

type pipelineFixture struct {
	service TextToSQLService
	engine  *stubEngine
	client  *llm.MockCompletionClient
	cache   *cache.ResultCache
}

func newPipelineFixture(t *testing.T, client *llm.MockCompletionClient) *pipelineFixture {
	t.Helper()
	engine := &stubEngine{}
	resultCache := cache.NewResultCache(cache.NewMemoryStore(), time.Minute, zap.NewNop())
	queryCfg := &config.QueryConfig{
		RowLimit:        1000,
		MaxRetries:      2,
		SampleRows:      5,
		CacheTTLMinutes: 1,
		TimeoutSeconds:  30,
	}
	service := NewTextToSQLService(
		&stubDatasourceService{engine: engine},
		introspect.NewIntrospector(5, zap.NewNop()),
		&stubProvider{client: client},
		resultCache,
		queryCfg,
		zap.NewNop(),
	)
	return &pipelineFixture{service: service, engine: engine, client: client, cache: resultCache}
}

func testRequest(chartID *uuid.UUID) *models.TextToSQLRequest {
	return &models.TextToSQLRequest{
		Query:  "how many orders are there?",
		Tables: []string{"public.orders"},
		Datasource: &models.Datasource{
			ID:             uuid.New(),
			DatasourceType: "postgres",
			Config:         map[string]any{"host": "db", "user": "u", "database": "d"},
		},
		MaxRetries: -1,
		ChartID:    chartID,
	}
}

func TestGenerateAndExecute_SuccessFirstAttempt(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		return completion("SELECT * FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)

	result, err := fx.service.GenerateAndExecute(context.Background(), testRequest(nil))
	require.NoError(t, err)

	require.True(t, result.Success, "result: %+v", result)
	assert.Equal(t, 0, result.RetryCount)
	assert.Equal(t, 12, result.RowCount)
	assert.Len(t, result.Rows, 12)
	assert.Contains(t, result.SQL, "LIMIT 1000", "row limit not injected")
	assert.NotEmpty(t, result.Explanation, "explanation dropped")
	assert.Equal(t, 1, client.CompleteCalls)
	assert.Equal(t, 1, fx.engine.disconnects)
}

func TestGenerateAndExecute_RetriesAfterUnsafeSQL(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		if client.CompleteCalls == 1 {
			return completion("DROP TABLE public.orders"), nil
		}
		return completion("SELECT * FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)

	result, err := fx.service.GenerateAndExecute(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RetryCount)
	assert.Equal(t, 2, client.CompleteCalls)
	// The unsafe statement must never reach the engine.
	for _, sql := range fx.engine.executed {
		assert.NotContains(t, strings.ToLower(sql), "drop", "unsafe SQL executed")
	}
	// The retry prompt carries the screening failure and the rejected
	// statement, so the model sees what it has to correct.
	require.GreaterOrEqual(t, len(client.Requests), 2)
	retryPrompt := client.Requests[1].Prompt
	assert.Contains(t, retryPrompt, "disallowed pattern")
	assert.Contains(t, retryPrompt, "DROP TABLE public.orders")
}

func TestGenerateAndExecute_FeedsExecutionErrorIntoRetry(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		if client.CompleteCalls == 1 {
			return completion("SELECT nope FROM public.orders"), nil
		}
		return completion("SELECT * FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)
	fx.engine.executeFunc = func(sqlQuery string) (*datasource.QueryResult, error) {
		if strings.Contains(sqlQuery, "nope") {
			return nil, &apperrors.ExecutionError{
				SQL: sqlQuery,
				Err: fmt.Errorf(`column "nope" does not exist`),
			}
		}
		return &datasource.QueryResult{Rows: []map[string]any{{"id": 1}}, RowCount: 1}, nil
	}

	result, err := fx.service.GenerateAndExecute(context.Background(), testRequest(nil))
	require.NoError(t, err)

	require.True(t, result.Success)
	require.Equal(t, 1, result.RetryCount)
	retryPrompt := client.Requests[1].Prompt
	assert.Contains(t, retryPrompt, `column "nope" does not exist`, "native error missing")
	assert.Contains(t, retryPrompt, "SELECT nope", "failing SQL missing")
}

func TestGenerateAndExecute_ExhaustsRetryBudget(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		return completion("DELETE FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)

	req := testRequest(nil)
	req.MaxRetries = 2

	result, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err, "exhaustion must not be an error")

	assert.False(t, result.Success)
	// maxRetries=2 means three generation attempts total.
	assert.Equal(t, 3, client.CompleteCalls)
	assert.Equal(t, 2, result.RetryCount)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Rows, "failed result carries rows")
}

func TestGenerateAndExecute_IdentityCacheHit(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		return completion("SELECT * FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)

	chartID := uuid.New()
	req := testRequest(&chartID)

	first, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached, "first run reported cached")

	second, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached, "second run not served from cache")
	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, first.RowCount, second.RowCount)
	assert.Equal(t, 1, client.CompleteCalls, "cache must skip generation")
}

func TestGenerateAndExecute_IdentityHitMismatchRegenerates(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		return completion("SELECT * FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)

	chartID := uuid.New()
	req := testRequest(&chartID)

	_, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)

	// The chart's question changed but nobody invalidated. The stored
	// identity entry no longer matches the request and must not be served.
	changed := testRequest(&chartID)
	changed.Datasource = req.Datasource
	changed.Query = "what is the total revenue?"

	result, err := fx.service.GenerateAndExecute(context.Background(), changed)
	require.NoError(t, err)
	assert.False(t, result.Cached, "stale identity entry served for a changed question")
	assert.Equal(t, 2, client.CompleteCalls)

	// Same for a changed table set.
	changedTables := testRequest(&chartID)
	changedTables.Datasource = req.Datasource
	changedTables.Tables = []string{"public.customers"}

	result, err = fx.service.GenerateAndExecute(context.Background(), changedTables)
	require.NoError(t, err)
	assert.False(t, result.Cached, "stale identity entry served for a changed table set")
}

func TestGenerateAndExecute_ForceRefreshBypassesRead(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		return completion("SELECT * FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)

	chartID := uuid.New()
	req := testRequest(&chartID)

	_, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)

	req.ForceRefresh = true
	result, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Cached, "force refresh served from cache")
	assert.Equal(t, 2, client.CompleteCalls)
}

func TestGenerateAndExecute_FatalValidationErrors(t *testing.T) {
	fx := newPipelineFixture(t, llm.NewMockCompletionClient())

	var contextErr *apperrors.ContextError

	req := testRequest(nil)
	req.Query = ""
	_, err := fx.service.GenerateAndExecute(context.Background(), req)
	assert.ErrorAs(t, err, &contextErr, "empty query")

	req = testRequest(nil)
	req.Datasource = nil
	_, err = fx.service.GenerateAndExecute(context.Background(), req)
	assert.ErrorAs(t, err, &contextErr, "nil datasource")

	req = testRequest(nil)
	req.Tables = nil
	_, err = fx.service.GenerateAndExecute(context.Background(), req)
	assert.ErrorAs(t, err, &contextErr, "no tables")
}

func TestGenerateAndExecute_MissingTableIsFatal(t *testing.T) {
	client := llm.NewMockCompletionClient()
	fx := newPipelineFixture(t, client)

	req := testRequest(nil)
	req.Tables = []string{"public.missing"}

	_, err := fx.service.GenerateAndExecute(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, client.CompleteCalls, "generation ran despite failed context build")
}

func TestRefreshChart_RepointsIdentity(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		if client.CompleteCalls == 1 {
			return completion("SELECT id FROM public.orders"), nil
		}
		return completion("SELECT total FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)

	chartID := uuid.New()
	req := testRequest(&chartID)

	_, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)

	refreshReq := testRequest(nil)
	refreshReq.Datasource = req.Datasource
	refreshed, err := fx.service.RefreshChart(context.Background(), chartID, refreshReq)
	require.NoError(t, err)
	assert.False(t, refreshed.Cached, "refresh served from cache")

	// A subsequent identity read serves the refreshed result.
	cached, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, cached.Cached, "identity read missed after refresh")
	assert.Contains(t, cached.SQL, "total", "identity still serves the old result")
}

func TestInvalidateChart(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
		return completion("SELECT * FROM public.orders"), nil
	}
	fx := newPipelineFixture(t, client)

	chartID := uuid.New()
	req := testRequest(&chartID)

	_, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)

	fx.service.InvalidateChart(context.Background(), chartID)

	result, err := fx.service.GenerateAndExecute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Cached, "invalidated chart still served from cache")
	assert.Equal(t, 2, client.CompleteCalls)
}
