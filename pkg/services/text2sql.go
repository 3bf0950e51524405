package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/cache"
	"github.com/querysmith/querysmith-engine/pkg/config"
	"github.com/querysmith/querysmith-engine/pkg/introspect"
	"github.com/querysmith/querysmith-engine/pkg/llm"
	"github.com/querysmith/querysmith-engine/pkg/logging"
	"github.com/querysmith/querysmith-engine/pkg/models"
	"github.com/querysmith/querysmith-engine/pkg/prompts"
	"github.com/querysmith/querysmith-engine/pkg/sqlguard"
)

// ClientProvider resolves completion clients by provider tag.
// *llm.Registry implements this interface.
type ClientProvider interface {
	Client(provider string) (llm.CompletionClient, error)
}

// TextToSQLService runs the generate-screen-execute pipeline.
type TextToSQLService interface {
	// GenerateAndExecute answers one natural-language query. Fatal setup
	// failures (bad config, unreachable datasource, unknown provider) are
	// returned as errors; an exhausted retry budget yields a result with
	// Success=false and a nil error.
	GenerateAndExecute(ctx context.Context, req *models.TextToSQLRequest) (*models.TextToSQLResult, error)

	// RefreshChart regenerates a chart's result, bypassing the cache read
	// and repointing the chart's cache identity at the fresh result.
	RefreshChart(ctx context.Context, chartID uuid.UUID, req *models.TextToSQLRequest) (*models.TextToSQLResult, error)

	// InvalidateChart drops a chart's cached result.
	InvalidateChart(ctx context.Context, chartID uuid.UUID)
}

type textToSQLService struct {
	datasources  DatasourceService
	introspector introspect.Introspector
	clients      ClientProvider
	resultCache  *cache.ResultCache
	queryCfg     *config.QueryConfig
	logger       *zap.Logger
}

// NewTextToSQLService creates the pipeline orchestrator.
func NewTextToSQLService(
	datasources DatasourceService,
	introspector introspect.Introspector,
	clients ClientProvider,
	resultCache *cache.ResultCache,
	queryCfg *config.QueryConfig,
	logger *zap.Logger,
) TextToSQLService {
	return &textToSQLService{
		datasources:  datasources,
		introspector: introspector,
		clients:      clients,
		resultCache:  resultCache,
		queryCfg:     queryCfg,
		logger:       logger.Named("text2sql"),
	}
}

func (s *textToSQLService) GenerateAndExecute(ctx context.Context, req *models.TextToSQLRequest) (*models.TextToSQLResult, error) {
	if req.Query == "" {
		return nil, &apperrors.ContextError{Err: fmt.Errorf("query is required")}
	}
	if req.Datasource == nil {
		return nil, &apperrors.ContextError{Err: fmt.Errorf("datasource is required")}
	}

	// Identity-keyed cache read. The content key needs generated SQL, which
	// does not exist yet, so the pre-generation lookup goes through the
	// chart identity. An entry computed for a different question, table set,
	// or datasource is stale (the chart changed without an invalidate) and
	// falls through to regeneration.
	if req.ChartID != nil && !req.ForceRefresh {
		if entry := s.resultCache.GetByIdentity(ctx, *req.ChartID); entry != nil {
			if entryMatchesRequest(entry, req) {
				s.logger.Debug("cache hit",
					zap.String("chart_id", req.ChartID.String()))
				return resultFromCacheEntry(entry), nil
			}
			s.logger.Debug("identity entry does not match request, regenerating",
				zap.String("chart_id", req.ChartID.String()))
		}
	}

	engine, err := s.datasources.CreateEngine(req.Datasource)
	if err != nil {
		return nil, err
	}
	defer engine.Disconnect()

	if err := engine.Connect(ctx); err != nil {
		return nil, err
	}

	schemaCtx, err := s.introspector.BuildContext(ctx, engine, req.Tables)
	if err != nil {
		return nil, err
	}

	client, err := s.clients.Client(req.Provider)
	if err != nil {
		return nil, err
	}

	maxRetries := req.MaxRetries
	if maxRetries < 0 {
		maxRetries = s.queryCfg.MaxRetries
	}

	systemPrompt := prompts.BuildSystemPrompt(engine.Dialect())

	var lastSQL, lastError string
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var prompt string
		if attempt == 0 {
			prompt = prompts.BuildGeneratePrompt(req.Query, schemaCtx)
		} else {
			prompt = prompts.BuildRetryPrompt(req.Query, schemaCtx, lastSQL, lastError)
		}

		result, attemptSQL, attemptErr := s.runAttempt(ctx, engine, client, req.Model, systemPrompt, prompt)
		if attemptErr == nil {
			result.RetryCount = attempt
			s.writeThrough(ctx, req, result)
			s.logger.Info("query answered",
				zap.Int("retry_count", attempt),
				zap.Int("row_count", result.RowCount),
				zap.Int64("execution_ms", result.ExecutionMS))
			return result, nil
		}

		if !apperrors.IsRetryable(attemptErr) {
			return nil, attemptErr
		}

		if sql := feedbackSQL(attemptErr, attemptSQL); sql != "" {
			lastSQL = sql
		}
		lastError = attemptErr.Error()
		s.logger.Warn("generation attempt failed",
			zap.Int("attempt", attempt),
			zap.String("sql", logging.SanitizeQuery(lastSQL)),
			zap.String("error", lastError))
	}

	return &models.TextToSQLResult{
		Success:    false,
		SQL:        lastSQL,
		Error:      lastError,
		RetryCount: maxRetries,
	}, nil
}

// runAttempt performs one generate-screen-execute pass. The second return
// value is the SQL the attempt produced, as far as it got: the raw generated
// statement when screening rejected it, the safeguarded statement once one
// exists, empty when no SQL was extracted at all. It feeds the next retry
// prompt.
func (s *textToSQLService) runAttempt(
	ctx context.Context,
	engine datasource.Engine,
	client llm.CompletionClient,
	model, systemPrompt, prompt string,
) (*models.TextToSQLResult, string, error) {
	genCtx := ctx
	if s.queryCfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, time.Duration(s.queryCfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	completion, err := client.Complete(genCtx, &llm.CompletionRequest{
		System: systemPrompt,
		Prompt: prompt,
		Model:  model,
	})
	if err != nil {
		return nil, "", err
	}

	sqlQuery, explanation, err := llm.ExtractSQL(completion.Content)
	if err != nil {
		return nil, "", &apperrors.GenerationError{Provider: client.Provider(), Err: err}
	}

	if err := sqlguard.Sanitize(sqlQuery); err != nil {
		return nil, sqlQuery, err
	}
	finalSQL := sqlguard.ApplySafeguards(sqlQuery, s.queryCfg.RowLimit, engine.Dialect())

	if validation := engine.ValidateQuery(ctx, finalSQL); !validation.Valid {
		return nil, finalSQL, &apperrors.ExecutionError{
			SQL: finalSQL,
			Err: fmt.Errorf("validation failed: %s", validation.Error),
		}
	}

	execCtx := ctx
	if s.queryCfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(s.queryCfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	queryResult, err := engine.ExecuteQuery(execCtx, finalSQL)
	if err != nil {
		return nil, finalSQL, err
	}

	return &models.TextToSQLResult{
		Success:     true,
		SQL:         finalSQL,
		Rows:        queryResult.Rows,
		RowCount:    queryResult.RowCount,
		ExecutionMS: queryResult.Duration.Milliseconds(),
		Explanation: explanation,
	}, finalSQL, nil
}

// writeThrough stores a successful result in the cache. Best-effort; the
// cache logs and swallows its own failures.
func (s *textToSQLService) writeThrough(ctx context.Context, req *models.TextToSQLRequest, result *models.TextToSQLResult) {
	entry := &models.CacheEntry{
		Rows:         result.Rows,
		SQL:          result.SQL,
		ExecutionMS:  result.ExecutionMS,
		RowCount:     result.RowCount,
		CachedAt:     time.Now().UTC(),
		Query:        req.Query,
		Tables:       req.Tables,
		DatasourceID: req.Datasource.ID,
	}

	if req.ChartID != nil {
		// Repoint the identity so an older result for a changed chart
		// definition can never be served again.
		s.resultCache.OnChartModified(ctx, *req.ChartID, entry)
	} else {
		s.resultCache.Cache(ctx, entry, nil)
	}
}

func (s *textToSQLService) RefreshChart(ctx context.Context, chartID uuid.UUID, req *models.TextToSQLRequest) (*models.TextToSQLResult, error) {
	refreshReq := *req
	refreshReq.ChartID = &chartID
	refreshReq.ForceRefresh = true
	return s.GenerateAndExecute(ctx, &refreshReq)
}

func (s *textToSQLService) InvalidateChart(ctx context.Context, chartID uuid.UUID) {
	s.resultCache.InvalidateByIdentity(ctx, chartID)
}

// feedbackSQL picks the statement to show the model on the next attempt.
// Errors that carry the executed SQL win over the attempt's raw statement.
func feedbackSQL(err error, attemptSQL string) string {
	var execErr *apperrors.ExecutionError
	if errors.As(err, &execErr) && execErr.SQL != "" {
		return execErr.SQL
	}
	return attemptSQL
}

// entryMatchesRequest reports whether a cached entry was computed for this
// request's question, table set (order ignored), and datasource.
func entryMatchesRequest(entry *models.CacheEntry, req *models.TextToSQLRequest) bool {
	if entry.Query != req.Query || entry.DatasourceID != req.Datasource.ID {
		return false
	}
	if len(entry.Tables) != len(req.Tables) {
		return false
	}
	cached := append([]string(nil), entry.Tables...)
	requested := append([]string(nil), req.Tables...)
	sort.Strings(cached)
	sort.Strings(requested)
	for i := range cached {
		if cached[i] != requested[i] {
			return false
		}
	}
	return true
}

// resultFromCacheEntry converts a cache hit to a pipeline result.
func resultFromCacheEntry(entry *models.CacheEntry) *models.TextToSQLResult {
	return &models.TextToSQLResult{
		Success:     true,
		SQL:         entry.SQL,
		Rows:        entry.Rows,
		RowCount:    entry.RowCount,
		ExecutionMS: entry.ExecutionMS,
		Cached:      true,
	}
}

var _ TextToSQLService = (*textToSQLService)(nil)
