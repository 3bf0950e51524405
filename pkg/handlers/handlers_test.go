package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/config"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// stubTextToSQL is a scriptable services.TextToSQLService.
type stubTextToSQL struct {
	result      *models.TextToSQLResult
	err         error
	invalidated []uuid.UUID
}

func (s *stubTextToSQL) GenerateAndExecute(ctx context.Context, req *models.TextToSQLRequest) (*models.TextToSQLResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubTextToSQL) RefreshChart(ctx context.Context, chartID uuid.UUID, req *models.TextToSQLRequest) (*models.TextToSQLResult, error) {
	return s.GenerateAndExecute(ctx, req)
}

func (s *stubTextToSQL) InvalidateChart(ctx context.Context, chartID uuid.UUID) {
	s.invalidated = append(s.invalidated, chartID)
}

func generateRequestBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(models.TextToSQLRequest{
		Query:  "how many orders?",
		Tables: []string{"public.orders"},
		Datasource: &models.Datasource{
			ID:             uuid.New(),
			DatasourceType: "postgres",
			Config:         map[string]any{"host": "db"},
		},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestQueryHandler_Generate(t *testing.T) {
	stub := &stubTextToSQL{result: &models.TextToSQLResult{
		Success:  true,
		SQL:      "SELECT * FROM (SELECT * FROM orders) AS _bounded LIMIT 1000",
		RowCount: 3,
	}}
	mux := http.NewServeMux()
	NewQueryHandler(stub, zap.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/query/generate", generateRequestBody(t))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result models.TextToSQLResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success || result.RowCount != 3 {
		t.Errorf("result = %+v", result)
	}
}

func TestQueryHandler_InvalidBody(t *testing.T) {
	mux := http.NewServeMux()
	NewQueryHandler(&stubTextToSQL{}, zap.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/query/generate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQueryHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsafe", &apperrors.UnsafeQueryError{Pattern: "drop"}, http.StatusUnprocessableEntity, "unsafe_query"},
		{"context", &apperrors.ContextError{Err: context.Canceled}, http.StatusBadRequest, "context_error"},
		{"connection", &apperrors.ConnectionError{Backend: "postgres"}, http.StatusBadGateway, "connection_error"},
		{"config", &apperrors.ConfigError{Fields: []apperrors.FieldError{{Field: "host"}}}, http.StatusBadRequest, "invalid_config"},
	}

	for _, tt := range tests {
		mux := http.NewServeMux()
		NewQueryHandler(&stubTextToSQL{err: tt.err}, zap.NewNop()).RegisterRoutes(mux)

		req := httptest.NewRequest(http.MethodPost, "/api/query/generate", generateRequestBody(t))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.wantStatus)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode error body: %v", tt.name, err)
		}
		if body["error"] != tt.wantCode {
			t.Errorf("%s: error code = %v, want %s", tt.name, body["error"], tt.wantCode)
		}
	}
}

func TestChartHandler_Invalidate(t *testing.T) {
	stub := &stubTextToSQL{}
	mux := http.NewServeMux()
	NewChartHandler(stub, zap.NewNop()).RegisterRoutes(mux)

	chartID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/charts/"+chartID.String()+"/invalidate", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(stub.invalidated) != 1 || stub.invalidated[0] != chartID {
		t.Errorf("invalidated = %v, want [%s]", stub.invalidated, chartID)
	}
}

func TestChartHandler_BadChartID(t *testing.T) {
	mux := http.NewServeMux()
	NewChartHandler(&stubTextToSQL{}, zap.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/charts/not-a-uuid/invalidate", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	cfg := &config.Config{Env: "test", Version: "1.2.3"}
	mux := http.NewServeMux()
	NewHealthHandler(cfg, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("health = (%d, %q)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	var ping PingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ping); err != nil {
		t.Fatalf("decode ping: %v", err)
	}
	if ping.Version != "1.2.3" || ping.Status != "ok" {
		t.Errorf("ping = %+v", ping)
	}
}
