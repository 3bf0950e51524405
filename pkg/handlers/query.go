package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/models"
	"github.com/querysmith/querysmith-engine/pkg/services"
)

// QueryHandler handles natural-language query generation requests.
type QueryHandler struct {
	text2sql services.TextToSQLService
	logger   *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(text2sql services.TextToSQLService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{text2sql: text2sql, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query/generate", h.Generate)
}

// Generate handles POST /api/query/generate. The body is a
// models.TextToSQLRequest; the response is a models.TextToSQLResult.
// An exhausted retry budget is a 200 with success=false, not an HTTP error.
func (h *QueryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.TextToSQLRequest
	req.MaxRetries = -1 // distinguish "absent" from an explicit 0
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	result, err := h.text2sql.GenerateAndExecute(r.Context(), &req)
	if err != nil {
		h.logger.Warn("generate failed", zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode generate response", zap.Error(err))
	}
}
