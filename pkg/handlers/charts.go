package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/models"
	"github.com/querysmith/querysmith-engine/pkg/services"
)

// ChartHandler manages the cache lifecycle of chart-linked results.
type ChartHandler struct {
	text2sql services.TextToSQLService
	logger   *zap.Logger
}

// NewChartHandler creates a new ChartHandler.
func NewChartHandler(text2sql services.TextToSQLService, logger *zap.Logger) *ChartHandler {
	return &ChartHandler{text2sql: text2sql, logger: logger}
}

// RegisterRoutes registers the chart handler's routes on the given mux.
func (h *ChartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/charts/{id}/invalidate", h.Invalidate)
	mux.HandleFunc("POST /api/charts/{id}/refresh", h.Refresh)
}

// Invalidate handles POST /api/charts/{id}/invalidate. Dropping an absent
// entry is not an error.
func (h *ChartHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	chartID, ok := h.parseChartID(w, r)
	if !ok {
		return
	}

	h.text2sql.InvalidateChart(r.Context(), chartID)
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "invalidated"}); err != nil {
		h.logger.Error("Failed to encode invalidate response", zap.Error(err))
	}
}

// Refresh handles POST /api/charts/{id}/refresh. The body is a
// models.TextToSQLRequest describing the chart's query; the result replaces
// whatever the chart's cache identity pointed at.
func (h *ChartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	chartID, ok := h.parseChartID(w, r)
	if !ok {
		return
	}

	var req models.TextToSQLRequest
	req.MaxRetries = -1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	result, err := h.text2sql.RefreshChart(r.Context(), chartID, &req)
	if err != nil {
		h.logger.Warn("chart refresh failed",
			zap.String("chart_id", chartID.String()),
			zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode refresh response", zap.Error(err))
	}
}

func (h *ChartHandler) parseChartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	chartID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_chart_id", "chart id must be a UUID")
		return uuid.Nil, false
	}
	return chartID, true
}
