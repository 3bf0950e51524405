package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/models"
	"github.com/querysmith/querysmith-engine/pkg/services"
	"github.com/querysmith/querysmith-engine/pkg/sqlguard"
)

// SchemaHandler exposes datasource introspection endpoints. Datasource
// configs arrive in the request body because this service holds no
// datasource registry of its own.
type SchemaHandler struct {
	schemas     services.SchemaService
	datasources services.DatasourceService
	logger      *zap.Logger
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(
	schemas services.SchemaService,
	datasources services.DatasourceService,
	logger *zap.Logger,
) *SchemaHandler {
	return &SchemaHandler{schemas: schemas, datasources: datasources, logger: logger}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/datasources/schema", h.GetSchema)
	mux.HandleFunc("POST /api/datasources/tables/{schema}/{table}", h.GetTableDetails)
	mux.HandleFunc("POST /api/datasources/test", h.TestConnection)
	mux.HandleFunc("GET /api/datasources/types", h.ListTypes)
}

// GetSchema handles POST /api/datasources/schema.
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.decodeDatasource(w, r)
	if !ok {
		return
	}

	info, err := h.schemas.GetSchema(r.Context(), ds)
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, info); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}

// GetTableDetails handles POST /api/datasources/tables/{schema}/{table}.
// The path identifiers are user input, so they go through injection
// screening before reaching any adapter.
func (h *SchemaHandler) GetTableDetails(w http.ResponseWriter, r *http.Request) {
	schemaName := r.PathValue("schema")
	tableName := r.PathValue("table")

	if err := sqlguard.CheckIdentifier("schema", schemaName); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_identifier", err.Error())
		return
	}
	if err := sqlguard.CheckIdentifier("table", tableName); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_identifier", err.Error())
		return
	}

	ds, ok := h.decodeDatasource(w, r)
	if !ok {
		return
	}

	info, err := h.schemas.GetTableDetails(r.Context(), ds, schemaName+"."+tableName, 0)
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, info); err != nil {
		h.logger.Error("Failed to encode table response", zap.Error(err))
	}
}

// TestConnection handles POST /api/datasources/test.
func (h *SchemaHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.decodeDatasource(w, r)
	if !ok {
		return
	}

	result := h.datasources.TestConnection(r.Context(), ds)
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode test response", zap.Error(err))
	}
}

// ListTypes handles GET /api/datasources/types.
func (h *SchemaHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, h.datasources.ListAdapterTypes()); err != nil {
		h.logger.Error("Failed to encode types response", zap.Error(err))
	}
}

func (h *SchemaHandler) decodeDatasource(w http.ResponseWriter, r *http.Request) (*models.Datasource, bool) {
	var body struct {
		Datasource *models.Datasource `json:"datasource"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Datasource == nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must include a datasource")
		return nil, false
	}
	return body.Datasource, true
}
