package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError maps an error from the service layer to an HTTP response using
// the shared error taxonomy.
func WriteError(w http.ResponseWriter, err error) error {
	var configErr *apperrors.ConfigError
	if errors.As(err, &configErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		return json.NewEncoder(w).Encode(map[string]any{
			"error":   "invalid_config",
			"message": configErr.Error(),
			"fields":  configErr.Fields,
		})
	}

	var unsafeErr *apperrors.UnsafeQueryError
	var contextErr *apperrors.ContextError
	var connErr *apperrors.ConnectionError
	var genErr *apperrors.GenerationError
	var execErr *apperrors.ExecutionError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrUnsupportedBackend):
		return ErrorResponse(w, http.StatusBadRequest, "unsupported_backend", err.Error())
	case errors.Is(err, apperrors.ErrCredentialsKeyMismatch):
		return ErrorResponse(w, http.StatusUnprocessableEntity, "credentials_key_mismatch", err.Error())
	case errors.As(err, &unsafeErr):
		return ErrorResponse(w, http.StatusUnprocessableEntity, "unsafe_query", err.Error())
	case errors.As(err, &contextErr):
		return ErrorResponse(w, http.StatusBadRequest, "context_error", err.Error())
	case errors.As(err, &connErr):
		return ErrorResponse(w, http.StatusBadGateway, "connection_error", err.Error())
	case errors.As(err, &genErr):
		return ErrorResponse(w, http.StatusBadGateway, "generation_error", err.Error())
	case errors.As(err, &execErr):
		return ErrorResponse(w, http.StatusUnprocessableEntity, "execution_error", err.Error())
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
