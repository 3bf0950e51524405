package models

import (
	"github.com/google/uuid"
)

// TextToSQLRequest describes one natural-language query against a datasource.
type TextToSQLRequest struct {
	// Query is the natural-language question.
	Query string `json:"query"`
	// Tables are schema-qualified table names the user selected as context.
	Tables []string `json:"tables"`
	// Datasource carries identity plus decrypted connection config.
	Datasource *Datasource `json:"datasource"`
	// Provider selects the completion provider ("openai", "anthropic").
	// Empty means the server default.
	Provider string `json:"provider,omitempty"`
	// Model overrides the provider's default model when non-empty.
	Model string `json:"model,omitempty"`
	// MaxRetries bounds regeneration attempts after a failure. Negative
	// means the server default.
	MaxRetries int `json:"max_retries,omitempty"`
	// ChartID links the result to a chart for identity-keyed caching.
	ChartID *uuid.UUID `json:"chart_id,omitempty"`
	// ForceRefresh bypasses the cache read (the result is still written back).
	ForceRefresh bool `json:"force_refresh,omitempty"`
}

// TextToSQLResult is the outcome of one generate-screen-execute pipeline run.
// On failure no partial rows are ever included.
type TextToSQLResult struct {
	Success bool `json:"success"`
	// SQL is the final statement as executed (after safeguards).
	SQL         string           `json:"sql,omitempty"`
	Rows        []map[string]any `json:"rows,omitempty"`
	RowCount    int              `json:"row_count"`
	ExecutionMS int64            `json:"execution_ms"`
	// RetryCount is the number of retries actually consumed (0 = first try).
	RetryCount int `json:"retry_count"`
	// Explanation is the model's natural-language explanation, best effort.
	Explanation string `json:"explanation,omitempty"`
	Error       string `json:"error,omitempty"`
	// Cached is true when the result was served from the result cache.
	Cached bool `json:"cached"`
}
