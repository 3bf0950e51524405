package models

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry is the stored value behind a content cache key. The entry is
// fully constructed before any key pointing at it becomes visible.
type CacheEntry struct {
	Rows         []map[string]any `json:"rows"`
	SQL          string           `json:"sql"` // exact SQL as executed
	ExecutionMS  int64            `json:"execution_ms"`
	RowCount     int              `json:"row_count"`
	CachedAt     time.Time        `json:"cached_at"`
	Query        string           `json:"query"` // originating natural-language query
	Tables       []string         `json:"tables"`
	DatasourceID uuid.UUID        `json:"datasource_id"`
}
