package sqlite

import (
	"fmt"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

// Config contains SQLite-specific connection options.
type Config struct {
	Path string // file path, or ":memory:" for an in-memory database
}

// FromMap creates a Config from a generic decrypted config map.
func FromMap(config map[string]any) (*Config, error) {
	path, ok := config["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return &Config{Path: path}, nil
}

// ValidateConfig reports all structurally invalid fields at once.
func ValidateConfig(config map[string]any) []apperrors.FieldError {
	var errs []apperrors.FieldError

	if path, ok := config["path"].(string); !ok || path == "" {
		errs = append(errs, apperrors.FieldError{Field: "path", Message: "path is required"})
	}

	return errs
}
