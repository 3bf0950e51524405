package mssql

import (
	"fmt"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Encrypt  string // "true", "false", "disable"
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultEncrypt returns the default encryption mode.
func DefaultEncrypt() string {
	return "true"
}

// FromMap creates a Config from a generic decrypted config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		Encrypt: DefaultEncrypt(),
	}

	if host, ok := config["host"].(string); ok {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := config["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := config["port"].(int); ok {
		cfg.Port = port
	}

	if user, ok := config["user"].(string); ok {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if encrypt, ok := config["encrypt"].(string); ok {
		cfg.Encrypt = encrypt
	}

	return cfg, nil
}

// ValidateConfig reports all structurally invalid fields at once.
func ValidateConfig(config map[string]any) []apperrors.FieldError {
	var errs []apperrors.FieldError

	if host, ok := config["host"].(string); !ok || host == "" {
		errs = append(errs, apperrors.FieldError{Field: "host", Message: "host is required"})
	}
	if user, ok := config["user"].(string); !ok || user == "" {
		errs = append(errs, apperrors.FieldError{Field: "user", Message: "user is required"})
	}
	if database, ok := config["database"].(string); !ok || database == "" {
		errs = append(errs, apperrors.FieldError{Field: "database", Message: "database is required"})
	}
	if port, present := config["port"]; present {
		switch port.(type) {
		case float64, int:
		default:
			errs = append(errs, apperrors.FieldError{Field: "port", Message: "port must be a number"})
		}
	}

	return errs
}
