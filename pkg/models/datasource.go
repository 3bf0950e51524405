package models

import (
	"github.com/google/uuid"
)

// Datasource identifies an external database connection together with its
// configuration. Callers supply either Config in the clear or
// EncryptedConfig as produced by the credential encryptor; decrypted config
// travels only as far as the engine adapter and is never logged.
type Datasource struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name,omitempty"`
	DatasourceType string         `json:"datasource_type"` // "postgres", "mysql", "mssql", "sqlite"
	Config         map[string]any `json:"config,omitempty"`
	// EncryptedConfig is the AES-GCM sealed JSON config. Takes precedence
	// over Config when both are set.
	EncryptedConfig string `json:"encrypted_config,omitempty"`
}
