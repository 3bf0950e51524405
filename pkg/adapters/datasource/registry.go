package datasource

import (
	"sync"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

// AdapterInfo describes a registered engine for UI discovery.
type AdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "mysql", "sqlserver", "sqlite"
	DisplayName string `json:"display_name"` // "PostgreSQL", "MySQL"
	Description string `json:"description"`
	Dialect     string `json:"dialect"` // safeguard dialect tag
}

// AdapterRegistration contains info plus constructors for one backend.
type AdapterRegistration struct {
	Info AdapterInfo

	// EngineFactory builds an engine from a decrypted config map. The
	// engine is constructed but not yet connected.
	EngineFactory func(config map[string]any) (Engine, error)

	// ValidateConfig performs structural validation independent of any
	// network call, returning all field-level problems at once.
	ValidateConfig func(config map[string]any) []apperrors.FieldError
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered engines.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

func getRegistration(dsType string) (AdapterRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[dsType]
	return reg, ok
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	_, ok := getRegistration(dsType)
	return ok
}
