package datasource

import (
	"fmt"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

// EngineFactory creates engines from the registry.
type EngineFactory interface {
	// CreateEngine returns a constructed, not-yet-connected engine for the
	// datasource type. Unknown types fail with apperrors.ErrUnsupportedBackend.
	CreateEngine(dsType string, config map[string]any) (Engine, error)

	// ValidateConfig performs structural validation and returns all
	// field-level errors rather than failing on the first.
	ValidateConfig(dsType string, config map[string]any) []apperrors.FieldError

	// ListTypes returns info for all registered engine types.
	ListTypes() []AdapterInfo
}

type registryFactory struct{}

// NewEngineFactory returns a factory backed by the global registry.
func NewEngineFactory() EngineFactory {
	return &registryFactory{}
}

func (f *registryFactory) CreateEngine(dsType string, config map[string]any) (Engine, error) {
	reg, ok := getRegistration(dsType)
	if !ok {
		return nil, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedBackend, dsType)
	}
	return reg.EngineFactory(config)
}

func (f *registryFactory) ValidateConfig(dsType string, config map[string]any) []apperrors.FieldError {
	reg, ok := getRegistration(dsType)
	if !ok {
		return []apperrors.FieldError{{
			Field:   "datasource_type",
			Message: fmt.Sprintf("unsupported datasource type: %s", dsType),
		}}
	}
	return reg.ValidateConfig(config)
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements EngineFactory at compile time.
var _ EngineFactory = (*registryFactory)(nil)
