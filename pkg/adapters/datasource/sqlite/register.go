package sqlite

import (
	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Connect to a local SQLite database file",
			Dialect:     "sqlite",
		},
		EngineFactory: func(config map[string]any) (datasource.Engine, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewEngine(cfg), nil
		},
		ValidateConfig: func(config map[string]any) []apperrors.FieldError {
			return ValidateConfig(config)
		},
	})
}
