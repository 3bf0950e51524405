package postgres

import (
	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			Dialect:     "postgres",
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
