package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/crypto"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// DatasourceService resolves datasource credentials and builds engines.
type DatasourceService interface {
	// ResolveConfig returns the decrypted config map for a datasource,
	// decrypting EncryptedConfig when present.
	ResolveConfig(ds *models.Datasource) (map[string]any, error)

	// CreateEngine resolves credentials, validates structure, and returns a
	// constructed engine for the datasource.
	CreateEngine(ds *models.Datasource) (datasource.Engine, error)

	// TestConnection probes connectivity without keeping a connection open.
	TestConnection(ctx context.Context, ds *models.Datasource) *datasource.ConnectionTestResult

	// ListAdapterTypes returns all compiled-in adapter types.
	ListAdapterTypes() []datasource.AdapterInfo
}

type datasourceService struct {
	factory   datasource.EngineFactory
	encryptor *crypto.CredentialEncryptor
	logger    *zap.Logger
}

// NewDatasourceService creates a datasource service. The encryptor may be
// nil when credential encryption is not configured; encrypted configs are
// then rejected.
func NewDatasourceService(
	factory datasource.EngineFactory,
	encryptor *crypto.CredentialEncryptor,
	logger *zap.Logger,
) DatasourceService {
	return &datasourceService{
		factory:   factory,
		encryptor: encryptor,
		logger:    logger,
	}
}

func (s *datasourceService) ResolveConfig(ds *models.Datasource) (map[string]any, error) {
	if ds.EncryptedConfig == "" {
		if ds.Config == nil {
			return nil, &apperrors.ConfigError{Fields: []apperrors.FieldError{
				{Field: "config", Message: "config or encrypted_config is required"},
			}}
		}
		return ds.Config, nil
	}

	if s.encryptor == nil {
		return nil, fmt.Errorf("encrypted config given but no credentials key configured")
	}

	plaintext, err := s.encryptor.Decrypt(ds.EncryptedConfig)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, apperrors.ErrCredentialsKeyMismatch
		}
		return nil, fmt.Errorf("decrypt datasource config: %w", err)
	}

	var config map[string]any
	if err := json.Unmarshal([]byte(plaintext), &config); err != nil {
		return nil, &apperrors.ConfigError{Fields: []apperrors.FieldError{
			{Field: "encrypted_config", Message: "decrypted config is not a JSON object"},
		}}
	}
	return config, nil
}

func (s *datasourceService) CreateEngine(ds *models.Datasource) (datasource.Engine, error) {
	config, err := s.ResolveConfig(ds)
	if err != nil {
		return nil, err
	}

	if fieldErrs := s.factory.ValidateConfig(ds.DatasourceType, config); len(fieldErrs) > 0 {
		return nil, &apperrors.ConfigError{Fields: fieldErrs}
	}

	return s.factory.CreateEngine(ds.DatasourceType, config)
}

func (s *datasourceService) TestConnection(ctx context.Context, ds *models.Datasource) *datasource.ConnectionTestResult {
	engine, err := s.CreateEngine(ds)
	if err != nil {
		return &datasource.ConnectionTestResult{Success: false, Message: err.Error()}
	}
	defer engine.Disconnect()

	result := engine.TestConnection(ctx)
	s.logger.Info("connection test",
		zap.String("datasource_type", ds.DatasourceType),
		zap.Bool("success", result.Success),
		zap.Duration("latency", result.Latency))
	return result
}

func (s *datasourceService) ListAdapterTypes() []datasource.AdapterInfo {
	return s.factory.ListTypes()
}

var _ DatasourceService = (*datasourceService)(nil)
