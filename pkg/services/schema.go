package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// SchemaService exposes datasource introspection to the API surface.
type SchemaService interface {
	// GetSchema returns every schema and table visible to the datasource's
	// credentials.
	GetSchema(ctx context.Context, ds *models.Datasource) (*datasource.SchemaInfo, error)

	// GetTableDetails returns full column detail plus a sample for one table.
	GetTableDetails(ctx context.Context, ds *models.Datasource, qualifiedName string, sampleLimit int) (*models.TableInfo, error)
}

type schemaService struct {
	datasources DatasourceService
	logger      *zap.Logger
}

// NewSchemaService creates a schema service.
func NewSchemaService(datasources DatasourceService, logger *zap.Logger) SchemaService {
	return &schemaService{datasources: datasources, logger: logger}
}

func (s *schemaService) GetSchema(ctx context.Context, ds *models.Datasource) (*datasource.SchemaInfo, error) {
	engine, err := s.datasources.CreateEngine(ds)
	if err != nil {
		return nil, err
	}
	defer engine.Disconnect()

	if err := engine.Connect(ctx); err != nil {
		return nil, err
	}

	info, err := engine.GetSchema(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("schema introspected",
		zap.String("datasource_type", ds.DatasourceType),
		zap.Int("tables", len(info.Tables)))
	return info, nil
}

func (s *schemaService) GetTableDetails(ctx context.Context, ds *models.Datasource, qualifiedName string, sampleLimit int) (*models.TableInfo, error) {
	engine, err := s.datasources.CreateEngine(ds)
	if err != nil {
		return nil, err
	}
	defer engine.Disconnect()

	if err := engine.Connect(ctx); err != nil {
		return nil, err
	}

	info, err := engine.GetTableSchema(ctx, qualifiedName)
	if err != nil {
		return nil, err
	}

	// Samples are best-effort; a preview failure should not hide the table.
	if sample, err := engine.GetSampleData(ctx, qualifiedName, sampleLimit); err == nil {
		info.SampleRows = sample
	} else {
		s.logger.Warn("sample data unavailable",
			zap.String("table", qualifiedName),
			zap.Error(err))
	}

	return info, nil
}

var _ SchemaService = (*schemaService)(nil)
