// Package introspect assembles the schema context that grounds SQL
// generation: column detail for the user-selected tables plus a bounded
// sample of real rows.
package introspect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	"github.com/querysmith/querysmith-engine/pkg/apperrors"
	"github.com/querysmith/querysmith-engine/pkg/models"
)

// SchemaContext is the structured context handed to prompt building.
// Warnings record best-effort steps that failed without aborting the run.
type SchemaContext struct {
	Tables   []models.TableInfo
	Warnings []string
}

// Introspector builds schema context from a connected engine.
type Introspector interface {
	// BuildContext resolves column detail for each selected table and
	// attaches sample rows. A table that cannot be resolved is fatal;
	// sample failures degrade to a warning.
	BuildContext(ctx context.Context, engine datasource.Engine, tables []string) (*SchemaContext, error)
}

type introspector struct {
	sampleLimit int
	logger      *zap.Logger
}

// NewIntrospector creates an Introspector that fetches up to sampleLimit
// sample rows per table.
func NewIntrospector(sampleLimit int, logger *zap.Logger) Introspector {
	if sampleLimit <= 0 {
		sampleLimit = datasource.DefaultSampleLimit
	}
	return &introspector{sampleLimit: sampleLimit, logger: logger}
}

func (i *introspector) BuildContext(ctx context.Context, engine datasource.Engine, tables []string) (*SchemaContext, error) {
	if len(tables) == 0 {
		return nil, &apperrors.ContextError{Err: fmt.Errorf("no tables selected")}
	}

	schemaCtx := &SchemaContext{Tables: make([]models.TableInfo, 0, len(tables))}

	for _, qualifiedName := range tables {
		info, err := engine.GetTableSchema(ctx, qualifiedName)
		if err != nil {
			return nil, &apperrors.ContextError{
				Err: fmt.Errorf("resolve table %s: %w", qualifiedName, err),
			}
		}

		sample, err := engine.GetSampleData(ctx, qualifiedName, i.sampleLimit)
		if err != nil {
			// Samples are an enrichment; generation proceeds on structure alone.
			warning := fmt.Sprintf("no sample data for %s", qualifiedName)
			schemaCtx.Warnings = append(schemaCtx.Warnings, warning)
			i.logger.Warn("sample data unavailable",
				zap.String("table", qualifiedName),
				zap.Error(err))
		} else {
			info.SampleRows = sample
		}

		schemaCtx.Tables = append(schemaCtx.Tables, *info)
	}

	return schemaCtx, nil
}

var _ Introspector = (*introspector)(nil)
