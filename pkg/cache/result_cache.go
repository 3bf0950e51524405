package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/models"
)

// ResultCache layers the two-tier key scheme over a Store: content keys
// hold full result entries, identity keys hold a pointer to a content key.
//
// Caching is best-effort everywhere. Store failures are logged and
// swallowed; a broken cache degrades to recomputation, never to a request
// failure.
type ResultCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultCache creates a ResultCache with the given default TTL. A TTL of
// zero or less disables storage entirely.
func NewResultCache(store Store, ttl time.Duration, logger *zap.Logger) *ResultCache {
	return &ResultCache{store: store, ttl: ttl, logger: logger.Named("cache")}
}

// Cache stores the entry under its content key, and when chartID is given,
// points the chart's identity key at it. The entry is written before the
// identity pointer so a reader never follows a pointer to a missing entry.
func (c *ResultCache) Cache(ctx context.Context, entry *models.CacheEntry, chartID *uuid.UUID) {
	contentKey := ContentKey(entry.SQL, entry.DatasourceID, entry.Tables)

	payload, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("marshal cache entry", zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, contentKey, payload, c.ttl); err != nil {
		c.logger.Warn("store cache entry", zap.String("key", contentKey), zap.Error(err))
		return
	}

	if chartID != nil {
		if err := c.store.Set(ctx, IdentityKey(*chartID), []byte(contentKey), c.ttl); err != nil {
			c.logger.Warn("store identity pointer",
				zap.String("chart_id", chartID.String()),
				zap.Error(err))
		}
	}
}

// GetByContent looks up a result by its content key. Returns nil on miss or
// on any store failure.
func (c *ResultCache) GetByContent(ctx context.Context, sqlQuery string, datasourceID uuid.UUID, tables []string) *models.CacheEntry {
	return c.load(ctx, ContentKey(sqlQuery, datasourceID, tables))
}

// GetByIdentity follows a chart's identity pointer to its cached result.
// Returns nil on miss at either tier or on any store failure.
func (c *ResultCache) GetByIdentity(ctx context.Context, chartID uuid.UUID) *models.CacheEntry {
	pointer, err := c.store.Get(ctx, IdentityKey(chartID))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("read identity pointer",
				zap.String("chart_id", chartID.String()),
				zap.Error(err))
		}
		return nil
	}
	return c.load(ctx, string(pointer))
}

// InvalidateByIdentity drops a chart's identity pointer and the content
// entry it points at.
func (c *ResultCache) InvalidateByIdentity(ctx context.Context, chartID uuid.UUID) {
	identityKey := IdentityKey(chartID)

	pointer, err := c.store.Get(ctx, identityKey)
	if err == nil {
		if err := c.store.Delete(ctx, string(pointer)); err != nil {
			c.logger.Warn("delete content entry", zap.Error(err))
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("read identity pointer", zap.Error(err))
	}

	if err := c.store.Delete(ctx, identityKey); err != nil {
		c.logger.Warn("delete identity pointer", zap.Error(err))
	}
}

// OnChartModified repoints a chart at a new result after its definition
// changed. The old content entry is dropped so a stale result cannot be
// served through either tier.
func (c *ResultCache) OnChartModified(ctx context.Context, chartID uuid.UUID, entry *models.CacheEntry) {
	c.InvalidateByIdentity(ctx, chartID)
	c.Cache(ctx, entry, &chartID)
}

// Refresh overwrites the content entry in place, keeping existing identity
// pointers valid. Used when a chart re-runs and produces fresh rows for the
// same SQL.
func (c *ResultCache) Refresh(ctx context.Context, entry *models.CacheEntry) {
	c.Cache(ctx, entry, nil)
}

// load reads and decodes one content entry.
func (c *ResultCache) load(ctx context.Context, contentKey string) *models.CacheEntry {
	payload, err := c.store.Get(ctx, contentKey)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("read cache entry", zap.String("key", contentKey), zap.Error(err))
		}
		return nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		c.logger.Warn("decode cache entry",
			zap.String("key", contentKey),
			zap.Error(fmt.Errorf("unmarshal: %w", err)))
		return nil
	}
	return &entry
}
