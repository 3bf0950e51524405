package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/querysmith/querysmith-engine/pkg/adapters/datasource"
	_ "github.com/querysmith/querysmith-engine/pkg/adapters/datasource/mssql"
	_ "github.com/querysmith/querysmith-engine/pkg/adapters/datasource/mysql"
	_ "github.com/querysmith/querysmith-engine/pkg/adapters/datasource/postgres"
	_ "github.com/querysmith/querysmith-engine/pkg/adapters/datasource/sqlite"
	"github.com/querysmith/querysmith-engine/pkg/cache"
	"github.com/querysmith/querysmith-engine/pkg/config"
	"github.com/querysmith/querysmith-engine/pkg/crypto"
	"github.com/querysmith/querysmith-engine/pkg/handlers"
	"github.com/querysmith/querysmith-engine/pkg/introspect"
	"github.com/querysmith/querysmith-engine/pkg/llm"
	"github.com/querysmith/querysmith-engine/pkg/logging"
	"github.com/querysmith/querysmith-engine/pkg/retry"
	"github.com/querysmith/querysmith-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("default_provider", cfg.AI.DefaultProvider))

	store := newCacheStore(cfg, logger)
	resultCache := cache.NewResultCache(store,
		time.Duration(cfg.Query.CacheTTLMinutes)*time.Minute, logger)

	var encryptor *crypto.CredentialEncryptor
	if cfg.CredentialsKey != "" {
		encryptor, err = crypto.NewCredentialEncryptor(cfg.CredentialsKey)
		if err != nil {
			logger.Fatal("invalid credentials key", zap.Error(err))
		}
	} else {
		logger.Warn("CREDENTIALS_KEY not set; encrypted datasource configs will be rejected")
	}

	registry, err := llm.NewRegistry(&cfg.AI, logger)
	if err != nil {
		logger.Fatal("configure completion providers", zap.Error(err))
	}

	factory := datasource.NewEngineFactory()
	datasourceService := services.NewDatasourceService(factory, encryptor, logger)
	schemaService := services.NewSchemaService(datasourceService, logger)
	introspector := introspect.NewIntrospector(cfg.Query.SampleRows, logger)
	text2sqlService := services.NewTextToSQLService(
		datasourceService, introspector, registry, resultCache, &cfg.Query, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(text2sqlService, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(schemaService, datasourceService, logger).RegisterRoutes(mux)
	handlers.NewChartHandler(text2sqlService, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("starting querysmith-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// newCacheStore connects to Redis when configured, retrying transient dial
// failures, and falls back to the in-process store otherwise.
func newCacheStore(cfg *config.Config, logger *zap.Logger) cache.Store {
	if cfg.Redis.Host == "" {
		logger.Info("redis not configured, using in-memory result cache")
		return cache.NewMemoryStore()
	}

	ctx := context.Background()
	client, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*redis.Client, error) {
		return cache.NewRedisClient(ctx, &cfg.Redis)
	})
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory result cache",
			zap.String("addr", cfg.Redis.Addr()),
			zap.Error(err))
		return cache.NewMemoryStore()
	}

	logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr()))
	return cache.NewRedisStore(client)
}
