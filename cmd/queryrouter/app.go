package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/queryrouter/internal/auth"
	"github.com/af-corp/queryrouter/internal/catalog"
	"github.com/af-corp/queryrouter/internal/classifier"
	"github.com/af-corp/queryrouter/internal/config"
	"github.com/af-corp/queryrouter/internal/llm"
	"github.com/af-corp/queryrouter/internal/policy"
	"github.com/af-corp/queryrouter/internal/ratelimit"
	"github.com/af-corp/queryrouter/internal/router"
	"github.com/af-corp/queryrouter/internal/selector"
	"github.com/af-corp/queryrouter/internal/synth"
	"github.com/af-corp/queryrouter/internal/telemetry"
	"github.com/af-corp/queryrouter/internal/tools"
	"github.com/af-corp/queryrouter/internal/vectorstore"
)

// app is the fully wired service shared by every subcommand.
type app struct {
	logger   *slog.Logger
	loader   *config.Loader
	db       *pgxpool.Pool
	rdb      *redis.Client
	catalog  *catalog.Catalog
	metrics  *telemetry.Metrics
	policy   *policy.Evaluator
	router   *router.Router
	keyStore auth.KeyStore
	limiter  *ratelimit.Limiter
	quota    *ratelimit.DailyQuota
	closers  []func() error
}

func newApp(ctx context.Context, configDir string, reg prometheus.Registerer) (*app, error) {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	loader := config.NewLoader(configDir, bootLogger)
	if err := loader.Load(); err != nil {
		return nil, err
	}
	cfg := loader.Config()

	logger := newLogger(cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat)
	slog.SetDefault(logger)

	a := &app{logger: logger, loader: loader, metrics: telemetry.NewMetrics(reg)}

	if cfg.Database.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not reachable (catalog keeps file collections, auth will fail)", "error", err)
		} else {
			logger.Info("database connected")
		}
		a.db = pool
	}

	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable (quotas and key cache disabled)", "error", err)
			rdb.Close()
		} else {
			logger.Info("redis connected")
			a.rdb = rdb
			a.closers = append(a.closers, rdb.Close)
		}
	}
	a.limiter = ratelimit.NewLimiter(a.rdb)
	a.quota = ratelimit.NewDailyQuota(a.rdb)

	sources := []catalog.Source{catalog.NewStaticSource("file", loader.Collections)}
	if a.db != nil {
		sources = append(sources, catalog.NewPostgresSource(a.db))
	}
	a.catalog = catalog.New(logger, sources...)
	a.catalog.OnRefresh(func(snap *catalog.Snapshot, err error) {
		if err != nil {
			a.metrics.CatalogRefreshErrors.Inc()
		}
		a.metrics.CatalogCollections.Set(float64(snap.Len()))
	})
	if err := a.catalog.Refresh(ctx); err != nil {
		logger.Warn("initial catalog refresh incomplete", "error", err)
	}

	gen, err := llm.NewGenerator(cfg.Generation)
	if err != nil {
		a.Close()
		return nil, err
	}
	registry, err := a.buildTools(cfg, gen)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.policy = policy.NewEvaluator(func() config.PolicyConfig { return loader.Config().Policy })
	if cfg.Policy.Enabled {
		if err := a.policy.Load(); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.router = router.New(router.Deps{
		Catalog:    a.catalog,
		Classifier: classifier.New(cfg.Routing.MinOverlap),
		Selector:   selector.New(cfg.Routing.MinOverlap),
		Tools:      registry,
		Synth:      synth.New(gen),
		Policy:     a.policy,
		Metrics:    a.metrics,
		Config:     func() config.RoutingConfig { return loader.Config().Routing },
		Logger:     logger,
	})

	if cfg.Auth.Enabled {
		if a.db == nil {
			a.Close()
			return nil, fmt.Errorf("auth.enabled requires database.enabled")
		}
		a.keyStore = auth.NewCachedKeyStore(a.db, a.rdb)
	}

	loader.OnReload(a.reload)
	return a, nil
}

func (a *app) buildTools(cfg *config.Config, gen llm.Generator) (*tools.Registry, error) {
	registry := tools.NewRegistry(tools.NewCalculator(), tools.NewDirectResponder(gen))

	embedder, err := llm.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	store, err := a.buildVectorStore(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	registry.Register(tools.NewRetriever(embedder, store, cfg.VectorStore.TopK, cfg.VectorStore.MinScore))

	if cfg.WebSearch.Enabled {
		var quota tools.Quota
		if a.rdb != nil {
			tq := ratelimit.NewToolQuota(string(tools.KindWebSearch), a.limiter, a.quota,
				int64(cfg.WebSearch.RequestsPerMin), cfg.WebSearch.DailyQuota)
			tq.OnDeny(a.metrics.RecordRateLimitHit)
			quota = tq
		}
		registry.Register(tools.NewWebSearch(cfg.WebSearch, quota, a.logger))
	}
	return registry, nil
}

func (a *app) buildVectorStore(cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	var store vectorstore.Store
	switch cfg.Type {
	case "memory":
		store = vectorstore.NewMemory()
	case "qdrant", "":
		store = vectorstore.NewQdrant(vectorstore.QdrantConfig{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}

	if cfg.GRPCAddress != "" {
		h := vectorstore.NewGRPCHealth(cfg.GRPCAddress, "")
		if err := h.Connect(); err != nil {
			a.logger.Warn("grpc health checks disabled", "address", cfg.GRPCAddress, "error", err)
			return store, nil
		}
		a.closers = append(a.closers, h.Close)
		store = vectorstore.WithGRPCHealth(store, h)
	}
	return store, nil
}

// reload runs after the config directory changes.
func (a *app) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), a.loader.Config().Routing.Timeouts.Retriever)
	defer cancel()
	if err := a.catalog.Refresh(ctx); err != nil {
		a.logger.Error("catalog reload failed", "error", err)
	}

	if a.loader.Config().Policy.Enabled {
		if err := a.policy.Load(); err != nil {
			a.logger.Error("policy reload failed", "error", err)
		}
	}
	a.logger.Info("configuration reloaded", "collections", a.catalog.Snapshot().Len())
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}
