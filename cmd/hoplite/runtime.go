package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hoplite-search/hoplite"
	"github.com/hoplite-search/hoplite/internal/cache"
	"github.com/hoplite-search/hoplite/internal/config"
	"github.com/hoplite-search/hoplite/internal/duckduckgo"
	"github.com/hoplite-search/hoplite/internal/intent"
	"github.com/hoplite-search/hoplite/internal/orchestrator"
	"github.com/hoplite-search/hoplite/internal/rerank"
	"github.com/hoplite-search/hoplite/internal/search"
	"github.com/hoplite-search/hoplite/internal/tools"
)

// app bundles everything a subcommand needs, wired once from config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	service  *search.Service
	runtime  *hoplite.Runtime
	snapshot *cache.SnapshotStore
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	semanticCache := cache.New(
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithTTLOverrides(cfg.IntentTTLs()),
	)

	var snapshot *cache.SnapshotStore
	if cfg.Cache.SnapshotPath != "" {
		snapshot = cache.NewSnapshotStore(cfg.Cache.SnapshotPath, logger)
		if err := snapshot.Load(semanticCache); err != nil {
			logger.Warn("cache snapshot not restored", zap.Error(err))
		}
	}

	clientOptions := []duckduckgo.ClientOption{
		duckduckgo.WithLogger(logger),
		duckduckgo.WithRateLimit(cfg.Fetch.RequestsPerSec, cfg.Fetch.Burst),
	}
	if cfg.Fetch.Timeout > 0 {
		clientOptions = append(clientOptions, duckduckgo.WithHTTPClient(&http.Client{Timeout: cfg.Fetch.Timeout}))
	}
	if cfg.Fetch.Endpoint != "" {
		clientOptions = append(clientOptions, duckduckgo.WithEndpoint(cfg.Fetch.Endpoint))
	}
	if cfg.Fetch.UserAgent != "" {
		clientOptions = append(clientOptions, duckduckgo.WithUserAgent(cfg.Fetch.UserAgent))
	}
	client := duckduckgo.NewClient(clientOptions...)

	service := search.NewService(semanticCache, client,
		search.WithClassifier(intent.NewClassifier()),
		search.WithReranker(rerank.NewReranker()),
		search.WithLogger(logger),
	)

	registry := tools.SetupTools(tools.Deps{
		Searcher: service,
		Pages:    client,
	})

	executor := orchestrator.New(registry, orchestrator.WithLogger(logger))

	runtimeConfig := hoplite.DefaultConfig()
	if cfg.Research.ExecutionTimeout > 0 {
		runtimeConfig.ExecutionTimeout = cfg.Research.ExecutionTimeout
	}
	if cfg.Research.DetailCount > 0 {
		runtimeConfig.DetailCount = cfg.Research.DetailCount
	}
	if cfg.Research.SummaryLength > 0 {
		runtimeConfig.SummaryLength = cfg.Research.SummaryLength
	}
	runtimeConfig.EventBusBufferSize = cfg.EventBus.BufferSize
	runtimeConfig.EventBusWorkerCount = cfg.EventBus.WorkerCount
	runtimeConfig.EnableEventBus = cfg.EventBus.Enabled

	runtime, err := hoplite.New(
		hoplite.WithConfig(runtimeConfig),
		hoplite.WithSearcher(service),
		hoplite.WithExecutor(executor),
		hoplite.WithTools(registry),
		hoplite.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		service:  service,
		runtime:  runtime,
		snapshot: snapshot,
	}, nil
}

// close persists the cache snapshot when configured and flushes the logger.
func (a *app) close() {
	if a.snapshot != nil {
		if err := a.service.Snapshot(a.snapshot); err != nil {
			a.logger.Warn("cache snapshot not saved", zap.Error(err))
		}
	}
	_ = a.runtime.Close()
	_ = a.logger.Sync()
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, hoplite.NewConfigurationError("invalid log level: "+level, err)
		}
		cfg.Level = parsed
	}
	return cfg.Build()
}
