// cmd/filter-manager/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"ai-list-filter/internal/bundles"
	"ai-list-filter/internal/common/auth"
	"ai-list-filter/internal/common/aws"
	"ai-list-filter/internal/common/camunda"
	"ai-list-filter/internal/common/config"
	"ai-list-filter/internal/common/database"
	"ai-list-filter/internal/common/llm"
	"ai-list-filter/internal/common/logger"
	"ai-list-filter/internal/common/observability"
	"ai-list-filter/internal/common/validation"
	"ai-list-filter/internal/datastore"
	"ai-list-filter/internal/server"
	"ai-list-filter/pkg/registry"

	cf "ai-list-filter/internal/workers/ai-filter/create-filter"
	dpii "ai-list-filter/internal/workers/ai-filter/detect-pii"
	dis "ai-list-filter/internal/workers/ai-filter/disambiguate"
	ec "ai-list-filter/internal/workers/ai-filter/extract-connections"
	ppf "ai-list-filter/internal/workers/ai-filter/parse-prompt-fields"
	rf "ai-list-filter/internal/workers/ai-filter/reshape-fields"
	rr "ai-list-filter/internal/workers/ai-filter/resolve-references"
	rp "ai-list-filter/internal/workers/ai-filter/rewrite-prompt"
	sp "ai-list-filter/internal/workers/ai-filter/summarize-prompt"
	sf "ai-list-filter/internal/workers/ai-filter/synthesize-filter"
)

// connectRetry is the backoff used for the datastores at startup.
var connectRetry = &camunda.RetryConfig{
	MaxRetries: 15,
	BaseDelay:  2 * time.Second,
	MaxDelay:   30 * time.Second,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting filter manager...", zap.String("mode", cfg.Pipeline.Mode))

	obs := observability.New("filter-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = camunda.RetryWithBackoff(ctx, connectRetry, log, "PostgreSQL connection", func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	})
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	store := datastore.NewPostgresStore(pg.DB, cfg.PostTypes, cfg.Database.Elasticsearch.MaxResults)
	searchers := rr.Searchers{Locations: store, Users: store, Posts: store}
	ready := map[string]func(ctx context.Context) error{
		"postgres": pg.Ping,
	}

	// --- Init Elasticsearch with retry ---
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = camunda.RetryWithBackoff(ctx, connectRetry, log, "Elasticsearch connection", func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		})
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		search := datastore.NewElasticsearchSearcher(
			esClient.Client,
			cfg.Database.Elasticsearch.LocationsIndex,
			cfg.Database.Elasticsearch.PostsIndex,
			cfg.Database.Elasticsearch.MaxResults,
		)
		searchers.Locations = search
		searchers.Posts = search
		ready["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init Redis with retry ---
	var dictionary datastore.Dictionary = store
	redis, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis client failed", zap.Error(err))
	}
	if redis != nil {
		err = camunda.RetryWithBackoff(ctx, connectRetry, log, "Redis connection", func() error {
			return redis.Ping(ctx)
		})
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		dictionary = datastore.NewCachedDictionary(store, redis.Client, config.GetDuration(cfg.PII.DictionaryCacheTTL), log)
		ready["redis"] = redis.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Pipeline stages ---
	bundleSet, err := bundles.Load(cfg.Pipeline.BundlesPath)
	if err != nil {
		zapLog.Fatal("bundles load failed", zap.Error(err))
	}
	llmClient := llm.NewClient(cfg.LLM, log)

	detector := dpii.NewHandler(dpii.NewConfig(cfg), dictionary, log)
	summarizer := sp.NewHandler(sp.NewConfig(cfg), llmClient, detector, log)

	var events cf.RunEvents
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		events = aws.NewRunEventPublisher(snsClient, cfg.Integrations.AWS.SNS.TopicARN, log)
		zapLog.Info("Run events published to SNS", zap.String("topicArn", cfg.Integrations.AWS.SNS.TopicARN))
	}

	pipeline := cf.NewHandler(cf.NewConfig(cfg), cf.Stages{
		Detector:      detector,
		Extractor:     ec.NewHandler(ec.NewConfig(cfg), llmClient, bundleSet.Connections, log),
		FieldParser:   ppf.NewHandler(ppf.NewConfig(cfg), llmClient, bundleSet.Fields, log),
		Resolver:      rr.NewHandler(rr.NewConfig(cfg), searchers, log),
		Disambiguator: dis.NewHandler(dis.NewConfig(cfg), log),
		Rewriter:      rp.NewHandler(rp.LoadConfig(), log),
		Synthesizer:   sf.NewHandler(sf.NewConfig(cfg), llmClient, bundleSet.Filters, log),
		Reshaper:      rf.NewHandler(rf.NewConfig(cfg), log),
	}, store, events, obs, log)

	// --- Job workers ---
	var (
		zeebe   *camunda.Client
		workers []worker.JobWorker
	)
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda), log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		ready["zeebe"] = zeebe.HealthCheck

		handlers := []struct {
			taskType string
			handle   camunda.HandlerFunc
		}{
			{dpii.TaskType, detector.Handle},
			{cf.TaskType, pipeline.Handle},
			{cf.SelectionsTaskType, pipeline.HandleSelections},
			{sp.TaskType, summarizer.Handle},
		}
		for _, h := range handlers {
			if w := camunda.StartWorker(zeebe.GetClient(), h.taskType, cfg.Workers[h.taskType], h.handle, log); w != nil {
				workers = append(workers, w)
			}
		}
		zapLog.Info("Job workers registered", zap.Int("count", len(workers)))
	}

	// --- HTTP API ---
	reg, err := registry.Default()
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		zapLog.Fatal("request schemas failed to compile", zap.Error(err))
	}

	deps := server.Dependencies{
		Pipeline:      pipeline,
		Summarizer:    summarizer,
		Modules:       datastore.NewModules(cfg.Modules, store),
		Validator:     validator,
		RequiredScope: cfg.Auth.RequiredScope,
		Ready:         ready,
	}
	if cfg.Auth.Enabled {
		deps.Tokens = auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
		)
	}

	srv := server.NewServer(cfg.Server, deps, log)
	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Filter manager stopped gracefully")
}
