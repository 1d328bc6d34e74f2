package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/llm/analyzer"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/llm/openrouter"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/resilience"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/storage/memory"
	pgstore "github.com/kirillkom/coaching-kb/internal/infrastructure/storage/postgres"
	s3store "github.com/kirillkom/coaching-kb/internal/infrastructure/storage/s3"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/storage/sqlite"
)

func newExecutor(cfg config.Config, observer resilience.Observer) *resilience.Executor {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ServiceRetryMaxAttempts
	rc.AttemptTimeout = cfg.ServiceAttemptTimeout
	rc.BreakerEnabled = cfg.ServiceBreakerEnabled
	rc.RateLimitBackoff = cfg.ServiceRateLimitWait
	return resilience.NewExecutor(rc).WithObserver(observer)
}

func newKnowledgeStore(ctx context.Context, cfg config.Config) (ports.KnowledgeStore, func(), error) {
	switch cfg.KnowledgeStore {
	case "", "localfs":
		store, err := localfs.New(cfg.StoragePath)
		return store, nil, err
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		db, err := pgstore.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store := pgstore.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, func() { _ = db.Close() }, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLiteDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "s3":
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		return store, nil, err
	default:
		return nil, nil, fmt.Errorf("unknown KNOWLEDGE_STORE %q", cfg.KnowledgeStore)
	}
}

func newKnowledgeExtractor(cfg config.Config, executor *resilience.Executor) (ports.KnowledgeExtractor, error) {
	switch cfg.ExtractorBackend {
	case "", "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
			Timeout:  cfg.ServiceRequestTimeout,
			Executor: executor,
		})
		return ollama.NewExtractor(client), nil
	case "http":
		return analyzer.New(cfg.ExtractorURL, analyzer.Options{
			APIKey:   cfg.ExtractorAPIKey,
			Timeout:  cfg.ServiceRequestTimeout,
			Executor: executor,
		}), nil
	default:
		return nil, fmt.Errorf("unknown EXTRACTOR_BACKEND %q", cfg.ExtractorBackend)
	}
}

func newEnhancer(cfg config.Config, executor *resilience.Executor) (ports.Enhancer, error) {
	switch cfg.EnhancerBackend {
	case "", "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaEnhModel, ollama.Options{
			Timeout:  cfg.ServiceRequestTimeout,
			Executor: executor,
		})
		return ollama.NewEnhancer(client), nil
	case "openrouter":
		return openrouter.New(cfg.OpenRouterURL, cfg.OpenRouterModel, openrouter.Options{
			APIKey:   cfg.OpenRouterAPIKey,
			Timeout:  cfg.ServiceRequestTimeout,
			Executor: executor,
			Title:    "coaching-kb",
		}), nil
	default:
		return nil, fmt.Errorf("unknown ENHANCER_BACKEND %q", cfg.EnhancerBackend)
	}
}
