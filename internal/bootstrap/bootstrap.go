package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
	"github.com/kirillkom/coaching-kb/internal/core/usecase"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/chunking"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/extractor"
	graphneo4j "github.com/kirillkom/coaching-kb/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/llm/schema"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/queue/inline"
	natsqueue "github.com/kirillkom/coaching-kb/internal/infrastructure/queue/nats"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/resilience"
)

type Options struct {
	// Inline runs the pipeline inside Upload instead of publishing to NATS.
	Inline             bool
	PipelineObserver   ports.PipelineObserver
	SuggestionObserver ports.SuggestionObserver
	ResilienceObserver resilience.Observer
}

type App struct {
	Config config.Config

	Store       ports.KnowledgeStore
	Queue       ports.MessageQueue
	Suggestions ports.SuggestionBus

	IngestUC    ports.DocumentIngestor
	ProcessUC   ports.DocumentProcessor
	KnowledgeUC ports.KnowledgeReader
	Dedup       *usecase.SuggestionRouter

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	store, closeStore, err := newKnowledgeStore(ctx, cfg)
	if err != nil {
		return app, fmt.Errorf("init knowledge store: %w", err)
	}
	app.Store = store
	app.onClose(closeStore)

	defaultContext, err := config.LoadPriorityContext(cfg)
	if err != nil {
		return app, fmt.Errorf("load priority context: %w", err)
	}
	instructions, err := schema.Instructions()
	if err != nil {
		return app, fmt.Errorf("build extraction instructions: %w", err)
	}

	executor := newExecutor(cfg, opts.ResilienceObserver)
	knowledgeExtractor, err := newKnowledgeExtractor(cfg, executor)
	if err != nil {
		return app, err
	}
	enhancer, err := newEnhancer(cfg, executor)
	if err != nil {
		return app, err
	}

	process := usecase.NewProcessDocumentUseCase(
		store,
		chunking.NewSegmenter(cfg.SegmentMaxChars, cfg.SegmentLookbackChars, cfg.SegmentMinChars),
		knowledgeExtractor,
		enhancer,
		usecase.PipelineConfig{
			Instructions:      instructions,
			TotalTokens:       cfg.EnhanceTotalTokens,
			ChunkTargetChars:  cfg.EnhanceChunkTargetChars,
			ChunkCeilingChars: cfg.EnhanceChunkCeilingChars,
			Enhancer: usecase.ChunkEnhancerConfig{
				Concurrency:       cfg.EnhanceConcurrency,
				RequestsPerSecond: cfg.EnhanceRPS,
			},
			DefaultContext: defaultContext,
		},
	)
	if opts.PipelineObserver != nil {
		process.WithObserver(opts.PipelineObserver)
	}
	if cfg.Neo4jURI != "" {
		projector, err := graphneo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return app, fmt.Errorf("init neo4j projector: %w", err)
		}
		process.WithProjector(projector)
		app.onClose(func() { _ = projector.Close(context.Background()) })
	}
	app.ProcessUC = process

	if opts.Inline {
		q := inline.New()
		q.Bind(func(ctx context.Context, documentID string) error {
			// The run record carries the failure; Upload still succeeds.
			if err := process.ProcessByID(ctx, documentID); err != nil {
				slog.Warn("inline_pipeline_failed", "document_id", documentID, "error", err.Error())
			}
			return nil
		})
		app.Queue = q
		app.onClose(q.Close)
	} else {
		q, err := natsqueue.NewWithOptions(cfg.NATSURL, natsqueue.Subjects{
			DocumentIngested:    cfg.NATSSubject,
			Suggestions:         cfg.NATSSuggestionSubject,
			AcceptedSuggestions: cfg.NATSAcceptedSubject,
		}, natsqueue.Options{ResilienceExecutor: executor})
		if err != nil {
			return app, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = q
		app.Suggestions = q
		app.onClose(q.Close)
	}

	app.IngestUC = usecase.NewIngestDocumentUseCase(store, extractor.NewRouter(), app.Queue)
	app.KnowledgeUC = usecase.NewKnowledgeUseCase(store)

	app.Dedup = usecase.NewSuggestionRouter(usecase.DedupConfig{
		RecentWindow:   cfg.DedupRecentWindow,
		ActiveWindow:   cfg.DedupActiveWindow,
		SubstringChars: cfg.DedupSubstringChars,
		SharedPhrases:  cfg.DedupSharedPhrases,
	}, cfg.DedupStreamIdle, nil)
	if opts.SuggestionObserver != nil {
		app.Dedup.WithObserver(opts.SuggestionObserver)
	}

	slog.Info("bootstrap_ready",
		"knowledge_store", cfg.KnowledgeStore,
		"extractor_backend", cfg.ExtractorBackend,
		"enhancer_backend", cfg.EnhancerBackend,
		"inline", opts.Inline,
		"graph_projection", cfg.Neo4jURI != "",
	)
	return app, nil
}

func (a *App) onClose(fn func()) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
