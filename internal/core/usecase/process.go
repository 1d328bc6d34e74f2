package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

const persistTimeout = 30 * time.Second

type PipelineConfig struct {
	Instructions      string
	TotalTokens       int
	ChunkTargetChars  int
	ChunkCeilingChars int
	Enhancer          ChunkEnhancerConfig
	// DefaultContext applies to documents uploaded without their own priority context.
	DefaultContext domain.PriorityContext
	Now            func() time.Time
}

type ProcessDocumentUseCase struct {
	records     records
	segmenter   ports.Segmenter
	extraction  *ExtractionAdapter
	enhancer    ports.Enhancer
	classifier  *PriorityClassifier
	builder     *ChunkBuilder
	allocator   *BudgetAllocator
	chunks      *ChunkEnhancer
	reassembler *Reassembler
	projector   ports.AnalysisProjector
	observer    ports.PipelineObserver

	totalTokens    int
	defaultContext domain.PriorityContext
	now            func() time.Time
}

func NewProcessDocumentUseCase(
	store ports.KnowledgeStore,
	segmenter ports.Segmenter,
	extractor ports.KnowledgeExtractor,
	enhancer ports.Enhancer,
	cfg PipelineConfig,
) *ProcessDocumentUseCase {
	if cfg.TotalTokens <= 0 {
		cfg.TotalTokens = DefaultTotalTokens
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ProcessDocumentUseCase{
		records:        records{store: store},
		segmenter:      segmenter,
		extraction:     NewExtractionAdapter(extractor, cfg.Instructions),
		enhancer:       enhancer,
		classifier:     NewPriorityClassifier(),
		builder:        NewChunkBuilder(cfg.ChunkTargetChars, cfg.ChunkCeilingChars),
		allocator:      NewBudgetAllocator(),
		chunks:         NewChunkEnhancer(enhancer, cfg.Enhancer),
		reassembler:    NewReassembler(cfg.Now),
		totalTokens:    cfg.TotalTokens,
		defaultContext: cfg.DefaultContext,
		now:            cfg.Now,
	}
}

// WithProjector mirrors finished analyses into a secondary read model.
func (uc *ProcessDocumentUseCase) WithProjector(p ports.AnalysisProjector) *ProcessDocumentUseCase {
	uc.projector = p
	return uc
}

func (uc *ProcessDocumentUseCase) WithObserver(o ports.PipelineObserver) *ProcessDocumentUseCase {
	uc.observer = o
	return uc
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	started := uc.now()
	if err := uc.markRun(ctx, domain.ProcessingRun{DocumentID: documentID, Status: domain.StatusProcessing, StartedAt: &started}); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	// Persistence outlives cancellation so partial results are not lost.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	doc, result, tiers, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(persistCtx, documentID, &started, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.records.saveAnalysis(persistCtx, result); err != nil {
		if failErr := uc.markFailed(persistCtx, documentID, &started, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save analysis: %w", err)
	}

	finished := uc.now()
	ready := domain.ProcessingRun{
		DocumentID: documentID,
		Status:     domain.StatusReady,
		Note:       result.EnhancementNote,
		StartedAt:  &started,
		FinishedAt: &finished,
	}
	if err := uc.markRun(persistCtx, ready); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	if uc.projector != nil {
		if err := uc.projector.Project(persistCtx, *doc, result, tiers); err != nil {
			slog.Warn("analysis_projection_failed", "document_id", documentID, "error", err.Error())
		}
	}

	slog.Info("pipeline_run_finished",
		"document_id", documentID,
		"items", result.ItemCount(),
		"segments_analyzed", result.SegmentsAnalyzed,
		"segments_failed", result.SegmentsFailed,
		"note", result.EnhancementNote,
		"duration_ms", finished.Sub(started).Milliseconds(),
	)
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, domain.AnalysisResult, map[string]domain.PriorityTier, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, domain.AnalysisResult{}, nil, err
	}

	if err := uc.extraction.Precheck(ctx); err != nil {
		return nil, domain.AnalysisResult{}, nil, err
	}

	result, err := uc.extract(ctx, doc)
	if err != nil {
		return nil, domain.AnalysisResult{}, nil, err
	}

	// Extraction already succeeded; a late cancel must not discard it.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	pctx, err := uc.records.priorityContext(loadCtx, documentID, uc.defaultContext)
	cancel()
	if err != nil {
		return nil, domain.AnalysisResult{}, nil, fmt.Errorf("load priority context: %w", err)
	}

	items := result.Items()
	tiers := uc.classifier.Classify(items, pctx)
	chunks := uc.builder.Build(items, tiers)
	if len(chunks) == 0 {
		return doc, result, tiers, nil
	}

	budget, allocations := uc.allocator.Allocate(chunks, uc.totalTokens)
	slog.Debug("enhancement_budget_allocated",
		"document_id", documentID,
		"chunks", len(chunks),
		"allocated", budget.Allocated(),
		"total", budget.TotalTokens,
	)

	enhanced := uc.enhance(ctx, chunks, allocations)
	return doc, uc.reassembler.Reassemble(result, enhanced, uc.totalTokens), tiers, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.records.document(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

// extract runs the Extractor per segment in order. Only a failure of every
// segment aborts the run.
func (uc *ProcessDocumentUseCase) extract(ctx context.Context, doc *domain.Document) (domain.AnalysisResult, error) {
	segments := uc.segmenter.Segment(doc.ID, doc.RawContent)
	if uc.observer != nil {
		uc.observer.ObserveSegments(len(segments))
	}
	if len(segments) == 0 {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrInvalidInput, "segment document", errors.New("no substantive segments"))
	}

	parts := make([]domain.AnalysisResult, 0, len(segments))
	var lastErr error
	for _, segment := range segments {
		part, err := uc.extraction.ExtractSegment(ctx, *doc, segment)
		if err != nil {
			lastErr = err
			slog.Warn("segment_extract_failed",
				"document_id", doc.ID,
				"segment", segment.Index,
				"error", err.Error(),
			)
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return domain.AnalysisResult{}, fmt.Errorf("extract document: all %d segments failed: %w", len(segments), lastErr)
	}

	result := Synthesize(*doc, parts, uc.now())
	result.SegmentsAnalyzed = len(parts)
	result.SegmentsFailed = len(segments) - len(parts)
	return result, nil
}

// enhance degrades every chunk without calling out when the Enhancer pre-check
// fails. A canceled run skips the pre-check and EnhanceAll marks chunks canceled.
func (uc *ProcessDocumentUseCase) enhance(ctx context.Context, chunks []domain.EnhancementChunk, allocations map[string]int) []domain.EnhancedChunk {
	var enhanced []domain.EnhancedChunk
	if ctx.Err() != nil {
		slog.Warn("enhancement_canceled", "chunks", len(chunks))
		enhanced = uc.chunks.EnhanceAll(ctx, chunks, allocations)
	} else if err := uc.enhancer.Ping(ctx); err != nil {
		slog.Warn("enhancer_unavailable", "chunks", len(chunks), "error", err.Error())
		enhanced = make([]domain.EnhancedChunk, 0, len(chunks))
		for _, chunk := range chunks {
			enhanced = append(enhanced, domain.DegradedChunk(chunk, domain.DegradeUnavailable))
		}
	} else {
		enhanced = uc.chunks.EnhanceAll(ctx, chunks, allocations)
	}

	if uc.observer != nil {
		for _, ec := range enhanced {
			uc.observer.ObserveChunk(ec.Tier, ec.Degraded, ec.TokensConsumed)
		}
	}
	return enhanced
}

func (uc *ProcessDocumentUseCase) markRun(ctx context.Context, run domain.ProcessingRun) error {
	run.UpdatedAt = uc.now()
	return uc.records.saveRun(ctx, run)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, started *time.Time, processErr error) error {
	if processErr == nil {
		return nil
	}
	finished := uc.now()
	return uc.markRun(ctx, domain.ProcessingRun{
		DocumentID: documentID,
		Status:     domain.StatusFailed,
		Error:      RunErrorMessage(processErr),
		StartedAt:  started,
		FinishedAt: &finished,
	})
}

// RunErrorMessage is the user-visible text for a failed run.
func RunErrorMessage(err error) string {
	if domain.IsKind(err, domain.ErrServiceUnavailable) {
		return domain.MessageServiceUnavailable
	}
	return err.Error()
}
