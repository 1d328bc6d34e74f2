package ports

import (
	"context"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

// KnowledgeStore persists opaque blobs under stable keys.
type KnowledgeStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// SuggestionBus carries the live coaching suggestion stream.
type SuggestionBus interface {
	SubscribeSuggestions(ctx context.Context, handler func(context.Context, domain.Suggestion) error) error
	PublishAcceptedSuggestion(ctx context.Context, suggestion domain.Suggestion) error
}

// TextExtractor decodes an uploaded file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, raw []byte) (string, error)
}

// Segmenter splits raw document text into bounded segments.
type Segmenter interface {
	Segment(documentID, text string) []domain.Segment
}

// KnowledgeExtractor is the external service turning text into structured knowledge.
type KnowledgeExtractor interface {
	Analyze(ctx context.Context, content, instructions string) (domain.ExtractionResponse, error)
	Ping(ctx context.Context) error
}

// Enhancer is the external generation service used to enrich chunks.
type Enhancer interface {
	Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (domain.Generation, error)
	Ping(ctx context.Context) error
}

// AnalysisProjector mirrors a finished analysis into a secondary read model.
type AnalysisProjector interface {
	Project(ctx context.Context, doc domain.Document, result domain.AnalysisResult, tiers map[string]domain.PriorityTier) error
}

// PipelineObserver receives pipeline measurements.
type PipelineObserver interface {
	ObserveSegments(count int)
	ObserveChunk(tier domain.PriorityTier, degraded bool, tokens int)
}

// SuggestionObserver receives dedup verdicts.
type SuggestionObserver interface {
	ObserveVerdict(verdict domain.Verdict)
}
