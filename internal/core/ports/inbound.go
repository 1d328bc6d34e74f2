package ports

import (
	"context"
	"io"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader, priority *domain.PriorityContext) (*domain.Document, error)
	Reprocess(ctx context.Context, documentID string, priority *domain.PriorityContext) error
}

// DocumentProcessor is the inbound contract for the extraction/enhancement pipeline.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// KnowledgeReader is the inbound read model over the knowledge store.
type KnowledgeReader interface {
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	GetDocument(ctx context.Context, documentID string) (*domain.Document, *domain.ProcessingRun, error)
	GetAnalysis(ctx context.Context, documentID string) (*domain.AnalysisResult, error)
	Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
	Stats(ctx context.Context) (domain.KnowledgeStats, error)
	RemoveDocument(ctx context.Context, documentID string) (bool, error)
	Clear(ctx context.Context) (int, error)
}

// SuggestionFilter is the inbound contract for live suggestion deduplication.
type SuggestionFilter interface {
	Submit(streamID string, suggestion domain.Suggestion) domain.Verdict
}
