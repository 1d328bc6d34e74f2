package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

type ingestFake struct {
	err          error
	lastPriority *domain.PriorityContext
	lastBody     []byte
	reprocessed  []string
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader, priority *domain.PriorityContext) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty file"))
	}
	f.lastBody = raw
	f.lastPriority = priority
	return &domain.Document{
		ID:         "doc-1",
		Filename:   filename,
		MimeType:   mimeType,
		RawContent: string(raw),
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (f *ingestFake) Reprocess(_ context.Context, documentID string, priority *domain.PriorityContext) error {
	if f.err != nil {
		return f.err
	}
	f.reprocessed = append(f.reprocessed, documentID)
	f.lastPriority = priority
	return nil
}

type knowledgeFake struct {
	err     error
	docs    []domain.Document
	hits    []domain.SearchHit
	removed bool
}

func (f *knowledgeFake) ListDocuments(context.Context) ([]domain.Document, error) {
	return f.docs, f.err
}

func (f *knowledgeFake) GetDocument(_ context.Context, id string) (*domain.Document, *domain.ProcessingRun, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &domain.Document{ID: id, Filename: "notes.txt"}, &domain.ProcessingRun{DocumentID: id, Status: domain.StatusReady}, nil
}

func (f *knowledgeFake) GetAnalysis(_ context.Context, id string) (*domain.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalysisResult{DocumentID: id}, nil
}

func (f *knowledgeFake) Search(context.Context, string, int) ([]domain.SearchHit, error) {
	return f.hits, f.err
}

func (f *knowledgeFake) Stats(context.Context) (domain.KnowledgeStats, error) {
	if f.err != nil {
		return domain.KnowledgeStats{}, f.err
	}
	return domain.KnowledgeStats{TotalDocuments: len(f.docs), HealthStatus: "healthy"}, nil
}

func (f *knowledgeFake) RemoveDocument(context.Context, string) (bool, error) {
	return f.removed, f.err
}

func (f *knowledgeFake) Clear(context.Context) (int, error) {
	return len(f.docs), f.err
}

type suggestionFake struct {
	verdict domain.Verdict
	last    domain.Suggestion
}

func (f *suggestionFake) Submit(_ string, s domain.Suggestion) domain.Verdict {
	f.last = s
	return f.verdict
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &ingestFake{}, &knowledgeFake{}, &suggestionFake{}).Handler()
}
