package mcp

import (
	"context"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

type mockKnowledgeReader struct {
	docs      []domain.Document
	hits      []domain.SearchHit
	analysis  *domain.AnalysisResult
	stats     domain.KnowledgeStats
	err       error
	lastQuery string
	lastLimit int
}

func (m *mockKnowledgeReader) ListDocuments(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockKnowledgeReader) GetDocument(_ context.Context, id string) (*domain.Document, *domain.ProcessingRun, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return &domain.Document{ID: id}, nil, nil
}

func (m *mockKnowledgeReader) GetAnalysis(context.Context, string) (*domain.AnalysisResult, error) {
	return m.analysis, m.err
}

func (m *mockKnowledgeReader) Search(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	m.lastQuery = query
	m.lastLimit = limit
	return m.hits, m.err
}

func (m *mockKnowledgeReader) Stats(context.Context) (domain.KnowledgeStats, error) {
	return m.stats, m.err
}

func (m *mockKnowledgeReader) RemoveDocument(context.Context, string) (bool, error) {
	return false, m.err
}

func (m *mockKnowledgeReader) Clear(context.Context) (int, error) {
	return 0, m.err
}
