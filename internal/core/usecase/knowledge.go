package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

const (
	DefaultSearchLimit = 5
	minSearchScore     = 0.1
)

type KnowledgeUseCase struct {
	records records
}

func NewKnowledgeUseCase(store ports.KnowledgeStore) *KnowledgeUseCase {
	return &KnowledgeUseCase{records: records{store: store}}
}

// ListDocuments returns documents newest first.
func (uc *KnowledgeUseCase) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	ids, err := uc.records.documentIDs(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := uc.records.document(ctx, id)
		if err != nil {
			if domain.IsKind(err, domain.ErrDocumentNotFound) {
				continue
			}
			return nil, fmt.Errorf("fetch document %s: %w", id, err)
		}
		docs = append(docs, *doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// GetDocument returns the document and its latest run, which may be nil.
func (uc *KnowledgeUseCase) GetDocument(ctx context.Context, documentID string) (*domain.Document, *domain.ProcessingRun, error) {
	doc, err := uc.records.document(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch document by id: %w", err)
	}
	run, err := uc.records.run(ctx, documentID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, nil, fmt.Errorf("fetch processing run: %w", err)
		}
		run = nil
	}
	return doc, run, nil
}

func (uc *KnowledgeUseCase) GetAnalysis(ctx context.Context, documentID string) (*domain.AnalysisResult, error) {
	result, err := uc.records.analysis(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis: %w", err)
	}
	return result, nil
}

// Search scores each item by the share of query words its text contains.
func (uc *KnowledgeUseCase) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search knowledge", errors.New("query is empty"))
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	docs, err := uc.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	hits := make([]domain.SearchHit, 0)
	for _, doc := range docs {
		result, err := uc.records.analysis(ctx, doc.ID)
		if err != nil {
			if domain.IsKind(err, domain.ErrDocumentNotFound) {
				continue
			}
			return nil, fmt.Errorf("fetch analysis %s: %w", doc.ID, err)
		}
		for _, item := range result.Items() {
			score := matchScore(strings.ToLower(item.Text), words)
			if score <= minSearchScore {
				continue
			}
			hits = append(hits, domain.SearchHit{
				DocumentID: doc.ID,
				Filename:   doc.Filename,
				ItemID:     item.ID,
				Type:       item.Type,
				Text:       item.Text,
				Score:      score,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func matchScore(text string, words []string) float64 {
	matched := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}

func (uc *KnowledgeUseCase) Stats(ctx context.Context) (domain.KnowledgeStats, error) {
	docs, err := uc.ListDocuments(ctx)
	if err != nil {
		return domain.KnowledgeStats{}, err
	}
	stats := domain.KnowledgeStats{
		TotalDocuments: len(docs),
		LastUpdated:    "never",
		HealthStatus:   "healthy",
	}
	for i, doc := range docs {
		if i == 0 {
			stats.LastUpdated = doc.CreatedAt.Format("2006-01-02 15:04:05")
		}
		stats.CollectionSize += len(doc.RawContent)
		if result, err := uc.records.analysis(ctx, doc.ID); err == nil {
			stats.TotalItems += result.ItemCount()
		}
		if run, err := uc.records.run(ctx, doc.ID); err == nil && run.Status == domain.StatusFailed {
			stats.HealthStatus = "degraded"
		}
	}
	return stats, nil
}

// Clear wipes the whole knowledge base. Keys outside the pipeline's prefixes are kept.
func (uc *KnowledgeUseCase) Clear(ctx context.Context) (int, error) {
	removed, err := uc.records.clear(ctx)
	if err != nil {
		return removed, fmt.Errorf("clear knowledge base: %w", err)
	}
	slog.Info("knowledge_base_cleared", "documents", removed)
	return removed, nil
}

func (uc *KnowledgeUseCase) RemoveDocument(ctx context.Context, documentID string) (bool, error) {
	removed, err := uc.records.remove(ctx, documentID)
	if err != nil {
		return removed, fmt.Errorf("remove document: %w", err)
	}
	return removed, nil
}
