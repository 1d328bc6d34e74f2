package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func seedKnowledge(t *testing.T) (*storeFake, *KnowledgeUseCase) {
	t.Helper()
	store := newStoreFake()
	r := records{store: store}
	ctx := context.Background()

	older := domain.Document{ID: "a", Filename: "old.md", RawContent: "12345", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := domain.Document{ID: "b", Filename: "new.md", RawContent: "123", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	for _, doc := range []domain.Document{older, newer} {
		if err := r.saveDocument(ctx, doc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	first := domain.NewAnalysisResult("a", "old.md", older.CreatedAt)
	first.Append(domain.ExtractedItem{ID: "a1", Type: domain.ItemPrinciple, Text: "Handle the price objection with empathy"})
	first.Append(domain.ExtractedItem{ID: "a2", Type: domain.ItemInsight, Text: "Silence is a tool"})
	second := domain.NewAnalysisResult("b", "new.md", newer.CreatedAt)
	second.Append(domain.ExtractedItem{ID: "b1", Type: domain.ItemGuidance, Text: "Restate the price before the close"})
	for _, a := range []domain.AnalysisResult{first, second} {
		if err := r.saveAnalysis(ctx, a); err != nil {
			t.Fatalf("seed analysis: %v", err)
		}
	}
	if err := r.saveRun(ctx, domain.ProcessingRun{DocumentID: "b", Status: domain.StatusFailed}); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return store, NewKnowledgeUseCase(store)
}

func TestListDocumentsNewestFirst(t *testing.T) {
	_, uc := seedKnowledge(t)
	docs, err := uc.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "b" {
		t.Fatalf("unexpected order: %+v", docs)
	}
}

func TestSearchScoresByMatchedWords(t *testing.T) {
	_, uc := seedKnowledge(t)
	hits, err := uc.Search(context.Background(), "price objection", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	if hits[0].ItemID != "a1" || hits[0].Score != 1 {
		t.Fatalf("expected a1 with full score first, got %+v", hits[0])
	}
	if hits[1].ItemID != "b1" || hits[1].Score != 0.5 {
		t.Fatalf("expected b1 with half score, got %+v", hits[1])
	}

	limited, _ := uc.Search(context.Background(), "price", 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	_, uc := seedKnowledge(t)
	if _, err := uc.Search(context.Background(), "   ", 5); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestStatsAggregatesCollection(t *testing.T) {
	_, uc := seedKnowledge(t)
	stats, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalDocuments != 2 || stats.TotalItems != 3 || stats.CollectionSize != 8 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.LastUpdated != "2026-02-01 00:00:00" || stats.HealthStatus != "degraded" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	stats, err := NewKnowledgeUseCase(newStoreFake()).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.LastUpdated != "never" || stats.HealthStatus != "healthy" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRemoveDocumentIsIdempotent(t *testing.T) {
	store, uc := seedKnowledge(t)
	removed, err := uc.RemoveDocument(context.Background(), "b")
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	if store.has(documentKey("b")) || store.has(analysisKey("b")) || store.has(runKey("b")) {
		t.Fatalf("keys left behind")
	}
	removed, err = uc.RemoveDocument(context.Background(), "b")
	if err != nil || removed {
		t.Fatalf("second removal should be a no-op, got %v %v", removed, err)
	}
}

func TestClearWipesPipelineKeysOnly(t *testing.T) {
	store, uc := seedKnowledge(t)
	ctx := context.Background()
	if err := store.Set(ctx, contextKey("a"), []byte(`{}`)); err != nil {
		t.Fatalf("seed context: %v", err)
	}
	if err := store.Set(ctx, "foreign/key", []byte("keep")); err != nil {
		t.Fatalf("seed foreign: %v", err)
	}

	removed, err := uc.Clear(ctx)
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 documents cleared, got %d %v", removed, err)
	}
	keys, _ := store.List(ctx)
	if len(keys) != 1 || keys[0] != "foreign/key" {
		t.Fatalf("unexpected keys after clear: %v", keys)
	}

	removed, err = uc.Clear(ctx)
	if err != nil || removed != 0 {
		t.Fatalf("second clear should be a no-op, got %d %v", removed, err)
	}
}

func TestClearSurfacesListFailure(t *testing.T) {
	store, uc := seedKnowledge(t)
	store.listErr = errors.New("store down")
	if _, err := uc.Clear(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetDocumentWithoutRun(t *testing.T) {
	_, uc := seedKnowledge(t)
	doc, run, err := uc.GetDocument(context.Background(), "a")
	if err != nil || doc == nil || run != nil {
		t.Fatalf("unexpected result: %+v %+v %v", doc, run, err)
	}
	if _, _, err := uc.GetDocument(context.Background(), "zzz"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
