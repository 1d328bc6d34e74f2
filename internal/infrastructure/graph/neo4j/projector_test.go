package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

type recordedQuery struct {
	cypher string
	params map[string]any
}

func recordingProjector(fail error) (*Projector, *[]recordedQuery) {
	var queries []recordedQuery
	return &Projector{run: func(_ context.Context, cypher string, params map[string]any) error {
		queries = append(queries, recordedQuery{cypher: cypher, params: params})
		return fail
	}}, &queries
}

func TestProjectReplacesItemSubgraph(t *testing.T) {
	p, queries := recordingProjector(nil)
	doc := domain.Document{ID: "doc-1", Filename: "notes.md", CreatedAt: time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)}
	result := domain.AnalysisResult{DocumentID: "doc-1"}
	result.Append(domain.ExtractedItem{ID: "p-1", Type: domain.ItemPrinciple, Text: "Listen", SourceSegment: 0})
	result.Append(domain.ExtractedItem{ID: "e-1", Type: domain.ItemExample, Text: "A client said", SourceSegment: 1})

	err := p.Project(context.Background(), doc, result, map[string]domain.PriorityTier{"p-1": domain.TierCritical})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(*queries) != 2 {
		t.Fatalf("expected clear+create queries, got %d", len(*queries))
	}
	clear := (*queries)[0]
	if !strings.Contains(clear.cypher, "DETACH DELETE old") || clear.params["created_at"] != "2026-10-14T08:00:00Z" {
		t.Fatalf("unexpected clear query: %+v", clear)
	}
	items, _ := (*queries)[1].params["items"].([]map[string]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", (*queries)[1].params)
	}
	if items[0]["tier"] != "CRITICAL" || items[1]["tier"] != "STANDARD" || items[1]["segment"] != int64(1) {
		t.Fatalf("unexpected item params: %+v", items)
	}
}

func TestProjectSkipsCreateWithoutItems(t *testing.T) {
	p, queries := recordingProjector(nil)
	if err := p.Project(context.Background(), domain.Document{ID: "doc-2"}, domain.AnalysisResult{}, nil); err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(*queries) != 1 {
		t.Fatalf("expected only the clear query, got %d", len(*queries))
	}
}

func TestProjectWrapsDriverError(t *testing.T) {
	p, _ := recordingProjector(errors.New("connection reset"))
	err := p.Project(context.Background(), domain.Document{ID: "doc-3"}, domain.AnalysisResult{}, nil)
	if err == nil || !strings.Contains(err.Error(), "neo4j clear items") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
