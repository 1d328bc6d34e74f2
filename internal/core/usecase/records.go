package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

const (
	documentPrefix = "documents/"
	analysisPrefix = "analyses/"
	runPrefix      = "runs/"
	contextPrefix  = "contexts/"
)

func documentKey(id string) string { return documentPrefix + id }
func analysisKey(id string) string { return analysisPrefix + id }
func runKey(id string) string      { return runPrefix + id }
func contextKey(id string) string  { return contextPrefix + id }

// records maps typed aggregates onto opaque JSON blobs in the KnowledgeStore.
type records struct {
	store ports.KnowledgeStore
}

func (r records) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (r records) load(ctx context.Context, key string, v any) error {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.WrapError(domain.ErrParseFailure, "decode "+key, err)
	}
	return nil
}

func (r records) saveDocument(ctx context.Context, doc domain.Document) error {
	return r.put(ctx, documentKey(doc.ID), doc)
}

func (r records) document(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.load(ctx, documentKey(id), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r records) saveAnalysis(ctx context.Context, result domain.AnalysisResult) error {
	return r.put(ctx, analysisKey(result.DocumentID), result)
}

func (r records) analysis(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	if err := r.load(ctx, analysisKey(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r records) saveRun(ctx context.Context, run domain.ProcessingRun) error {
	return r.put(ctx, runKey(run.DocumentID), run)
}

func (r records) run(ctx context.Context, id string) (*domain.ProcessingRun, error) {
	var run domain.ProcessingRun
	if err := r.load(ctx, runKey(id), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (r records) saveContext(ctx context.Context, id string, pctx domain.PriorityContext) error {
	return r.put(ctx, contextKey(id), pctx)
}

// priorityContext returns fallback when the document has no stored context.
func (r records) priorityContext(ctx context.Context, id string, fallback domain.PriorityContext) (domain.PriorityContext, error) {
	var pctx domain.PriorityContext
	err := r.load(ctx, contextKey(id), &pctx)
	switch {
	case err == nil:
		return pctx, nil
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return fallback, nil
	default:
		return domain.PriorityContext{}, err
	}
}

// documentIDs lists ids with a stored document, sorted ascending.
func (r records) documentIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list store keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := strings.CutPrefix(key, documentPrefix); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// remove deletes every key owned by the document and reports whether the document existed.
func (r records) remove(ctx context.Context, id string) (bool, error) {
	_, err := r.store.Get(ctx, documentKey(id))
	existed := err == nil
	if err != nil && !domain.IsKind(err, domain.ErrDocumentNotFound) {
		return false, err
	}
	for _, key := range []string{analysisKey(id), runKey(id), contextKey(id), documentKey(id)} {
		if err := r.store.Delete(ctx, key); err != nil {
			return existed, fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return existed, nil
}

// clear deletes every pipeline-owned key and reports how many documents were removed.
func (r records) clear(ctx context.Context) (int, error) {
	keys, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	documents := 0
	for _, key := range keys {
		switch {
		case strings.HasPrefix(key, documentPrefix):
			documents++
		case strings.HasPrefix(key, analysisPrefix), strings.HasPrefix(key, runPrefix), strings.HasPrefix(key, contextPrefix):
		default:
			continue
		}
		if err := r.store.Delete(ctx, key); err != nil {
			return documents, fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return documents, nil
}
