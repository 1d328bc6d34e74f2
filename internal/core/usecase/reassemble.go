package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

// Reassembler merges enhanced chunks back into an AnalysisResult.
type Reassembler struct {
	now func() time.Time
}

func NewReassembler(now func() time.Time) *Reassembler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Reassembler{now: now}
}

// Reassemble never mutates original. A type's field is replaced only when at
// least one of its chunks was enhanced with non-empty output.
func (r *Reassembler) Reassemble(original domain.AnalysisResult, enhanced []domain.EnhancedChunk, tokenBudget int) domain.AnalysisResult {
	out := original.Clone()

	byType := make(map[domain.ItemType][]domain.EnhancedChunk, len(domain.ItemTypes))
	for _, chunk := range enhanced {
		byType[chunk.Type] = append(byType[chunk.Type], chunk)
	}

	meta := domain.EnhancementMetadata{
		ChunksProcessed: len(enhanced),
		TokenBudget:     tokenBudget,
		EnhancedAt:      r.now(),
	}
	for _, chunk := range enhanced {
		meta.TokensConsumed += chunk.TokensConsumed
		if chunk.Degraded {
			meta.ChunksDegraded++
		}
	}

	for _, itemType := range domain.ItemTypes {
		chunks := byType[itemType]
		if !anyEnhanced(chunks) {
			continue
		}
		sort.SliceStable(chunks, func(i, j int) bool {
			return chunks[i].SequencePosition < chunks[j].SequencePosition
		})
		merged := make([]domain.ExtractedItem, 0, len(out.ItemsOf(itemType)))
		for _, chunk := range chunks {
			merged = append(merged, chunk.EnhancedItems...)
		}
		out.SetItems(itemType, merged)
	}

	out.Enhancement = &meta
	out.EnhancementNote = enhancementNote(meta)
	return out
}

func anyEnhanced(chunks []domain.EnhancedChunk) bool {
	for _, chunk := range chunks {
		if !chunk.Degraded && len(chunk.EnhancedItems) > 0 {
			return true
		}
	}
	return false
}

func enhancementNote(meta domain.EnhancementMetadata) string {
	if meta.ChunksProcessed == 0 {
		return ""
	}
	if meta.ChunksDegraded == 0 {
		return "analysis completed, all sections enhanced"
	}
	return fmt.Sprintf("analysis completed with %d of %d sections not enhanced", meta.ChunksDegraded, meta.ChunksProcessed)
}
