package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

const (
	DefaultChunkTargetChars  = 1500
	DefaultChunkCeilingChars = 2000
)

// ChunkBuilder packs classified items into type-homogeneous chunks bounded by
// their serialized JSON size.
type ChunkBuilder struct {
	TargetChars  int
	CeilingChars int
}

func NewChunkBuilder(targetChars, ceilingChars int) *ChunkBuilder {
	if ceilingChars <= 0 {
		ceilingChars = DefaultChunkCeilingChars
	}
	if targetChars <= 0 || targetChars > ceilingChars {
		targetChars = min(DefaultChunkTargetChars, ceilingChars)
	}
	return &ChunkBuilder{TargetChars: targetChars, CeilingChars: ceilingChars}
}

// Build never fails. Items larger than the ceiling are emitted alone and flagged Oversize.
func (b *ChunkBuilder) Build(items []domain.ExtractedItem, tiers map[string]domain.PriorityTier) []domain.EnhancementChunk {
	byType := make(map[domain.ItemType][]domain.ExtractedItem, len(domain.ItemTypes))
	for _, item := range items {
		byType[item.Type] = append(byType[item.Type], item)
	}

	chunks := make([]domain.EnhancementChunk, 0)
	for _, itemType := range domain.ItemTypes {
		group := byType[itemType]
		if len(group) == 0 {
			continue
		}
		for i, packed := range b.pack(group) {
			chunk := domain.EnhancementChunk{
				ID:                  fmt.Sprintf("%s-%d", itemType, i+1),
				Type:                itemType,
				Items:               packed.items,
				Tier:                tierOf(packed.items[0], tiers),
				SequencePosition:    len(chunks),
				OverlapWithPrevious: i > 0,
				Oversize:            packed.oversize,
			}
			if chunk.Oversize {
				slog.Warn("chunk_oversize_unbreakable",
					"chunk_id", chunk.ID,
					"item_id", packed.items[0].ID,
					"size", packed.size,
					"ceiling", b.CeilingChars,
				)
			}
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

type packedChunk struct {
	items    []domain.ExtractedItem
	size     int
	oversize bool
}

// pack keeps a running size of the JSON array encoding: brackets plus one comma per extra item.
func (b *ChunkBuilder) pack(group []domain.ExtractedItem) []packedChunk {
	out := make([]packedChunk, 0, 1)
	var current packedChunk

	flush := func() {
		if len(current.items) > 0 {
			out = append(out, current)
		}
		current = packedChunk{}
	}

	for _, item := range group {
		itemSize := serializedSize(item)
		alone := itemSize + 2

		if alone > b.CeilingChars {
			flush()
			out = append(out, packedChunk{items: []domain.ExtractedItem{item}, size: alone, oversize: true})
			continue
		}

		next := current.size + itemSize + 1
		if len(current.items) == 0 {
			next = alone
		}
		if len(current.items) > 0 && next > b.TargetChars {
			flush()
			next = alone
		}
		current.items = append(current.items, item)
		current.size = next
	}
	flush()
	return out
}

func serializedSize(item domain.ExtractedItem) int {
	raw, err := json.Marshal(item)
	if err != nil {
		return len(item.Text)
	}
	return len(raw)
}

// SerializedChunkSize is the size the builder bounds: the JSON encoding of the chunk's items.
func SerializedChunkSize(chunk domain.EnhancementChunk) int {
	raw, err := json.Marshal(chunk.Items)
	if err != nil {
		return 0
	}
	return len(raw)
}

func tierOf(item domain.ExtractedItem, tiers map[string]domain.PriorityTier) domain.PriorityTier {
	if tier, ok := tiers[item.ID]; ok {
		return tier
	}
	return classifyItem(item, nil, nil, "")
}
