package usecase

import (
	"fmt"
	"testing"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func chunksForTiers(counts map[domain.PriorityTier]int) []domain.EnhancementChunk {
	chunks := make([]domain.EnhancementChunk, 0)
	for _, tier := range domain.PriorityTiers {
		for i := 0; i < counts[tier]; i++ {
			chunks = append(chunks, domain.EnhancementChunk{
				ID:               fmt.Sprintf("%s-%d", tier, i),
				Tier:             tier,
				SequencePosition: len(chunks),
			})
		}
	}
	return chunks
}

func TestAllocateSplitsByTierShare(t *testing.T) {
	chunks := chunksForTiers(map[domain.PriorityTier]int{
		domain.TierCritical: 1,
		domain.TierHigh:     2,
		domain.TierStandard: 7,
	})

	budget, alloc := NewBudgetAllocator().Allocate(chunks, 4000)
	if alloc["CRITICAL-0"] != 2400 {
		t.Fatalf("critical chunk: expected 2400, got %d", alloc["CRITICAL-0"])
	}
	for i := 0; i < 2; i++ {
		if got := alloc[fmt.Sprintf("HIGH-%d", i)]; got != 600 {
			t.Fatalf("high chunk %d: expected 600, got %d", i, got)
		}
	}
	for i := 0; i < 7; i++ {
		if got := alloc[fmt.Sprintf("STANDARD-%d", i)]; got != 45 {
			t.Fatalf("standard chunk %d: expected 45, got %d", i, got)
		}
	}
	if budget.PerTier[domain.TierSupplemental] != 0 {
		t.Fatalf("empty tier must contribute 0")
	}
	if budget.Allocated() != 3915 {
		t.Fatalf("expected 3915 allocated, got %d", budget.Allocated())
	}
}

func TestAllocateNeverExceedsTotal(t *testing.T) {
	allocator := NewBudgetAllocator()
	for _, total := range []int{0, 1, 7, 99, 1000, 4000, 12345} {
		for n := 0; n < 12; n++ {
			chunks := chunksForTiers(map[domain.PriorityTier]int{
				domain.TierCritical:     n % 3,
				domain.TierHigh:         n % 5,
				domain.TierStandard:     n,
				domain.TierSupplemental: n % 4,
			})
			budget, alloc := allocator.Allocate(chunks, total)
			sum := 0
			for _, v := range alloc {
				sum += v
			}
			if sum > total || budget.Allocated() > total {
				t.Fatalf("total=%d n=%d: allocated %d exceeds budget", total, n, sum)
			}
			if sum != budget.Allocated() {
				t.Fatalf("per-chunk sum %d differs from per-tier sum %d", sum, budget.Allocated())
			}
		}
	}
}

func TestAllocateStarvesSupplementalUnderSmallBudget(t *testing.T) {
	chunks := chunksForTiers(map[domain.PriorityTier]int{domain.TierSupplemental: 3})
	_, alloc := NewBudgetAllocator().Allocate(chunks, 100)
	for id, v := range alloc {
		if v != 0 {
			t.Fatalf("chunk %s: expected 0 tokens, got %d", id, v)
		}
	}
}
