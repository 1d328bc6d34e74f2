package usecase

import "github.com/kirillkom/coaching-kb/internal/core/domain"

const DefaultTotalTokens = 4000

// tierShares are percentages of the total budget. An empty tier's share is left unused.
var tierShares = map[domain.PriorityTier]int{
	domain.TierCritical:     60,
	domain.TierHigh:         30,
	domain.TierStandard:     8,
	domain.TierSupplemental: 2,
}

type BudgetAllocator struct{}

func NewBudgetAllocator() *BudgetAllocator {
	return &BudgetAllocator{}
}

// Allocate splits totalTokens across tiers, then evenly (floored) across the chunks of each tier.
// The sum of the returned allocations never exceeds totalTokens.
func (a *BudgetAllocator) Allocate(chunks []domain.EnhancementChunk, totalTokens int) (domain.Budget, map[string]int) {
	if totalTokens < 0 {
		totalTokens = 0
	}
	counts := make(map[domain.PriorityTier]int, len(domain.PriorityTiers))
	for _, chunk := range chunks {
		counts[normalizeTier(chunk.Tier)]++
	}

	budget := domain.Budget{
		TotalTokens: totalTokens,
		PerTier:     make(map[domain.PriorityTier]int, len(domain.PriorityTiers)),
	}
	perChunk := make(map[domain.PriorityTier]int, len(domain.PriorityTiers))
	for _, tier := range domain.PriorityTiers {
		n := counts[tier]
		if n == 0 {
			budget.PerTier[tier] = 0
			continue
		}
		share := totalTokens * tierShares[tier] / 100
		perChunk[tier] = share / n
		budget.PerTier[tier] = perChunk[tier] * n
	}

	allocations := make(map[string]int, len(chunks))
	for _, chunk := range chunks {
		allocations[chunk.ID] = perChunk[normalizeTier(chunk.Tier)]
	}
	return budget, allocations
}

func normalizeTier(tier domain.PriorityTier) domain.PriorityTier {
	if _, ok := tierShares[tier]; ok {
		return tier
	}
	return domain.TierSupplemental
}
