package usecase

import (
	"strings"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

// PriorityClassifier assigns one tier per item from caller-supplied context terms.
type PriorityClassifier struct{}

func NewPriorityClassifier() *PriorityClassifier {
	return &PriorityClassifier{}
}

// Classify is pure: identical items and context always yield identical tiers.
func (c *PriorityClassifier) Classify(items []domain.ExtractedItem, pctx domain.PriorityContext) map[string]domain.PriorityTier {
	critical := normalizeTerms(pctx.CriticalTerms)
	high := normalizeTerms(pctx.HighPriorityTerms)
	coreProblem := strings.ToLower(strings.TrimSpace(pctx.CoreProblem))

	tiers := make(map[string]domain.PriorityTier, len(items))
	for _, item := range items {
		tiers[item.ID] = classifyItem(item, critical, high, coreProblem)
	}
	return tiers
}

func classifyItem(item domain.ExtractedItem, critical, high []string, coreProblem string) domain.PriorityTier {
	text := strings.ToLower(item.Text)
	switch {
	case containsAny(text, critical):
		return domain.TierCritical
	case coreProblem != "" && strings.Contains(text, coreProblem):
		return domain.TierCritical
	case containsAny(text, high):
		return domain.TierHigh
	case item.Type == domain.ItemPrinciple || item.Type == domain.ItemStrategy:
		return domain.TierStandard
	default:
		return domain.TierSupplemental
	}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
