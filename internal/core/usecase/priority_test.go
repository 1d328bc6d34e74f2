package usecase

import (
	"testing"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func TestClassifyAppliesRulesInOrder(t *testing.T) {
	items := []domain.ExtractedItem{
		{ID: "a", Type: domain.ItemExample, Text: "Handle the PRICE objection early"},
		{ID: "b", Type: domain.ItemInsight, Text: "Buyers stall when churn is rising fast"},
		{ID: "c", Type: domain.ItemGuidance, Text: "Use a label before asking about timeline"},
		{ID: "d", Type: domain.ItemStrategy, Text: "Anchor high"},
		{ID: "e", Type: domain.ItemPrinciple, Text: "Listen more than you speak"},
		{ID: "f", Type: domain.ItemGuidance, Text: "Send a recap email"},
	}
	pctx := domain.PriorityContext{
		CriticalTerms:     []string{" price objection ", ""},
		HighPriorityTerms: []string{"timeline"},
		CoreProblem:       "Churn is rising",
	}

	got := NewPriorityClassifier().Classify(items, pctx)
	want := map[string]domain.PriorityTier{
		"a": domain.TierCritical,
		"b": domain.TierCritical,
		"c": domain.TierHigh,
		"d": domain.TierStandard,
		"e": domain.TierStandard,
		"f": domain.TierSupplemental,
	}
	for id, tier := range want {
		if got[id] != tier {
			t.Fatalf("item %s: expected %s, got %s", id, tier, got[id])
		}
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	items := []domain.ExtractedItem{
		{ID: "a", Type: domain.ItemInsight, Text: "mirror the buyer"},
		{ID: "b", Type: domain.ItemStrategy, Text: "close on value"},
	}
	pctx := domain.PriorityContext{HighPriorityTerms: []string{"mirror"}}
	c := NewPriorityClassifier()

	first := c.Classify(items, pctx)
	second := c.Classify(items, pctx)
	for id := range first {
		if first[id] != second[id] {
			t.Fatalf("classification changed between runs for %s", id)
		}
	}
}

func TestClassifyEmptyContextUsesTypeFallback(t *testing.T) {
	items := []domain.ExtractedItem{
		{ID: "p", Type: domain.ItemPrinciple, Text: "anything"},
		{ID: "x", Type: domain.ItemExample, Text: "anything"},
	}
	got := NewPriorityClassifier().Classify(items, domain.PriorityContext{})
	if got["p"] != domain.TierStandard || got["x"] != domain.TierSupplemental {
		t.Fatalf("unexpected tiers: %+v", got)
	}
}
