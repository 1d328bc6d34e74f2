package domain

import "strings"

type PriorityTier string

const (
	TierCritical     PriorityTier = "CRITICAL"
	TierHigh         PriorityTier = "HIGH"
	TierStandard     PriorityTier = "STANDARD"
	TierSupplemental PriorityTier = "SUPPLEMENTAL"
)

// PriorityTiers is ordered from most to least important.
var PriorityTiers = []PriorityTier{TierCritical, TierHigh, TierStandard, TierSupplemental}

func ParsePriorityTier(raw string) (PriorityTier, bool) {
	tier := PriorityTier(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range PriorityTiers {
		if tier == known {
			return tier, true
		}
	}
	return "", false
}

// PriorityContext carries caller-supplied terms that decide item tiers.
type PriorityContext struct {
	CriticalTerms     []string `json:"critical_terms" yaml:"critical_terms"`
	HighPriorityTerms []string `json:"high_priority_terms" yaml:"high_priority_terms"`
	CoreProblem       string   `json:"core_problem" yaml:"core_problem"`
}

func (c PriorityContext) IsZero() bool {
	return len(c.CriticalTerms) == 0 && len(c.HighPriorityTerms) == 0 && strings.TrimSpace(c.CoreProblem) == ""
}

type EnhancementChunk struct {
	ID                  string          `json:"id"`
	Type                ItemType        `json:"type"`
	Items               []ExtractedItem `json:"items"`
	Tier                PriorityTier    `json:"tier"`
	SequencePosition    int             `json:"sequence_position"`
	OverlapWithPrevious bool            `json:"overlap_with_previous"`
	// Oversize marks a single item whose serialized size exceeds the hard ceiling.
	Oversize bool `json:"oversize,omitempty"`
}

type Budget struct {
	TotalTokens int                  `json:"total_tokens"`
	PerTier     map[PriorityTier]int `json:"per_tier"`
}

// Allocated sums the per-tier allocations.
func (b Budget) Allocated() int {
	sum := 0
	for _, v := range b.PerTier {
		sum += v
	}
	return sum
}

type DegradeReason string

const (
	DegradeNone            DegradeReason = ""
	DegradeBudgetExhausted DegradeReason = "budget_exhausted"
	DegradeServiceError    DegradeReason = "service_error"
	DegradeParseFailure    DegradeReason = "parse_failure"
	DegradeCanceled        DegradeReason = "canceled"
	DegradeUnavailable     DegradeReason = "service_unavailable"
)

type EnhancedChunk struct {
	ChunkID          string          `json:"chunk_id"`
	Type             ItemType        `json:"type"`
	Tier             PriorityTier    `json:"tier"`
	SequencePosition int             `json:"sequence_position"`
	OriginalItems    []ExtractedItem `json:"original_items"`
	EnhancedItems    []ExtractedItem `json:"enhanced_items"`
	TokensConsumed   int             `json:"tokens_consumed"`
	Degraded         bool            `json:"degraded"`
	DegradeReason    DegradeReason   `json:"degrade_reason,omitempty"`
}

// DegradedChunk builds the identity fallback for a chunk.
func DegradedChunk(chunk EnhancementChunk, reason DegradeReason) EnhancedChunk {
	items := make([]ExtractedItem, len(chunk.Items))
	copy(items, chunk.Items)
	return EnhancedChunk{
		ChunkID:          chunk.ID,
		Type:             chunk.Type,
		Tier:             chunk.Tier,
		SequencePosition: chunk.SequencePosition,
		OriginalItems:    chunk.Items,
		EnhancedItems:    items,
		Degraded:         true,
		DegradeReason:    reason,
	}
}

// GenerateOptions bounds a single Enhancer call.
type GenerateOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

type Generation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
