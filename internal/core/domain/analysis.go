package domain

import (
	"encoding/json"
	"time"
)

// AnalysisSchemaVersion is bumped whenever the persisted AnalysisResult layout changes.
const AnalysisSchemaVersion = 1

type ItemType string

const (
	ItemPrinciple ItemType = "principle"
	ItemStrategy  ItemType = "strategy"
	ItemInsight   ItemType = "insight"
	ItemGuidance  ItemType = "guidance"
	ItemExample   ItemType = "example"
)

// ItemTypes lists item types in the order they are stored and chunked.
var ItemTypes = []ItemType{ItemPrinciple, ItemStrategy, ItemInsight, ItemGuidance, ItemExample}

func (t ItemType) Valid() bool {
	for _, known := range ItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

type ExtractedItem struct {
	ID            string   `json:"id"`
	Type          ItemType `json:"type"`
	Text          string   `json:"text"`
	SourceSegment int      `json:"source_segment"`
}

type EnhancementMetadata struct {
	ChunksProcessed int       `json:"chunks_processed"`
	ChunksDegraded  int       `json:"chunks_degraded"`
	TokensConsumed  int       `json:"tokens_consumed"`
	TokenBudget     int       `json:"token_budget"`
	EnhancedAt      time.Time `json:"enhanced_at"`
}

type AnalysisResult struct {
	SchemaVersion int    `json:"schema_version"`
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	Summary       string `json:"summary,omitempty"`

	Principles []ExtractedItem `json:"principles"`
	Strategies []ExtractedItem `json:"strategies"`
	Insights   []ExtractedItem `json:"insights"`
	Guidance   []ExtractedItem `json:"guidance"`
	Examples   []ExtractedItem `json:"examples"`

	// Error and RawText are populated when the extractor reply could not be parsed.
	Error   string `json:"error,omitempty"`
	RawText string `json:"raw_text,omitempty"`

	SegmentsAnalyzed int                  `json:"segments_analyzed"`
	SegmentsFailed   int                  `json:"segments_failed"`
	Enhancement      *EnhancementMetadata `json:"enhancement,omitempty"`
	EnhancementNote  string               `json:"enhancement_note,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

func NewAnalysisResult(documentID, filename string, createdAt time.Time) AnalysisResult {
	return AnalysisResult{
		SchemaVersion: AnalysisSchemaVersion,
		DocumentID:    documentID,
		Filename:      filename,
		Principles:    []ExtractedItem{},
		Strategies:    []ExtractedItem{},
		Insights:      []ExtractedItem{},
		Guidance:      []ExtractedItem{},
		Examples:      []ExtractedItem{},
		CreatedAt:     createdAt,
	}
}

func (a *AnalysisResult) field(t ItemType) *[]ExtractedItem {
	switch t {
	case ItemPrinciple:
		return &a.Principles
	case ItemStrategy:
		return &a.Strategies
	case ItemInsight:
		return &a.Insights
	case ItemGuidance:
		return &a.Guidance
	case ItemExample:
		return &a.Examples
	default:
		return nil
	}
}

// ItemsOf returns the items stored for one type.
func (a *AnalysisResult) ItemsOf(t ItemType) []ExtractedItem {
	f := a.field(t)
	if f == nil {
		return nil
	}
	return *f
}

// SetItems replaces the items stored for one type. Unknown types are ignored.
func (a *AnalysisResult) SetItems(t ItemType, items []ExtractedItem) {
	f := a.field(t)
	if f == nil {
		return
	}
	if items == nil {
		items = []ExtractedItem{}
	}
	*f = items
}

// Append adds an item to the field matching its type.
func (a *AnalysisResult) Append(item ExtractedItem) {
	f := a.field(item.Type)
	if f == nil {
		return
	}
	*f = append(*f, item)
}

// Items flattens all fields in ItemTypes order.
func (a *AnalysisResult) Items() []ExtractedItem {
	out := make([]ExtractedItem, 0, a.ItemCount())
	for _, t := range ItemTypes {
		out = append(out, a.ItemsOf(t)...)
	}
	return out
}

func (a *AnalysisResult) ItemCount() int {
	n := 0
	for _, t := range ItemTypes {
		n += len(a.ItemsOf(t))
	}
	return n
}

// Clone returns a deep copy so reassembly never aliases the caller's slices.
func (a AnalysisResult) Clone() AnalysisResult {
	out := a
	for _, t := range ItemTypes {
		src := a.ItemsOf(t)
		dst := make([]ExtractedItem, len(src))
		copy(dst, src)
		out.SetItems(t, dst)
	}
	if a.Enhancement != nil {
		meta := *a.Enhancement
		out.Enhancement = &meta
	}
	return out
}

// ExtractionResponse is the wire envelope returned by the Extractor service.
type ExtractionResponse struct {
	Success  bool            `json:"success"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}
