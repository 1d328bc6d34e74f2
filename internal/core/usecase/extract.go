package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

// DefaultExtractionInstructions is used when no schema-derived instructions are configured.
const DefaultExtractionInstructions = `Extract coaching knowledge from the content. Reply with one JSON object with the keys ` +
	`"summary" (string) and "principles", "strategies", "insights", "guidance", "examples" (arrays of strings).`

// ExtractionAdapter wraps the Extractor service and always yields a well-formed AnalysisResult
// for a reply it received, falling back to a minimal result when the reply cannot be parsed.
type ExtractionAdapter struct {
	extractor    ports.KnowledgeExtractor
	instructions string
}

func NewExtractionAdapter(extractor ports.KnowledgeExtractor, instructions string) *ExtractionAdapter {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultExtractionInstructions
	}
	return &ExtractionAdapter{extractor: extractor, instructions: instructions}
}

// Precheck fails fast with ErrServiceUnavailable when the Extractor cannot be reached.
func (a *ExtractionAdapter) Precheck(ctx context.Context) error {
	if err := a.extractor.Ping(ctx); err != nil {
		return domain.WrapError(domain.ErrServiceUnavailable, "extractor precheck", err)
	}
	return nil
}

// ExtractSegment analyzes one segment. Transport and service errors are returned;
// an unparseable reply is not an error.
func (a *ExtractionAdapter) ExtractSegment(ctx context.Context, doc domain.Document, segment domain.Segment) (domain.AnalysisResult, error) {
	resp, err := a.extractor.Analyze(ctx, segment.Text, a.instructions)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("analyze segment %d: %w", segment.Index, err)
	}
	if !resp.Success {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "extractor reported failure"
		}
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrTemporary, fmt.Sprintf("analyze segment %d", segment.Index), errors.New(msg))
	}
	return ParseAnalysis(doc, segment.Index, resp.Analysis), nil
}

type extractionPayload struct {
	Summary    string            `json:"summary"`
	Principles []json.RawMessage `json:"principles"`
	Strategies []json.RawMessage `json:"strategies"`
	Insights   []json.RawMessage `json:"insights"`
	Guidance   []json.RawMessage `json:"guidance"`
	Examples   []json.RawMessage `json:"examples"`
}

func (p extractionPayload) entries(t domain.ItemType) []json.RawMessage {
	switch t {
	case domain.ItemPrinciple:
		return p.Principles
	case domain.ItemStrategy:
		return p.Strategies
	case domain.ItemInsight:
		return p.Insights
	case domain.ItemGuidance:
		return p.Guidance
	case domain.ItemExample:
		return p.Examples
	}
	return nil
}

// ParseAnalysis turns an Extractor reply into an AnalysisResult. The reply may be a
// JSON object or a JSON string holding one, optionally inside a code fence.
func ParseAnalysis(doc domain.Document, segmentIndex int, raw json.RawMessage) domain.AnalysisResult {
	result := domain.NewAnalysisResult(doc.ID, doc.Filename, doc.CreatedAt)

	body := bytes.TrimSpace(raw)
	text := string(body)
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err == nil {
			text = inner
			body = []byte(extractJSONObject(stripCodeFence(inner)))
		}
	}

	var payload extractionPayload
	if err := json.Unmarshal(body, &payload); err != nil || len(body) == 0 {
		if err == nil {
			err = errors.New("empty analysis")
		}
		result.Error = domain.WrapError(domain.ErrParseFailure, "parse analysis", err).Error()
		result.RawText = text
		return result
	}

	result.Summary = strings.TrimSpace(payload.Summary)
	for _, itemType := range domain.ItemTypes {
		n := 0
		for _, entry := range payload.entries(itemType) {
			itemText := entryText(entry)
			if itemText == "" {
				continue
			}
			n++
			result.Append(domain.ExtractedItem{
				ID:            fmt.Sprintf("%s-s%d-%s-%d", doc.ID, segmentIndex, itemType, n),
				Type:          itemType,
				Text:          itemText,
				SourceSegment: segmentIndex,
			})
		}
	}
	return result
}

func entryText(entry json.RawMessage) string {
	var s string
	if err := json.Unmarshal(entry, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Text        string `json:"text"`
		Content     string `json:"content"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(entry, &obj); err != nil {
		return ""
	}
	for _, candidate := range []string{obj.Text, obj.Content, obj.Description} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

// Synthesize merges per-segment results into one result, dropping items whose
// text repeats (case-insensitively) within a type.
func Synthesize(doc domain.Document, parts []domain.AnalysisResult, createdAt time.Time) domain.AnalysisResult {
	out := domain.NewAnalysisResult(doc.ID, doc.Filename, createdAt)
	seen := make(map[domain.ItemType]map[string]struct{}, len(domain.ItemTypes))
	summaries := make([]string, 0, len(parts))
	var parseErrors, rawTexts []string

	for _, part := range parts {
		if part.Summary != "" {
			summaries = append(summaries, part.Summary)
		}
		if part.Error != "" {
			parseErrors = append(parseErrors, part.Error)
			rawTexts = append(rawTexts, part.RawText)
		}
		for _, itemType := range domain.ItemTypes {
			if seen[itemType] == nil {
				seen[itemType] = map[string]struct{}{}
			}
			for _, item := range part.ItemsOf(itemType) {
				key := strings.ToLower(strings.TrimSpace(item.Text))
				if _, dup := seen[itemType][key]; dup {
					continue
				}
				seen[itemType][key] = struct{}{}
				out.Append(item)
			}
		}
	}

	out.Summary = strings.Join(summaries, " ")
	if out.ItemCount() == 0 && len(parseErrors) > 0 {
		out.Error = strings.Join(parseErrors, "; ")
		out.RawText = strings.Join(rawTexts, "\n\n")
	}
	return out
}
