package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

const (
	charsPerToken       = 4
	// minPromptTokens sizes starved CRITICAL and HIGH prompts.
	minPromptTokens     = 128
	essentialItemsLimit = 2
	defaultTemperature  = 0.3
	defaultTopP         = 0.9
)

var responseCeilings = map[domain.PriorityTier]int{
	domain.TierCritical:     1200,
	domain.TierHigh:         800,
	domain.TierStandard:     400,
	domain.TierSupplemental: 200,
}

type ChunkEnhancerConfig struct {
	Concurrency int
	// RequestsPerSecond throttles Enhancer calls; 0 disables throttling.
	RequestsPerSecond float64
	Temperature       float64
	TopP              float64
}

// ChunkEnhancer calls the Enhancer once per chunk and degrades to the chunk's
// original items whenever the call is skipped or fails.
type ChunkEnhancer struct {
	enhancer    ports.Enhancer
	concurrency int
	limiter     *rate.Limiter
	temperature float64
	topP        float64
}

func NewChunkEnhancer(enhancer ports.Enhancer, cfg ChunkEnhancerConfig) *ChunkEnhancer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.TopP <= 0 {
		cfg.TopP = defaultTopP
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Concurrency)
	}
	return &ChunkEnhancer{
		enhancer:    enhancer,
		concurrency: cfg.Concurrency,
		limiter:     limiter,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}
}

// EnhanceAll fans chunks out to a bounded worker pool. Once ctx is canceled no
// new Enhancer calls start; calls already in flight run to completion or timeout.
// The result is ordered like chunks.
func (e *ChunkEnhancer) EnhanceAll(ctx context.Context, chunks []domain.EnhancementChunk, allocations map[string]int) []domain.EnhancedChunk {
	out := make([]domain.EnhancedChunk, len(chunks))
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, chunk := range chunks {
		budget := allocations[chunk.ID]
		if skipForBudget(chunk, budget) {
			out[i] = essentialProjection(chunk)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				out[i] = domain.DegradedChunk(chunk, domain.DegradeCanceled)
				return nil
			}
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					out[i] = domain.DegradedChunk(chunk, domain.DegradeCanceled)
					return nil
				}
			}
			out[i] = e.Enhance(context.WithoutCancel(ctx), chunk, budget)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Enhance processes a single chunk within its token allocation.
func (e *ChunkEnhancer) Enhance(ctx context.Context, chunk domain.EnhancementChunk, tokenBudget int) domain.EnhancedChunk {
	if skipForBudget(chunk, tokenBudget) {
		return essentialProjection(chunk)
	}
	// Only CRITICAL and HIGH reach here without an allocation.
	if tokenBudget <= 0 {
		tokenBudget = minPromptTokens
	}

	sent := boundPayload(chunk.Items, tokenBudget*charsPerToken)
	prompt, err := buildEnhancePrompt(chunk, sent)
	if err != nil {
		return e.degrade(chunk, domain.DegradeParseFailure, err)
	}

	gen, err := e.enhancer.Generate(ctx, prompt, domain.GenerateOptions{
		Temperature: e.temperature,
		TopP:        e.topP,
		MaxTokens:   responseCeiling(chunk.Tier),
	})
	if err != nil {
		reason := domain.DegradeServiceError
		if domain.IsKind(err, domain.ErrServiceUnavailable) {
			reason = domain.DegradeUnavailable
		}
		return e.degrade(chunk, reason, err)
	}

	replies, err := parseEnhancedItems(gen.Text)
	if err != nil {
		return e.degrade(chunk, domain.DegradeParseFailure, err)
	}

	enhanced, matched := mergeReplies(chunk.Items, sent, replies)
	if matched == 0 {
		return e.degrade(chunk, domain.DegradeParseFailure, errors.New("reply matched no items"))
	}

	tokens := gen.PromptTokens + gen.CompletionTokens
	if tokens <= 0 {
		tokens = (len(prompt) + len(gen.Text)) / charsPerToken
	}
	return domain.EnhancedChunk{
		ChunkID:          chunk.ID,
		Type:             chunk.Type,
		Tier:             chunk.Tier,
		SequencePosition: chunk.SequencePosition,
		OriginalItems:    chunk.Items,
		EnhancedItems:    enhanced,
		TokensConsumed:   tokens,
	}
}

func (e *ChunkEnhancer) degrade(chunk domain.EnhancementChunk, reason domain.DegradeReason, err error) domain.EnhancedChunk {
	slog.Warn("chunk_enhance_degraded",
		"chunk_id", chunk.ID,
		"tier", chunk.Tier,
		"reason", reason,
		"error", err.Error(),
	)
	return domain.DegradedChunk(chunk, reason)
}

func skipForBudget(chunk domain.EnhancementChunk, budget int) bool {
	if budget > 0 {
		return false
	}
	return chunk.Tier == domain.TierStandard || chunk.Tier == domain.TierSupplemental
}

// essentialProjection keeps only the first items of SUPPLEMENTAL chunks.
func essentialProjection(chunk domain.EnhancementChunk) domain.EnhancedChunk {
	out := domain.DegradedChunk(chunk, domain.DegradeBudgetExhausted)
	if chunk.Tier == domain.TierSupplemental && len(out.EnhancedItems) > essentialItemsLimit {
		out.EnhancedItems = out.EnhancedItems[:essentialItemsLimit]
	}
	return out
}

func responseCeiling(tier domain.PriorityTier) int {
	if v, ok := responseCeilings[tier]; ok {
		return v
	}
	return responseCeilings[domain.TierSupplemental]
}

type promptItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// boundPayload keeps leading items whose serialized size fits maxChars. When not
// even the first item fits, its text is cut to the remaining room.
func boundPayload(items []domain.ExtractedItem, maxChars int) []promptItem {
	out := make([]promptItem, 0, len(items))
	used := 2
	for _, item := range items {
		p := promptItem{ID: item.ID, Text: item.Text}
		size := jsonLen(p) + 1
		if used+size <= maxChars {
			out = append(out, p)
			used += size
			continue
		}
		if len(out) == 0 {
			room := maxChars - used - (jsonLen(promptItem{ID: item.ID}) + 1)
			if room > 0 {
				p.Text = truncateRunes(item.Text, room)
				out = append(out, p)
			}
		}
		break
	}
	return out
}

func jsonLen(v any) int {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(raw)
}

func truncateRunes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func buildEnhancePrompt(chunk domain.EnhancementChunk, sent []promptItem) (string, error) {
	if len(sent) == 0 {
		return "", errors.New("chunk has no content within budget")
	}
	payload, err := json.Marshal(sent)
	if err != nil {
		return "", fmt.Errorf("marshal chunk payload: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite each %s item below into clear, actionable coaching guidance.\n", chunk.Type)
	fmt.Fprintf(&b, "Priority: %s.\n", chunk.Tier)
	if chunk.OverlapWithPrevious {
		b.WriteString("These items continue the previous batch of the same type.\n")
	}
	b.WriteString(`Return only JSON: {"items":[{"id":"<same id>","text":"<rewritten text>"}]}.`)
	b.WriteString("\nItems:\n")
	b.Write(payload)
	return b.String(), nil
}

type enhancedReply struct {
	ID   string
	Text string
}

// parseEnhancedItems accepts {"items":[...]} or a bare array, with or without a code fence.
// Entries may be objects with id/text or plain strings.
func parseEnhancedItems(raw string) ([]enhancedReply, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return nil, domain.WrapError(domain.ErrParseFailure, "parse enhancer reply", errors.New("empty reply"))
	}

	var entries []json.RawMessage
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
			return nil, domain.WrapError(domain.ErrParseFailure, "parse enhancer reply", err)
		}
	} else {
		var envelope struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal([]byte(extractJSONObject(cleaned)), &envelope); err != nil {
			return nil, domain.WrapError(domain.ErrParseFailure, "parse enhancer reply", err)
		}
		entries = envelope.Items
	}

	out := make([]enhancedReply, 0, len(entries))
	for _, entry := range entries {
		var text string
		if err := json.Unmarshal(entry, &text); err == nil {
			out = append(out, enhancedReply{Text: strings.TrimSpace(text)})
			continue
		}
		var obj struct {
			ID      string `json:"id"`
			Text    string `json:"text"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(entry, &obj); err != nil {
			continue
		}
		if obj.Text == "" {
			obj.Text = obj.Content
		}
		out = append(out, enhancedReply{ID: obj.ID, Text: strings.TrimSpace(obj.Text)})
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrParseFailure, "parse enhancer reply", errors.New("no items in reply"))
	}
	return out, nil
}

// mergeReplies matches replies to sent items by id, falling back to position.
// Items that were not sent, or got no non-empty reply, pass through unchanged.
func mergeReplies(items []domain.ExtractedItem, sent []promptItem, replies []enhancedReply) ([]domain.ExtractedItem, int) {
	byID := make(map[string]string, len(replies))
	for _, r := range replies {
		if r.ID != "" && r.Text != "" {
			byID[r.ID] = r.Text
		}
	}

	sentIndex := make(map[string]int, len(sent))
	for i, p := range sent {
		sentIndex[p.ID] = i
	}

	out := make([]domain.ExtractedItem, len(items))
	matched := 0
	for i, item := range items {
		out[i] = item
		pos, wasSent := sentIndex[item.ID]
		if !wasSent {
			continue
		}
		text, ok := byID[item.ID]
		if !ok && len(byID) == 0 && pos < len(replies) {
			text, ok = replies[pos].Text, replies[pos].Text != ""
		}
		if ok {
			out[i].Text = text
			matched++
		}
	}
	return out, matched
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
