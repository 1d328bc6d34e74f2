package chunking

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

const (
	DefaultMaxChars = 8000
	DefaultLookback = 200
	DefaultMinChars = 100
)

// Segmenter cuts raw document text into windows of at most MaxChars bytes,
// preferring sentence, then paragraph, then whitespace boundaries.
type Segmenter struct {
	MaxChars int
	Lookback int
	MinChars int
}

func NewSegmenter(maxChars, lookback, minChars int) *Segmenter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if lookback > maxChars {
		lookback = maxChars
	}
	if minChars < 0 {
		minChars = 0
	}
	return &Segmenter{
		MaxChars: maxChars,
		Lookback: lookback,
		MinChars: minChars,
	}
}

// Segment returns ordered, non-overlapping segments. Segment texts are not
// trimmed, so concatenating them reproduces the input minus dropped noise.
func (s *Segmenter) Segment(documentID, text string) []domain.Segment {
	if text == "" {
		return nil
	}
	if len(text) <= s.MaxChars {
		return []domain.Segment{{
			DocumentID: documentID,
			Index:      0,
			Text:       text,
			CharRange:  domain.CharRange{Start: 0, End: len(text)},
		}}
	}

	out := make([]domain.Segment, 0, len(text)/s.MaxChars+1)
	for start := 0; start < len(text); {
		end := start + s.MaxChars
		unbroken := false
		if end >= len(text) {
			end = len(text)
		} else if cut, ok := s.boundary(text, start, end); ok {
			end = cut
		} else {
			end = runeFloor(text, start, end)
			unbroken = true
			slog.Warn("segment_oversize_unbreakable",
				"document_id", documentID,
				"start", start,
				"end", end,
			)
		}

		if len(strings.TrimSpace(text[start:end])) >= s.MinChars {
			out = append(out, domain.Segment{
				DocumentID: documentID,
				Index:      len(out),
				Text:       text[start:end],
				CharRange:  domain.CharRange{Start: start, End: end},
				Unbroken:   unbroken,
			})
		} else {
			slog.Debug("segment_dropped", "document_id", documentID, "start", start, "end", end)
		}
		start = end
	}
	return out
}

// boundary looks inside the lookback tail first and widens to the whole window
// when the tail has no clean break.
func (s *Segmenter) boundary(text string, start, end int) (int, bool) {
	window := text[start:end]
	tailStart := len(window) - s.Lookback
	if tailStart < 0 {
		tailStart = 0
	}
	if cut, ok := cleanBreak(window, tailStart); ok {
		return start + cut, true
	}
	if tailStart > 0 {
		if cut, ok := cleanBreak(window, 0); ok {
			return start + cut, true
		}
	}
	return 0, false
}

func cleanBreak(window string, from int) (int, bool) {
	region := window[from:]
	if i := strings.LastIndex(region, ". "); i >= 0 {
		return from + i + 1, true
	}
	if i := strings.LastIndex(region, "\n\n"); i >= 0 {
		return from + i + 2, true
	}
	if i := strings.LastIndexFunc(region, unicode.IsSpace); i >= 0 && from+i > 0 {
		return from + i, true
	}
	return 0, false
}

func runeFloor(text string, start, end int) int {
	for i := end; i > start; i-- {
		if utf8.RuneStart(text[i]) {
			return i
		}
	}
	return end
}
