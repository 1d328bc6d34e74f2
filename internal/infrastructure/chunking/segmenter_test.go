package chunking

import (
	"strings"
	"testing"
)

func joinSegments(t *testing.T, s *Segmenter, text string) string {
	t.Helper()
	var b strings.Builder
	for _, seg := range s.Segment("doc-1", text) {
		b.WriteString(seg.Text)
	}
	return b.String()
}

func TestSegmentShortDocumentYieldsSingleSegment(t *testing.T) {
	s := NewSegmenter(8000, 200, 100)
	segments := s.Segment("doc-1", "short text")
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Text != "short text" || segments[0].CharRange.End != len("short text") {
		t.Fatalf("unexpected segment: %+v", segments[0])
	}
}

func TestSegmentCutsAtParagraphBreakWhenTailHasNoBoundary(t *testing.T) {
	text := strings.Repeat("A", 4000) + "\n\n" + strings.Repeat("B", 4998)
	if len(text) != 9000 {
		t.Fatalf("fixture length = %d", len(text))
	}

	segments := NewSegmenter(8000, 200, 100).Segment("doc-1", text)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	first := segments[0]
	if first.CharRange.End > 4002 {
		t.Fatalf("first segment should end at the paragraph break, ended at %d", first.CharRange.End)
	}
	if strings.Contains(first.Text, "B") {
		t.Fatalf("first segment crossed the paragraph break")
	}
	if segments[1].CharRange.Start != first.CharRange.End {
		t.Fatalf("segments are not contiguous: %+v / %+v", first.CharRange, segments[1].CharRange)
	}
}

func TestSegmentPrefersSentenceBoundaryInLookback(t *testing.T) {
	sentence := strings.Repeat("word ", 19) + "end. "
	text := strings.Repeat(sentence, 40)

	s := NewSegmenter(1000, 200, 10)
	for _, seg := range s.Segment("doc-1", text) {
		if len(seg.Text) > 1000 {
			t.Fatalf("segment exceeds max: %d", len(seg.Text))
		}
		if seg.CharRange.End != len(text) && !strings.HasSuffix(seg.Text, ".") {
			t.Fatalf("segment should end on a sentence terminator: %q", seg.Text[len(seg.Text)-20:])
		}
	}
}

func TestSegmentCoversWholeDocument(t *testing.T) {
	text := strings.Repeat("Close on value, not price. Ask calibrated questions.\n\nMirror the last words ", 300)
	s := NewSegmenter(700, 200, 0)
	if got := joinSegments(t, s, text); got != text {
		t.Fatalf("concatenated segments differ from input (got %d bytes, want %d)", len(got), len(text))
	}
}

func TestSegmentUnbreakableRunCutsAtWindowEdge(t *testing.T) {
	text := strings.Repeat("x", 2500)
	segments := NewSegmenter(1000, 200, 0).Segment("doc-1", text)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	if !segments[0].Unbroken || len(segments[0].Text) != 1000 {
		t.Fatalf("expected unbroken raw-edge cut, got %+v", segments[0].CharRange)
	}
}

func TestSegmentDoesNotSplitMultibyteRunes(t *testing.T) {
	text := strings.Repeat("ж", 1500)
	s := NewSegmenter(1001, 200, 0)
	for _, seg := range s.Segment("doc-1", text) {
		if !strings.HasPrefix(seg.Text, "ж") || !strings.HasSuffix(seg.Text, "ж") {
			t.Fatalf("segment split a rune at %+v", seg.CharRange)
		}
	}
	if got := joinSegments(t, s, text); got != text {
		t.Fatalf("multibyte coverage lost")
	}
}

func TestSegmentDropsNoiseSegments(t *testing.T) {
	text := strings.Repeat("y", 1000) + " " + "tiny"
	segments := NewSegmenter(1000, 200, 100).Segment("doc-1", text)
	if len(segments) != 1 {
		t.Fatalf("expected trailing noise to be dropped, got %d segments", len(segments))
	}
	if segments[0].Index != 0 {
		t.Fatalf("unexpected index %d", segments[0].Index)
	}
}
