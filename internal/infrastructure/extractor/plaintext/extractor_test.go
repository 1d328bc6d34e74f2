package plaintext

import (
	"context"
	"testing"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func TestExtractNormalizesText(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("  Listen first.\r\nAsk second.  \r\n")...)
	text, err := NewExtractor().Extract(context.Background(), "notes.txt", "text/plain", raw)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Listen first.\nAsk second." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "image.png", "image/png", []byte{0x89, 0x50, 0xff, 0xfe, 0x00})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
