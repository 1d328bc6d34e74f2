package extractor

import (
	"context"
	"testing"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

type stubExtractor struct{ text string }

func (s stubExtractor) Extract(context.Context, string, string, []byte) (string, error) {
	return s.text, nil
}

func TestRouterPicksByExtensionThenMime(t *testing.T) {
	r := NewRouter()
	ctx := context.Background()

	text, err := r.Extract(ctx, "page.HTML", "", []byte("<p>Hold silence</p>"))
	if err != nil || text != "Hold silence" {
		t.Fatalf("html by extension: text=%q err=%v", text, err)
	}

	text, err = r.Extract(ctx, "upload", "text/html; charset=utf-8", []byte("<p>Name the feeling</p>"))
	if err != nil || text != "Name the feeling" {
		t.Fatalf("html by mime: text=%q err=%v", text, err)
	}

	text, err = r.Extract(ctx, "notes", "", []byte("<p>kept raw</p>"))
	if err != nil || text != "<p>kept raw</p>" {
		t.Fatalf("fallback: text=%q err=%v", text, err)
	}
}

func TestRouterRegisterOverrides(t *testing.T) {
	r := NewRouter()
	r.Register(".DOCX", stubExtractor{text: "from docx"})

	text, err := r.Extract(context.Background(), "plan.docx", "", nil)
	if err != nil || text != "from docx" {
		t.Fatalf("unexpected result: text=%q err=%v", text, err)
	}
}

func TestRouterKeepsInvalidInputKind(t *testing.T) {
	_, err := NewRouter().Extract(context.Background(), "broken.pdf", "", []byte("nope"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
