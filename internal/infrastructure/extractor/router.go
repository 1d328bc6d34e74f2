package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/extractor/spreadsheet"
)

// Router picks a TextExtractor by file extension, then by MIME type, then falls back to plain text.
type Router struct {
	byExt    map[string]ports.TextExtractor
	byMime   map[string]ports.TextExtractor
	fallback ports.TextExtractor
}

func NewRouter() *Router {
	text := plaintext.NewExtractor()
	markup := htmltext.NewExtractor()
	doc := pdf.NewExtractor()
	sheet := spreadsheet.NewExtractor()

	return &Router{
		byExt: map[string]ports.TextExtractor{
			".txt":      text,
			".md":       text,
			".markdown": text,
			".html":     markup,
			".htm":      markup,
			".pdf":      doc,
			".xlsx":     sheet,
		},
		byMime: map[string]ports.TextExtractor{
			"text/plain":      text,
			"text/markdown":   text,
			"text/html":       markup,
			"application/pdf": doc,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": sheet,
		},
		fallback: text,
	}
}

// Register overrides the extractor for an extension such as ".docx".
func (r *Router) Register(ext string, extractor ports.TextExtractor) {
	r.byExt[strings.ToLower(ext)] = extractor
}

func (r *Router) Extract(ctx context.Context, filename, mimeType string, raw []byte) (string, error) {
	extractor := r.pick(filename, mimeType)
	text, err := extractor.Extract(ctx, filename, mimeType, raw)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return "", err
		}
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	return text, nil
}

func (r *Router) pick(filename, mimeType string) ports.TextExtractor {
	if e, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]; ok {
		return e
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if e, ok := r.byMime[mimeType]; ok {
		return e
	}
	return r.fallback
}
