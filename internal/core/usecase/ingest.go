package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

type IngestDocumentUseCase struct {
	records   records
	extractor ports.TextExtractor
	queue     ports.MessageQueue
	now       func() time.Time
}

func NewIngestDocumentUseCase(
	store ports.KnowledgeStore,
	extractor ports.TextExtractor,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		records:   records{store: store},
		extractor: extractor,
		queue:     queue,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload decodes the file, replaces any document with the same filename and
// queues the new document for processing.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
	priority *domain.PriorityContext,
) (*domain.Document, error) {
	filename = sanitizeFilename(filename)
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}

	text, err := uc.extractor.Extract(ctx, filename, mimeType, raw)
	if err != nil {
		return nil, fmt.Errorf("decode document text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode document text", errors.New("document has no text"))
	}

	if err := uc.replaceExisting(ctx, filename); err != nil {
		return nil, err
	}

	now := uc.now()
	doc := &domain.Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		MimeType:   mimeType,
		RawContent: text,
		CreatedAt:  now,
	}
	if err := uc.records.saveDocument(ctx, *doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if priority != nil && !priority.IsZero() {
		if err := uc.records.saveContext(ctx, doc.ID, *priority); err != nil {
			return nil, fmt.Errorf("save priority context: %w", err)
		}
	}
	if err := uc.queueRun(ctx, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

// Reprocess reclassifies an existing document, optionally under a new priority context.
func (uc *IngestDocumentUseCase) Reprocess(ctx context.Context, documentID string, priority *domain.PriorityContext) error {
	if _, err := uc.records.document(ctx, documentID); err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if priority != nil {
		if err := uc.records.saveContext(ctx, documentID, *priority); err != nil {
			return fmt.Errorf("save priority context: %w", err)
		}
	}
	return uc.queueRun(ctx, documentID)
}

func (uc *IngestDocumentUseCase) queueRun(ctx context.Context, documentID string) error {
	run := domain.ProcessingRun{
		DocumentID: documentID,
		Status:     domain.StatusUploaded,
		UpdatedAt:  uc.now(),
	}
	if err := uc.records.saveRun(ctx, run); err != nil {
		return fmt.Errorf("save processing run: %w", err)
	}
	if err := uc.queue.PublishDocumentIngested(ctx, documentID); err != nil {
		return fmt.Errorf("publish ingestion event: %w", err)
	}
	return nil
}

func (uc *IngestDocumentUseCase) replaceExisting(ctx context.Context, filename string) error {
	ids, err := uc.records.documentIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		doc, err := uc.records.document(ctx, id)
		if err != nil {
			if domain.IsKind(err, domain.ErrDocumentNotFound) {
				continue
			}
			return fmt.Errorf("fetch document by id: %w", err)
		}
		if doc.Filename != filename {
			continue
		}
		if _, err := uc.records.remove(ctx, id); err != nil {
			return fmt.Errorf("replace document %s: %w", id, err)
		}
		slog.Info("document_replaced", "document_id", id, "filename", filename)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "document.txt"
	}
	return base
}
