package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

type mockIngestor struct {
	uploaded []string
	bodies   []string
	priority *domain.PriorityContext
	err      error
}

func (m *mockIngestor) Upload(_ context.Context, filename, _ string, body io.Reader, priority *domain.PriorityContext) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	m.uploaded = append(m.uploaded, filename)
	m.bodies = append(m.bodies, string(raw))
	m.priority = priority
	return &domain.Document{ID: "doc-" + filename, Filename: filename}, nil
}

func (m *mockIngestor) Reprocess(context.Context, string, *domain.PriorityContext) error {
	return m.err
}

type mockKnowledge struct {
	docs      []domain.Document
	run       *domain.ProcessingRun
	analysis  *domain.AnalysisResult
	hits      []domain.SearchHit
	stats     domain.KnowledgeStats
	removed   bool
	err       error
	lastLimit int
	cleared   int
	clears    int
}

func (m *mockKnowledge) ListDocuments(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockKnowledge) GetDocument(_ context.Context, id string) (*domain.Document, *domain.ProcessingRun, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return &domain.Document{ID: id, Filename: "notes.txt", CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}, m.run, nil
}

func (m *mockKnowledge) GetAnalysis(context.Context, string) (*domain.AnalysisResult, error) {
	if m.analysis == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get analysis", io.EOF)
	}
	return m.analysis, nil
}

func (m *mockKnowledge) Search(_ context.Context, _ string, limit int) ([]domain.SearchHit, error) {
	m.lastLimit = limit
	return m.hits, m.err
}

func (m *mockKnowledge) Stats(context.Context) (domain.KnowledgeStats, error) {
	return m.stats, m.err
}

func (m *mockKnowledge) RemoveDocument(context.Context, string) (bool, error) {
	return m.removed, m.err
}

func (m *mockKnowledge) Clear(context.Context) (int, error) {
	m.clears++
	return m.cleared, m.err
}

// mockFilter suppresses any text it has already seen.
type mockFilter struct {
	seen map[string]bool
}

func (m *mockFilter) Submit(_ string, s domain.Suggestion) domain.Verdict {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[s.Text] {
		return domain.Verdict{State: domain.DedupSuppressed, Reason: "exact_match"}
	}
	m.seen[s.Text] = true
	return domain.Verdict{Accepted: true, State: domain.DedupAccepted}
}

type cobraRoot struct {
	cmd *cobra.Command
}

func (r *cobraRoot) has(name string) bool {
	for _, c := range r.cmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

func execute(root *cobra.Command, stdin string, args ...string) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
