package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func newTestRoot(t *testing.T, svc Services) *cobraRoot {
	t.Helper()
	if svc.Ingest == nil {
		svc.Ingest = &mockIngestor{}
	}
	if svc.Knowledge == nil {
		svc.Knowledge = &mockKnowledge{}
	}
	root, err := NewRootCommand(svc)
	require.NoError(t, err)
	return &cobraRoot{cmd: root}
}

func TestNewRootCommand_RequiresServices(t *testing.T) {
	_, err := NewRootCommand(Services{})
	assert.ErrorIs(t, err, ErrMissingServices)
}

func TestRootCommand_DedupOnlyWithFilter(t *testing.T) {
	without := newTestRoot(t, Services{})
	assert.False(t, without.has("dedup"))

	with := newTestRoot(t, Services{Suggestions: &mockFilter{}})
	assert.True(t, with.has("dedup"))
	assert.True(t, with.has("ingest"))
	assert.True(t, with.has("search"))
}

func TestIngestCmd_UploadsEachFileWithPriority(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "session one.txt")
	second := filepath.Join(dir, "playbook.md")
	require.NoError(t, os.WriteFile(first, []byte("first body"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("second body"), 0o644))

	ingest := &mockIngestor{}
	knowledge := &mockKnowledge{run: &domain.ProcessingRun{Status: domain.StatusReady}}
	root := newTestRoot(t, Services{Ingest: ingest, Knowledge: knowledge})

	out, _, err := execute(root.cmd, "", "ingest", "--critical-terms", "price, budget", first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"session one.txt", "playbook.md"}, ingest.uploaded)
	assert.Equal(t, []string{"first body", "second body"}, ingest.bodies)
	require.NotNil(t, ingest.priority)
	assert.Equal(t, []string{"price", "budget"}, ingest.priority.CriticalTerms)
	assert.Contains(t, out, "playbook.md  ready")
}

func TestIngestCmd_RequiresFile(t *testing.T) {
	root := newTestRoot(t, Services{})
	_, _, err := execute(root.cmd, "", "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIngestCmd_MissingFile(t *testing.T) {
	root := newTestRoot(t, Services{})
	_, _, err := execute(root.cmd, "", "ingest", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestShowCmd_PrintsItemsByType(t *testing.T) {
	analysis := domain.NewAnalysisResult("doc-1", "notes.txt", time.Time{})
	analysis.Summary = "Negotiation basics"
	analysis.Append(domain.ExtractedItem{ID: "i1", Type: domain.ItemStrategy, Text: "Anchor high"})
	knowledge := &mockKnowledge{
		run:      &domain.ProcessingRun{Status: domain.StatusReady},
		analysis: &analysis,
	}
	root := newTestRoot(t, Services{Knowledge: knowledge})

	out, _, err := execute(root.cmd, "", "show", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary:  Negotiation basics")
	assert.Contains(t, out, "strategy (1)")
	assert.Contains(t, out, "  - Anchor high")
}

func TestShowCmd_WithoutAnalysis(t *testing.T) {
	root := newTestRoot(t, Services{Knowledge: &mockKnowledge{}})
	out, _, err := execute(root.cmd, "", "show", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "No analysis yet.")
}

func TestDeleteCmd_ReportsOutcome(t *testing.T) {
	root := newTestRoot(t, Services{Knowledge: &mockKnowledge{removed: true}})
	out, _, err := execute(root.cmd, "", "delete", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed doc-1.")

	root = newTestRoot(t, Services{Knowledge: &mockKnowledge{}})
	out, _, err = execute(root.cmd, "", "delete", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to remove")
}

func TestClearCmd_RequiresConfirmation(t *testing.T) {
	knowledge := &mockKnowledge{cleared: 2}
	root := newTestRoot(t, Services{Knowledge: knowledge})
	_, _, err := execute(root.cmd, "", "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Zero(t, knowledge.clears)

	root = newTestRoot(t, Services{Knowledge: knowledge})
	out, _, err := execute(root.cmd, "", "clear", "--yes")
	require.NoError(t, err)
	assert.Equal(t, 1, knowledge.clears)
	assert.Contains(t, out, "Cleared 2 documents.")
}

func TestSearchCmd_HonoursLimitFlag(t *testing.T) {
	knowledge := &mockKnowledge{hits: []domain.SearchHit{{Text: "Mirror the last words", Type: domain.ItemStrategy, Filename: "notes.txt", Score: 1}}}
	root := newTestRoot(t, Services{Knowledge: knowledge})

	out, _, err := execute(root.cmd, "", "search", "-n", "3", "mirror")
	require.NoError(t, err)
	assert.Equal(t, 3, knowledge.lastLimit)
	assert.Contains(t, out, "[1] Mirror the last words (1.00)")
}

func TestSearchCmd_DefaultLimitAndEmpty(t *testing.T) {
	knowledge := &mockKnowledge{}
	root := newTestRoot(t, Services{Knowledge: knowledge})

	out, _, err := execute(root.cmd, "", "search", "anything")
	require.NoError(t, err)
	assert.Equal(t, 5, knowledge.lastLimit)
	assert.Contains(t, out, "No results found.")
}

func TestStatsCmd_JSON(t *testing.T) {
	knowledge := &mockKnowledge{stats: domain.KnowledgeStats{TotalDocuments: 3, HealthStatus: "healthy"}}
	root := newTestRoot(t, Services{Knowledge: knowledge})

	out, _, err := execute(root.cmd, "", "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_documents": 3`)
}

func TestDedupCmd_PrintsAcceptedLines(t *testing.T) {
	root := newTestRoot(t, Services{Suggestions: &mockFilter{}})

	stdin := "Ask about the budget\n\nAsk about the budget\nLabel their concern\n"
	out, errOut, err := execute(root.cmd, stdin, "dedup", "-v")
	require.NoError(t, err)
	assert.Equal(t, "Ask about the budget\nLabel their concern\n", out)
	assert.Contains(t, errOut, "suppressed (exact_match): Ask about the budget")
}
