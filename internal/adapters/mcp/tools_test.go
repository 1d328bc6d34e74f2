package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestNewServer_RequiresKnowledgeReader(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrMissingKnowledgeReader)
}

func TestNewServer_RegistersTools(t *testing.T) {
	server, err := NewServer(&mockKnowledgeReader{})
	require.NoError(t, err)
	assert.Equal(t, []string{"search_knowledge", "get_analysis", "knowledge_stats", "list_documents"}, server.Tools())
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns hits", func(t *testing.T) {
		reader := &mockKnowledgeReader{hits: []domain.SearchHit{
			{DocumentID: "doc-1", ItemID: "strategies-0", Type: domain.ItemStrategy, Text: "Timebox hard tasks", Score: 2},
		}}
		server, err := NewServer(reader)
		require.NoError(t, err)

		result, err := server.handleSearch(ctx, callRequest("search_knowledge", map[string]any{"query": "timebox", "limit": 5}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		var out searchOutput
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
		assert.Equal(t, 1, out.Count)
		assert.Equal(t, "Timebox hard tasks", out.Hits[0].Text)
		assert.Equal(t, 5, reader.lastLimit)
	})

	t.Run("default and capped limit", func(t *testing.T) {
		reader := &mockKnowledgeReader{}
		server, err := NewServer(reader)
		require.NoError(t, err)

		_, err = server.handleSearch(ctx, callRequest("search_knowledge", map[string]any{"query": "x"}))
		require.NoError(t, err)
		assert.Equal(t, defaultSearchLimit, reader.lastLimit)

		_, err = server.handleSearch(ctx, callRequest("search_knowledge", map[string]any{"query": "x", "limit": 500}))
		require.NoError(t, err)
		assert.Equal(t, maxSearchLimit, reader.lastLimit)
	})

	t.Run("missing query is a tool error", func(t *testing.T) {
		server, err := NewServer(&mockKnowledgeReader{})
		require.NoError(t, err)

		result, err := server.handleSearch(ctx, callRequest("search_knowledge", map[string]any{}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		server, err := NewServer(&mockKnowledgeReader{err: errors.New("pq: password authentication failed")})
		require.NoError(t, err)

		result, err := server.handleSearch(ctx, callRequest("search_knowledge", map[string]any{"query": "x"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, "internal error", resultText(t, result))
	})
}

func TestServer_handleGetAnalysis(t *testing.T) {
	ctx := context.Background()

	t.Run("returns analysis json", func(t *testing.T) {
		analysis := domain.NewAnalysisResult("doc-1", "notes.txt", time.Now())
		analysis.Summary = "Client struggles with focus"
		server, err := NewServer(&mockKnowledgeReader{analysis: &analysis})
		require.NoError(t, err)

		result, err := server.handleGetAnalysis(ctx, callRequest("get_analysis", map[string]any{"document_id": "doc-1"}))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), "Client struggles with focus")
	})

	t.Run("not found", func(t *testing.T) {
		server, err := NewServer(&mockKnowledgeReader{
			err: domain.WrapError(domain.ErrDocumentNotFound, "get analysis", errors.New("id=missing")),
		})
		require.NoError(t, err)

		result, err := server.handleGetAnalysis(ctx, callRequest("get_analysis", map[string]any{"document_id": "missing"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, "document not found", resultText(t, result))
	})
}

func TestServer_handleStatsAndList(t *testing.T) {
	ctx := context.Background()
	reader := &mockKnowledgeReader{
		stats: domain.KnowledgeStats{TotalDocuments: 2, TotalItems: 9, HealthStatus: "healthy"},
		docs:  []domain.Document{{ID: "doc-2", Filename: "b.md", CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}},
	}
	server, err := NewServer(reader)
	require.NoError(t, err)

	result, err := server.handleStats(ctx, callRequest("knowledge_stats", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"total_items": 9`)

	result, err = server.handleListDocuments(ctx, callRequest("list_documents", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"created_at": "2026-03-01T00:00:00Z"`)
}
