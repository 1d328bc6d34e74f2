package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func (s *Server) registerTools() {
	s.addTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Search extracted coaching knowledge (principles, strategies, insights, guidance, examples)"),
		mcp.WithString("query", mcp.Required(), mcp.Description("free-text search query")),
		mcp.WithNumber("limit", mcp.Description("maximum number of hits to return (default 10, max 50)")),
	), s.handleSearch)

	s.addTool(mcp.NewTool("get_analysis",
		mcp.WithDescription("Return the final analysis of one processed document"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("document identifier")),
	), s.handleGetAnalysis)

	s.addTool(mcp.NewTool("knowledge_stats",
		mcp.WithDescription("Report knowledge base totals and health"),
	), s.handleStats)

	s.addTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List ingested documents, newest first"),
	), s.handleListDocuments)
}

type searchOutput struct {
	Query string             `json:"query"`
	Count int                `json:"count"`
	Hits  []domain.SearchHit `json:"hits"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	hits, err := s.knowledge.Search(ctx, query, limit)
	if err != nil {
		return toolError("search_knowledge", err), nil
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	return jsonResult(searchOutput{Query: query, Count: len(hits), Hits: hits})
}

func (s *Server) handleGetAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := req.RequireString("document_id")
	if err != nil || strings.TrimSpace(documentID) == "" {
		return mcp.NewToolResultError("document_id is required"), nil
	}
	result, err := s.knowledge.GetAnalysis(ctx, documentID)
	if err != nil {
		return toolError("get_analysis", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.knowledge.Stats(ctx)
	if err != nil {
		return toolError("knowledge_stats", err), nil
	}
	return jsonResult(stats)
}

type documentOutput struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleListDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.knowledge.ListDocuments(ctx)
	if err != nil {
		return toolError("list_documents", err), nil
	}
	out := make([]documentOutput, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentOutput{
			ID:        doc.ID,
			Filename:  doc.Filename,
			MimeType:  doc.MimeType,
			CreatedAt: doc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return jsonResult(map[string]any{"documents": out})
}

// toolError reports failures in-band so the calling model can see and react to them.
func toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return mcp.NewToolResultError("document not found")
	case domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	case domain.IsKind(err, domain.ErrServiceUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return mcp.NewToolResultError(domain.MessageServiceUnavailable)
	default:
		slog.Error("mcp_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
