// Package mcp exposes the knowledge base read model as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

const (
	serverName    = "coaching-kb"
	serverVersion = "0.1.0"

	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

var ErrMissingKnowledgeReader = errors.New("mcp: knowledge reader is required")

type Server struct {
	knowledge ports.KnowledgeReader
	server    *server.MCPServer
	tools     []string
}

func NewServer(knowledge ports.KnowledgeReader) (*Server, error) {
	if knowledge == nil {
		return nil, ErrMissingKnowledgeReader
	}
	s := &Server{
		knowledge: knowledge,
		server: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s, nil
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	out := make([]string, len(s.tools))
	copy(out, s.tools)
	return out
}

// Serve speaks JSON-RPC over the given streams until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.server)
	err := stdio.Listen(ctx, in, out)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)) {
		return nil
	}
	return err
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.server.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}
