// Package mcp exposes the knowledge engine's ask, learn, and keyword
// search operations as tools over the Model Context Protocol, one file
// per tool.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	cfgpkg "github.com/mvp-joe/cortex-rag/internal/config"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/embeddings"
	"github.com/mvp-joe/cortex-rag/internal/llm"
)

// Server wraps an MCP stdio server exposing the cortex_ask,
// cortex_learn and cortex_keyword tools against a fixed workspace.
type Server struct {
	workspace string
	cfg       cfgpkg.Config
	engine    *embeddings.Engine
	mcp       *server.MCPServer
}

// New builds a Server rooted at workspace, using cfg for defaults
// (default base, LLM provider) shared by all three tools.
func New(workspace string, cfg cfgpkg.Config, engine *embeddings.Engine) *Server {
	s := &Server{
		workspace: workspace,
		cfg:       cfg,
		engine:    engine,
		mcp: server.NewMCPServer(
			"cortex-rag-mcp",
			"0.1.0",
			server.WithToolCapabilities(true),
		),
	}
	s.registerAskTool()
	s.registerLearnTool()
	s.registerKeywordTool()
	return s
}

// ServeStdio runs the MCP server on stdio until the client disconnects.
// ctx is not consulted; cancelling it does not stop the server.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) llmClient() (llm.Client, error) {
	return llm.New(s.cfg.LLM.Provider, s.cfg.LLM.Endpoint, s.cfg.LLM.APIKey)
}

func argString(args map[string]interface{}, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func argInt(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func toolError(format string, a ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, a...)), nil
}
