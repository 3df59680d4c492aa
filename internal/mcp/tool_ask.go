package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mvp-joe/cortex-rag/internal/knowledge"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/rag"
)

func (s *Server) registerAskTool() {
	tool := mcp.NewTool(
		"cortex_ask",
		mcp.WithDescription("Ask a question grounded in a workspace knowledge base, returning a synthesized answer and its source chunks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer")),
		mcp.WithString("base", mcp.Description("Knowledge base name (defaults to the workspace's default_base)")),
		mcp.WithNumber("top_k", mcp.Description("Number of chunks to retrieve (default 5)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.mcp.AddTool(tool, s.handleAsk)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return toolError("invalid arguments format")
	}

	query := argString(args, "query", "")
	if query == "" {
		return toolError("query parameter is required")
	}
	baseName := argString(args, "base", s.cfg.DefaultBase)
	topK := argInt(args, "top_k", 5)

	base, err := knowledge.Open(s.workspace, baseName, s.engine, nil)
	if err != nil {
		return toolError("opening base %q: %v", baseName, err)
	}
	defer base.Close()

	ec := base.Config.EmbeddingConfig()
	provider, err := base.Engine.GetProvider(baseName, ec)
	if err != nil {
		return toolError("resolving embedding provider: %v", err)
	}

	client, err := s.llmClient()
	if err != nil {
		return toolError("resolving LLM client: %v", err)
	}

	resp, err := rag.Ask(ctx, base.Index, provider, client, s.cfg.LLM.Model, rag.AskOptions{
		Query: query,
		TopK:  topK,
	})
	if err != nil {
		return toolError("ask failed: %v", err)
	}

	var sb strings.Builder
	sb.WriteString(resp.Answer)
	if resp.LowConfidence {
		sb.WriteString("\n\n(low confidence)")
	}
	if len(resp.Sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, src := range resp.Sources {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", src.Source, src.Location, src.Snippet)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}
