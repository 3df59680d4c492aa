package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mvp-joe/cortex-rag/internal/knowledge"
)

func (s *Server) registerKeywordTool() {
	tool := mcp.NewTool(
		"cortex_keyword",
		mcp.WithDescription(`Full-text keyword search over ingested chunks using bleve query syntax.

Supports field scoping (file_name:foo.go, language:go), boolean
operators (AND, OR, NOT), phrase search ("exact phrase"), wildcards
(foo*), and fuzzy matching (foo~1). Use this for exact identifiers and
strings the semantic cortex_ask retrieval can miss.`),
		mcp.WithString("query", mcp.Required(), mcp.Description("bleve query_string search")),
		mcp.WithString("base", mcp.Description("Knowledge base name (defaults to the workspace's default_base)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 15)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.mcp.AddTool(tool, s.handleKeyword)
}

func (s *Server) handleKeyword(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return toolError("invalid arguments format")
	}

	query := argString(args, "query", "")
	if query == "" {
		return toolError("query parameter is required")
	}
	baseName := argString(args, "base", s.cfg.DefaultBase)
	limit := argInt(args, "limit", 15)

	base, err := knowledge.Open(s.workspace, baseName, s.engine, nil)
	if err != nil {
		return toolError("opening base %q: %v", baseName, err)
	}
	defer base.Close()

	hits, err := base.Keyword.Search(query, limit)
	if err != nil {
		return toolError("keyword search failed: %v", err)
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}

	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "%s (score %.3f)\n", h.ChunkID, h.Score)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
