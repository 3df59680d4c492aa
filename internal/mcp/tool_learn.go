package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mvp-joe/cortex-rag/internal/knowledge"
)

func (s *Server) registerLearnTool() {
	tool := mcp.NewTool(
		"cortex_learn",
		mcp.WithDescription("Ingest one or more paths into a workspace knowledge base so cortex_ask can retrieve them."),
		mcp.WithString("base", mcp.Description("Knowledge base name (defaults to the workspace's default_base)")),
		mcp.WithArray("paths", mcp.Description("Paths to ingest, relative to the workspace root (defaults to the whole workspace)")),
		mcp.WithBoolean("reset", mcp.Description("Clear the base before ingesting")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.mcp.AddTool(tool, s.handleLearn)
}

func (s *Server) handleLearn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return toolError("invalid arguments format")
	}

	baseName := argString(args, "base", s.cfg.DefaultBase)
	reset, _ := args["reset"].(bool)

	paths := []string{"."}
	if raw, ok := args["paths"].([]interface{}); ok && len(raw) > 0 {
		paths = make([]string, 0, len(raw))
		for _, p := range raw {
			if ps, ok := p.(string); ok {
				paths = append(paths, ps)
			}
		}
	}

	defaultCfg := knowledge.KnowledgeBaseConfig{
		Name:             baseName,
		Provider:         s.cfg.Embedding.Provider,
		Model:            s.cfg.Embedding.Model,
		ChunkSize:        s.cfg.Chunking.ChunkSize,
		ChunkOverlap:     s.cfg.Chunking.ChunkOverlap,
		EmbeddingDim:     s.cfg.Embedding.Dimensions,
		MaxContextTokens: 4000,
	}

	stats, err := knowledge.Learn(ctx, s.workspace, defaultCfg, knowledge.LearnOptions{
		BaseName: baseName,
		Paths:    paths,
		Reset:    reset,
		Endpoint: s.cfg.Embedding.Endpoint,
		APIKey:   s.cfg.Embedding.APIKey,
	}, s.engine, nil)
	if err != nil {
		return toolError("learn failed: %v", err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Indexed %d sources, %d chunks, %d bytes in %s",
		stats.SourcesCount, stats.ChunksCount, stats.BytesProcessed, stats.Duration)), nil
}
