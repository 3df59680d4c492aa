package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/mvp-joe/cortex-rag/internal/config"
	mcppkg "github.com/mvp-joe/cortex-rag/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing ask, learn and keyword search as tools over stdio",
	Long: `Starts a Model Context Protocol server on stdio that exposes this
workspace's knowledge base through three tools: cortex_ask (retrieval +
answer synthesis), cortex_learn (ingest) and cortex_keyword (full-text
search over the ingested chunks). Intended for use by MCP
clients such as Claude Code rather than direct invocation.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := cfgpkg.LoadConfigFromDir(workspace)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "cortex mcp: serving cortex_ask, cortex_learn and cortex_keyword on stdio")
	srv := mcppkg.New(workspace, *cfg, sharedEngine())
	return srv.ServeStdio(context.Background())
}
