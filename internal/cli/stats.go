package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/mvp-joe/cortex-rag/internal/config"
	"github.com/mvp-joe/cortex-rag/internal/knowledge"
)

var statsBase string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a knowledge base's source and chunk counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsBase, "base", "", "knowledge base name (default from .cortex.yaml)")
}

func runStats(cmd *cobra.Command, args []string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := cfgpkg.LoadConfigFromDir(workspace)
	if err != nil {
		return err
	}
	baseName := statsBase
	if baseName == "" {
		baseName = cfg.DefaultBase
	}

	// The cache written after the last successful learn answers
	// without reopening the vector index; fall back to live counters
	// when it is absent.
	if cached, ok := knowledge.ReadStatsCache(workspace, baseName); ok {
		fmt.Printf("base:    %s\n", baseName)
		fmt.Printf("sources: %d\n", cached.SourcesCount)
		fmt.Printf("chunks:  %d\n", cached.ChunksCount)
		fmt.Printf("bytes:   %d\n", cached.TotalBytes)
		fmt.Printf("indexed: %s\n", cached.LastIndexedAt.Format("2006-01-02 15:04:05"))
		return nil
	}

	base, err := knowledge.Open(workspace, baseName, sharedEngine(), nil)
	if err != nil {
		return err
	}
	defer base.Close()

	st, err := base.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("base:    %s\n", baseName)
	fmt.Printf("sources: %d\n", st.SourceCount)
	fmt.Printf("chunks:  %d\n", st.ChunkCount)
	return nil
}
