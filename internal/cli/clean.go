package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/mvp-joe/cortex-rag/internal/config"
	"github.com/mvp-joe/cortex-rag/internal/knowledge"
)

var cleanBase string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all chunks and source records from a knowledge base",
	Long: `Clean resets a knowledge base's Vector Index and clears its Source
Tracker, removing every ingested chunk and source record together. The
base's config.yaml (provider, model, dimensions) is preserved.`,
	RunE: runCleanBase,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringVar(&cleanBase, "base", "", "knowledge base name (default from .cortex.yaml)")
}

func runCleanBase(cmd *cobra.Command, args []string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := cfgpkg.LoadConfigFromDir(workspace)
	if err != nil {
		return err
	}
	baseName := cleanBase
	if baseName == "" {
		baseName = cfg.DefaultBase
	}

	base, err := knowledge.Open(workspace, baseName, sharedEngine(), nil)
	if err != nil {
		return err
	}
	defer base.Close()

	if err := base.Clean(context.Background()); err != nil {
		return err
	}

	fmt.Printf("Cleaned knowledge base %q\n", baseName)
	return nil
}
