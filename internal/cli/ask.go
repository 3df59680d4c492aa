package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/mvp-joe/cortex-rag/internal/config"
	"github.com/mvp-joe/cortex-rag/internal/knowledge"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/rag"
	"github.com/mvp-joe/cortex-rag/internal/llm"
)

var (
	askBase       string
	askTopK       int
	askAutoFilter bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question grounded in a knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askBase, "base", "", "knowledge base name (default from .cortex.yaml)")
	askCmd.Flags().IntVar(&askTopK, "top-k", 5, "number of chunks to retrieve")
	askCmd.Flags().BoolVar(&askAutoFilter, "auto-filter", false, "derive metadata filters from the question text")
}

func runAsk(cmd *cobra.Command, args []string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	cfg, err := cfgpkg.LoadConfigFromDir(workspace)
	if err != nil {
		return err
	}
	baseName := askBase
	if baseName == "" {
		baseName = cfg.DefaultBase
	}

	base, err := knowledge.Open(workspace, baseName, sharedEngine(), nil)
	if err != nil {
		return err
	}
	defer base.Close()

	ec := base.Config.EmbeddingConfig()
	provider, err := base.Engine.GetProvider(baseName, ec)
	if err != nil {
		return err
	}

	client, err := llm.New(cfg.LLM.Provider, cfg.LLM.Endpoint, cfg.LLM.APIKey)
	if err != nil {
		return err
	}

	opts := rag.AskOptions{Query: query, TopK: askTopK}
	if askAutoFilter {
		opts.Predicates = rag.AutoDerivePredicates(query)
	}
	resp, err := rag.Ask(context.Background(), base.Index, provider, client, cfg.LLM.Model, opts)
	if err != nil {
		return err
	}

	fmt.Println(resp.Answer)
	if resp.LowConfidence {
		fmt.Fprintln(os.Stderr, "(low confidence)")
	}
	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range resp.Sources {
			fmt.Printf("  - %s (%s): %s\n", s.Source, s.Location, s.Snippet)
		}
	}
	return nil
}
