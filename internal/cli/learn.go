package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	cfgpkg "github.com/mvp-joe/cortex-rag/internal/config"
	"github.com/mvp-joe/cortex-rag/internal/knowledge"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/progress"
)

var (
	learnBase     string
	learnInclude  []string
	learnExclude  []string
	learnReset    bool
	learnProvider string
	learnModel    string
	learnBackend  string
	learnWatch    bool
)

var learnCmd = &cobra.Command{
	Use:   "learn [paths...]",
	Short: "Ingest files into a knowledge base",
	Long: `Learn walks the given paths (defaulting to the current directory),
chunks and embeds every matching file, and stores the result in a
workspace-local knowledge base under .guided/knowledge/<base>/.`,
	RunE: runLearn,
}

func init() {
	rootCmd.AddCommand(learnCmd)
	learnCmd.Flags().StringVar(&learnBase, "base", "", "knowledge base name (default from .cortex.yaml)")
	learnCmd.Flags().StringSliceVar(&learnInclude, "include", nil, "only ingest paths containing one of these substrings")
	learnCmd.Flags().StringSliceVar(&learnExclude, "exclude", nil, "skip paths containing one of these substrings")
	learnCmd.Flags().BoolVar(&learnReset, "reset", false, "clear the base before ingesting")
	learnCmd.Flags().StringVar(&learnProvider, "provider", "", "override the embedding provider")
	learnCmd.Flags().StringVar(&learnModel, "model", "", "override the embedding model")
	learnCmd.Flags().StringVar(&learnBackend, "backend", "", "override the vector index backend (sqlite or memory)")
	learnCmd.Flags().BoolVar(&learnWatch, "watch", false, "keep running, re-ingesting paths as files change until interrupted")
}

func runLearn(cmd *cobra.Command, args []string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := cfgpkg.LoadConfigFromDir(workspace)
	if err != nil {
		return err
	}

	baseName := learnBase
	if baseName == "" {
		baseName = cfg.DefaultBase
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var bar *progressbar.ProgressBar
	onProgress := func(ev progress.Event) {
		if bar == nil || bar.GetMax() != ev.Total {
			bar = progressbar.Default(int64(max(ev.Total, 1)), string(ev.Phase))
		}
		bar.Describe(fmt.Sprintf("%s: %s", ev.Phase, ev.Message))
		bar.Set(ev.Current)
	}

	defaultCfg := knowledge.KnowledgeBaseConfig{
		Name:             baseName,
		Provider:         cfg.Embedding.Provider,
		Model:            cfg.Embedding.Model,
		ChunkSize:        cfg.Chunking.ChunkSize,
		ChunkOverlap:     cfg.Chunking.ChunkOverlap,
		EmbeddingDim:     cfg.Embedding.Dimensions,
		MaxContextTokens: 4000,
	}

	opts := knowledge.LearnOptions{
		BaseName: baseName,
		Paths:    paths,
		Include:  learnInclude,
		Exclude:  learnExclude,
		Reset:    learnReset,
		Provider: learnProvider,
		Model:    learnModel,
		Backend:  learnBackend,
		Endpoint: cfg.Embedding.Endpoint,
		APIKey:   cfg.Embedding.APIKey,
		Progress: onProgress,
	}

	ctx := context.Background()
	stats, err := knowledge.Learn(ctx, workspace, defaultCfg, opts, sharedEngine(), nil)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d sources, %d chunks, %d bytes in %s\n",
		stats.SourcesCount, stats.ChunksCount, stats.BytesProcessed, stats.Duration)

	if !learnWatch {
		return nil
	}

	watcher, err := knowledge.NewWatcher(workspace, defaultCfg, opts, sharedEngine(), nil)
	if err != nil {
		return err
	}
	watchCtx, cancel := context.WithCancel(ctx)
	watcher.Start(watchCtx)

	fmt.Println("watching for changes; press Ctrl+C to stop")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	cancel()
	watcher.Stop()
	return nil
}
