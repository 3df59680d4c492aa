package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/embeddings"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/sources"
)

func TestWatcherRelearnsOnFileChange(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	path := writeFile(t, docs, "a.md", "Initial content before any edits.")

	opts := LearnOptions{BaseName: "kb", Paths: []string{docs}}
	engine := embeddings.NewEngine(nil)
	_, err := Learn(context.Background(), workspace, testBaseConfig("kb"), opts, engine, nil)
	require.NoError(t, err)

	w, err := NewWatcher(workspace, testBaseConfig("kb"), opts, engine, nil)
	require.NoError(t, err)
	w.debounceTime = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("Edited content after the watcher started."), 0o644))

	// The re-learn appends a fresh source record for the changed file;
	// the original record stays, the log being append-only. Reading the
	// tracker needs no index handle, so it cannot collide with the
	// watcher's in-flight writer lock.
	tracker := sources.New(workspace, "kb")
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		tracked, err := tracker.List()
		require.NoError(t, err)
		if len(tracked) >= 2 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("watcher did not re-learn the changed file in time")
}
