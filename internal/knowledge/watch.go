package knowledge

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/embeddings"
	"github.com/mvp-joe/cortex-rag/internal/storage/vecstore"
)

// Watcher watches a base's learned paths for changes and re-runs
// ingest after a debounce window. It re-invokes Learn itself, so a
// changed file's new content flows through the same
// parse/chunk/embed/index path a manual `learn` would take.
type Watcher struct {
	workspace  string
	defaultCfg KnowledgeBaseConfig
	opts       LearnOptions
	engine     *embeddings.Engine
	builder    func(path string) vecstore.Index

	fsw          *fsnotify.Watcher
	debounceTime time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewWatcher builds a Watcher over every root in opts.Paths. It adds
// each root (and its subdirectories) to the underlying fsnotify
// watcher recursively; newly created subdirectories are picked up as
// events arrive.
func NewWatcher(workspace string, defaultCfg KnowledgeBaseConfig, opts LearnOptions, engine *embeddings.Engine, builder func(path string) vecstore.Index) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, NewError(KindIO, err)
	}

	w := &Watcher{
		workspace:    workspace,
		defaultCfg:   defaultCfg,
		opts:         opts,
		engine:       engine,
		builder:      builder,
		fsw:          fsw,
		debounceTime: 500 * time.Millisecond,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	roots := opts.Paths
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, root := range roots {
		if err := w.addDirsRecursively(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Start runs the watch loop in a background goroutine until the
// context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop halts the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.fsw.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	relearnCh := make(chan struct{}, 1)
	changed := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.shouldProcessEvent(event) {
				continue
			}
			changed[event.Name] = true

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirsRecursively(event.Name); err != nil {
						log.Printf("watch: failed to add new directory %s: %v", event.Name, err)
					}
				}
			}

			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.AfterFunc(w.debounceTime, func() {
				select {
				case relearnCh <- struct{}{}:
				default:
				}
			})

		case <-relearnCh:
			w.relearn(ctx, changed)
			changed = make(map[string]bool)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watch: fsnotify error: %v", err)
		}
	}
}

// relearn re-runs ingest over the watcher's configured paths. It does
// not scope the run to just the changed files: Learn already skips
// files whose content hash matches an indexed source, so a full
// re-walk stays cheap in the common case of a few edited files.
func (w *Watcher) relearn(ctx context.Context, changed map[string]bool) {
	if len(changed) == 0 {
		return
	}
	log.Printf("watch: re-learning after changes to %d path(s)", len(changed))
	start := time.Now()
	stats, err := Learn(ctx, w.workspace, w.defaultCfg, w.opts, w.engine, w.builder)
	if err != nil {
		log.Printf("watch: learn failed: %v", err)
		return
	}
	log.Printf("watch: learn complete in %v (%d sources, %d chunks)",
		time.Since(start), stats.SourcesCount, stats.ChunksCount)
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return passesFilter(event.Name, w.opts.Include, w.opts.Exclude)
}

func (w *Watcher) addDirsRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("watch: error accessing %s: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		norm := filepath.ToSlash(path) + "/"
		for _, b := range builtinExcludes {
			if len(b) > 0 && b[len(b)-1] == '/' && strings.Contains(norm, b) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			log.Printf("watch: failed to watch directory %s: %v", path, err)
			return nil
		}
		return nil
	})
}
