// Package knowledge ties the parser, metadata extractor, chunk
// pipeline, embedding engine, vector index, and source tracker together
// into the per-base ingest orchestrator (Learn). CategorizedError and
// its Kind constants, re-exported in errors.go, are the shared error
// vocabulary every component in this tree returns.
package knowledge

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/embeddings"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/parse"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/progress"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/sources"
	"github.com/mvp-joe/cortex-rag/internal/storage/keyword"
	"github.com/mvp-joe/cortex-rag/internal/storage/vecstore"
)

// batchSize is the fixed number of files processed per
// embed-then-index round trip.
const batchSize = 10

// KnowledgeBaseConfig is the persisted per-base configuration, stored
// as YAML at <workspace>/.guided/knowledge/<base>/config.yaml.
type KnowledgeBaseConfig struct {
	Name             string `yaml:"name"`
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	ChunkSize        int    `yaml:"chunkSize"`
	ChunkOverlap     int    `yaml:"chunkOverlap"`
	EmbeddingDim     int    `yaml:"embeddingDim"`
	MaxContextTokens int    `yaml:"maxContextTokens"`

	// Backend selects the vector index implementation: "sqlite" (the
	// default, durable sqlite-vec store) or "memory" (chromem-go,
	// linear-scan, for bases small enough that loading the corpus
	// whole costs less than SQLite's disk round-trips).
	Backend string `yaml:"backend,omitempty"`

	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"-"` // never persisted; supplied per-invocation
}

// EmbeddingConfig adapts the persisted knobs into the Embedding
// Engine's Config shape.
func (c KnowledgeBaseConfig) EmbeddingConfig() embeddings.Config {
	return embeddings.Config{
		Provider:          c.Provider,
		Model:             c.Model,
		Dimensions:        c.EmbeddingDim,
		Normalize:         true,
		BatchSize:         100,
		MinRelevanceScore: embeddings.DefaultMinRelevanceScore(c.Provider),
		Endpoint:          c.Endpoint,
		APIKey:            c.APIKey,
	}
}

// ChunkConfig adapts the persisted coarse knobs into the chunk
// pipeline's finer Config.
func (c KnowledgeBaseConfig) ChunkConfig() chunk.Config {
	return chunk.FromBaseKnobs(c.ChunkSize, c.ChunkOverlap)
}

// baseDir returns <workspace>/.guided/knowledge/<name>.
func baseDir(workspace, name string) string {
	return filepath.Join(workspace, ".guided", "knowledge", name)
}

// LoadConfig reads a base's config.yaml, or reports KindBaseMissing if
// the base has never been created.
func LoadConfig(workspace, name string) (KnowledgeBaseConfig, error) {
	path := filepath.Join(baseDir(workspace, name), "config.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return KnowledgeBaseConfig{}, Errorf(KindBaseMissing, "knowledge base %q does not exist; run learn first", name)
	}
	if err != nil {
		return KnowledgeBaseConfig{}, NewError(KindIO, err)
	}
	var cfg KnowledgeBaseConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return KnowledgeBaseConfig{}, Errorf(KindConfigInvalid, "parsing %s: %v", path, err)
	}
	return cfg, nil
}

// SaveConfig persists cfg as <base>/config.yaml, creating the base
// directory if needed.
func SaveConfig(workspace string, cfg KnowledgeBaseConfig) error {
	dir := baseDir(workspace, cfg.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewError(KindIO, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return NewError(KindIO, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644); err != nil {
		return NewError(KindIO, err)
	}
	return nil
}

// Base is an opened knowledge base: its config, vector index, keyword
// index, source tracker, and the shared embedding engine it was opened
// with. A Base holds no lock itself; Learn takes the base's writer lock
// before opening one.
type Base struct {
	Workspace string
	Config    KnowledgeBaseConfig

	Index    vecstore.Index
	Keyword  *keyword.Index
	Tracker  *sources.Tracker
	Engine   *embeddings.Engine
}

// Open loads an existing base's config (reporting KindBaseMissing if
// the base has never been created; Learn is what creates one) and
// wires its Vector Index, Source Tracker, and a shared Embedding Engine.
// Engine may be shared across many open bases; pass nil to construct a
// private one.
func Open(workspace, name string, engine *embeddings.Engine, indexBuilder func(path string) vecstore.Index) (*Base, error) {
	cfg, err := LoadConfig(workspace, name)
	if err != nil {
		return nil, err
	}
	return open(workspace, cfg, engine, indexBuilder)
}

func open(workspace string, cfg KnowledgeBaseConfig, engine *embeddings.Engine, indexBuilder func(path string) vecstore.Index) (*Base, error) {
	if engine == nil {
		engine = embeddings.NewEngine(nil)
	}
	dir := baseDir(workspace, cfg.Name)
	if indexBuilder == nil {
		indexBuilder = defaultIndexBuilder(cfg.Backend)
	}
	idx := indexBuilder(filepath.Join(dir, "index", indexFileName(cfg.Backend)))
	if err := idx.Open(context.Background(), cfg.EmbeddingDim); err != nil {
		return nil, err
	}

	kw := keyword.New(filepath.Join(dir, "index", "keyword.bleve"))
	if err := kw.Open(); err != nil {
		idx.Close()
		return nil, err
	}

	return &Base{
		Workspace: workspace,
		Config:    cfg,
		Index:     idx,
		Keyword:   kw,
		Tracker:   sources.New(workspace, cfg.Name),
		Engine:    engine,
	}, nil
}

// defaultIndexBuilder picks the Vector Index backend named by backend
// ("memory" for the chromem-go linear-scan store, anything else
// including "" for the default durable sqlite-vec store).
func defaultIndexBuilder(backend string) func(path string) vecstore.Index {
	if backend == "memory" {
		return func(path string) vecstore.Index { return vecstore.NewMemory(path) }
	}
	return func(path string) vecstore.Index { return vecstore.NewSQLite(path) }
}

// indexFileName names the on-disk index path per backend: a single
// SQLite database file, or a directory chromem-go's persistent DB owns.
func indexFileName(backend string) string {
	if backend == "memory" {
		return "memory"
	}
	return "vectors.db"
}

// LearnOptions configures one ingest run.
type LearnOptions struct {
	BaseName string
	Paths    []string
	Include  []string
	Exclude  []string
	Reset    bool

	Provider string // overrides the base's configured provider, if set
	Model    string
	Endpoint string
	APIKey   string
	Backend  string // overrides the base's configured Vector Index backend, if set

	ChunkSize    int
	ChunkOverlap int

	Progress progress.Func
}

// LearnStats summarizes a completed (or partially completed, if
// cancelled) ingest run.
type LearnStats struct {
	SourcesCount   int
	ChunksCount    int
	BytesProcessed int64
	Duration       time.Duration
}

// builtinExcludes are directory/file substrings ingest always skips:
// VCS dirs, build outputs, caches, minified assets, lockfiles.
var builtinExcludes = []string{
	".git/", ".svn/", ".hg/",
	"node_modules/", "vendor/", "target/", "dist/", "build/", ".cache/",
	"__pycache__/",
	".min.js", ".min.css",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum",
}

var binaryAssetExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".zip": true, ".tar": true, ".gz": true, ".exe": true, ".bin": true,
	".so": true, ".dylib": true, ".dll": true, ".pdf": true,
}

// Learn runs one ingest pass: load/create the base config, open the
// vector index (resetting it if requested), discover and filter files,
// process them in fixed-size batches, and track each successfully
// indexed source. An exclusive flock on the base directory is held for
// the duration; one writer per base at a time.
func Learn(ctx context.Context, workspace string, defaultCfg KnowledgeBaseConfig, opts LearnOptions, engine *embeddings.Engine, indexBuilder func(path string) vecstore.Index) (LearnStats, error) {
	start := time.Now()
	reporter := progress.NewReporter(opts.Progress)

	hadPrior := true
	prior, err := LoadConfig(workspace, opts.BaseName)
	cfg := prior
	if err != nil {
		if !Is(err, KindBaseMissing) {
			return LearnStats{}, err
		}
		hadPrior = false
		cfg = defaultCfg
		cfg.Name = opts.BaseName
	}
	applyOverrides(&cfg, opts)

	// A base's vectors all come from one (provider, model, dimensions)
	// triple. Changing any of them requires a reset; otherwise old and
	// new embeddings would share an index without sharing a space.
	if hadPrior && !opts.Reset {
		if err := cfg.EmbeddingConfig().ValidateConsistency(prior.EmbeddingConfig()); err != nil {
			return LearnStats{}, err
		}
	}
	if err := SaveConfig(workspace, cfg); err != nil {
		return LearnStats{}, err
	}

	dir := baseDir(workspace, cfg.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return LearnStats{}, NewError(KindIO, err)
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return LearnStats{}, NewError(KindIO, err)
	}
	if !locked {
		return LearnStats{}, Errorf(KindIO, "base %q is locked by another writer", cfg.Name)
	}
	defer lock.Unlock()

	base, err := open(workspace, cfg, engine, indexBuilder)
	if err != nil {
		return LearnStats{}, err
	}
	defer base.Close()

	if opts.Reset {
		if err := base.Index.Reset(ctx); err != nil {
			return LearnStats{}, err
		}
		if err := base.Tracker.Clear(); err != nil {
			return LearnStats{}, err
		}
	}

	reporter.Emit(progress.PhaseDiscover, 0, 0, "discovering files")
	files, err := discover(opts.Paths, opts.Include, opts.Exclude)
	if err != nil {
		return LearnStats{}, err
	}
	reporter.Emit(progress.PhaseDiscover, len(files), len(files), "discovery complete")

	// Previously indexed sources, keyed by path: files whose content
	// hash is unchanged are skipped, and changed files replace their
	// old chunks instead of accumulating duplicates.
	indexed, err := base.Index.ListSources(ctx)
	if err != nil {
		return LearnStats{}, err
	}

	stats := LearnStats{}
	cc := cfg.ChunkConfig()
	ec := cfg.EmbeddingConfig()
	pipeline := chunk.NewPipeline(cc)

	for i := 0; i < len(files); i += batchSize {
		select {
		case <-ctx.Done():
			return stats, NewError(KindCancelled, ctx.Err())
		default:
		}

		batch := files[i:min(i+batchSize, len(files))]
		batchStats, err := processBatch(ctx, base, pipeline, ec, batch, indexed, reporter, cfg.Name)
		if err != nil {
			return stats, err
		}
		stats.SourcesCount += batchStats.SourcesCount
		stats.ChunksCount += batchStats.ChunksCount
		stats.BytesProcessed += batchStats.BytesProcessed
	}

	if err := base.Index.Flush(ctx); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)

	if total, err := base.Index.Stats(ctx); err == nil {
		var totalBytes int64
		if tracked, err := base.Tracker.List(); err == nil {
			for _, s := range tracked {
				totalBytes += s.ByteCount
			}
		}
		// Cache failures never fail the ingest; the file is rebuilt on
		// the next successful run.
		_ = WriteStatsCache(workspace, cfg.Name, CachedStats{
			SourcesCount:  total.SourceCount,
			ChunksCount:   total.ChunkCount,
			TotalBytes:    totalBytes,
			LastIndexedAt: time.Now(),
		})
	}
	return stats, nil
}

func applyOverrides(cfg *KnowledgeBaseConfig, opts LearnOptions) {
	if opts.Provider != "" {
		cfg.Provider = opts.Provider
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	if opts.ChunkSize > 0 {
		cfg.ChunkSize = opts.ChunkSize
	}
	if opts.ChunkOverlap > 0 {
		cfg.ChunkOverlap = opts.ChunkOverlap
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
}

// processBatch parses, chunks, and enriches every file in batch
// sequentially, then issues one batched embed and one batched upsert
// call for the whole set, and tracks each file's source record only
// after the batch is durably indexed. A file that fails parse/chunk is
// skipped; a batch-level embedding or upsert failure aborts the run.
// Files already indexed with an identical content hash are skipped;
// files indexed with a different hash have their old chunks deleted
// before the new ones land.
func processBatch(ctx context.Context, base *Base, pipeline *chunk.Pipeline, ec embeddings.Config, batch []string, indexed map[string]vecstore.SourceInfo, reporter *progress.Reporter, baseName string) (LearnStats, error) {
	type pending struct {
		path       string
		sourceID   string
		replaces   string // prior source_id when re-ingesting a changed file
		chunks     []chunk.Chunk
		byteCount  int64
		contentSum string
	}

	var work []pending
	for _, path := range batch {
		reporter.Emit(progress.PhaseParse, 0, 0, "parsing "+path)
		text, err := parse.Parse(path)
		if err != nil {
			log.Printf("learn: skipping %s: %v", path, err)
			continue // per-file parse failures are logged and skipped, not fatal
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		meta := metadata.Extract(path, text, info.ModTime())

		var replaces string
		if prior, ok := indexed[path]; ok {
			if prior.ContentHash == meta.ContentHash {
				continue
			}
			replaces = prior.ID
		}

		sourceID := uuid.NewString()
		reporter.Emit(progress.PhaseChunk, 0, 0, "chunking "+path)
		chunks, err := pipeline.Process(sourceID, filepath.Base(path), text, meta)
		if err != nil {
			log.Printf("learn: skipping %s: %v", path, err)
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		work = append(work, pending{
			path:       path,
			sourceID:   sourceID,
			replaces:   replaces,
			chunks:     chunks,
			byteCount:  int64(len(text)),
			contentSum: meta.ContentHash,
		})
	}

	var stats LearnStats
	if len(work) == 0 {
		return stats, nil
	}

	var texts []string
	for _, w := range work {
		for _, c := range w.chunks {
			texts = append(texts, c.Text)
		}
	}

	reporter.Emit(progress.PhaseEmbed, 0, len(texts), "embedding batch")
	vectors, err := base.Engine.EmbedTexts(ctx, baseName, ec, texts)
	if err != nil {
		return stats, err
	}
	if len(vectors) != len(texts) {
		return stats, Errorf(KindDimMismatch, "embedding engine returned %d vectors for %d texts", len(vectors), len(texts))
	}

	var allChunks []chunk.Chunk
	vi := 0
	for wi := range work {
		for ci := range work[wi].chunks {
			work[wi].chunks[ci].Embedding = vectors[vi]
			vi++
			allChunks = append(allChunks, work[wi].chunks[ci])
		}
	}

	reporter.Emit(progress.PhaseIndex, 0, len(allChunks), "indexing batch")
	for _, w := range work {
		if w.replaces == "" {
			continue
		}
		if err := base.Index.DeleteBySource(ctx, w.replaces); err != nil {
			return stats, err
		}
		if err := base.Keyword.DeleteBySource(w.replaces); err != nil {
			return stats, err
		}
	}
	if err := base.Index.UpsertChunks(ctx, allChunks); err != nil {
		return stats, err
	}
	if err := base.Keyword.UpsertChunks(allChunks); err != nil {
		return stats, err
	}

	for _, w := range work {
		if err := base.Index.UpsertSource(ctx, w.sourceID, w.path, w.contentSum, len(w.chunks), time.Now()); err != nil {
			return stats, err
		}
		if err := base.Tracker.Track(sources.Source{
			SourceID:   w.sourceID,
			Path:       w.path,
			SourceType: "file",
			IndexedAt:  time.Now(),
			ChunkCount: len(w.chunks),
			ByteCount:  w.byteCount,
		}); err != nil {
			return stats, err
		}
		stats.SourcesCount++
		stats.ChunksCount += len(w.chunks)
		stats.BytesProcessed += w.byteCount
	}

	return stats, nil
}

// discover walks every root in paths (without following symlinks),
// collecting files that pass the built-in exclusions, the caller's
// exclude substrings, and (if non-empty) the caller's include
// substrings. Results are returned sorted for deterministic batch
// assignment.
func discover(paths, include, exclude []string) ([]string, error) {
	var out []string
	for _, root := range paths {
		info, err := os.Lstat(root)
		if err != nil {
			return nil, NewError(KindIO, err)
		}
		if !info.IsDir() {
			if passesFilter(root, include, exclude) {
				out = append(out, root)
			}
			continue
		}

		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // surfaced by skipping; the walk continues
			}
			if info.Mode()&os.ModeSymlink != 0 {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if passesFilter(path, include, exclude) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, NewError(KindIO, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

func passesFilter(path string, include, exclude []string) bool {
	norm := filepath.ToSlash(path)
	ext := strings.ToLower(filepath.Ext(path))
	if binaryAssetExts[ext] {
		return false
	}
	for _, b := range builtinExcludes {
		if strings.Contains(norm, b) {
			return false
		}
	}
	for _, e := range exclude {
		if matchesSubstringOrGlob(norm, e) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, inc := range include {
		if matchesSubstringOrGlob(norm, inc) {
			return true
		}
	}
	return false
}

// matchesSubstringOrGlob supports both plain substrings (the common
// case for include/exclude filters) and glob patterns when pattern
// contains a glob metacharacter, using gobwas/glob for the latter.
func matchesSubstringOrGlob(path, pattern string) bool {
	if strings.ContainsAny(pattern, "*?[") {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return strings.Contains(path, pattern)
		}
		return g.Match(path)
	}
	return strings.Contains(path, pattern)
}

// Stats returns the knowledge base's current (sources, chunks) counts,
// read live from the Vector Index.
func (b *Base) Stats(ctx context.Context) (vecstore.Stats, error) {
	return b.Index.Stats(ctx)
}

// Clean resets the Vector Index and clears the Source Tracker,
// removing every ingested chunk and source record together.
func (b *Base) Clean(ctx context.Context) error {
	if err := b.Index.Reset(ctx); err != nil {
		return err
	}
	if err := b.Keyword.Reset(); err != nil {
		return err
	}
	if err := b.Tracker.Clear(); err != nil {
		return err
	}
	// A stale stats cache would report the removed chunks as present.
	if err := os.Remove(statsCachePath(b.Workspace, b.Config.Name)); err != nil && !os.IsNotExist(err) {
		return NewError(KindIO, err)
	}
	return nil
}

// Close releases the base's Vector Index and keyword index handles.
// The Embedding Engine is shared and not closed here.
func (b *Base) Close() error {
	kwErr := b.Keyword.Close()
	if err := b.Index.Close(); err != nil {
		return err
	}
	return kwErr
}
